package in

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"

	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	"worktally/internal/platform/logging"
)

// Scheduler runs the periodic cache jobs of a long-lived tracker: closing
// finished days shortly after midnight and a watermark recalculation.
type Scheduler struct {
	usecase activityin.Usecase
	cron    *rcron.Cron
	ctx     context.Context
	logger  *slog.Logger
}

// NewScheduler registers both jobs. Expressions use the six-field form with
// seconds; an empty expression disables that job.
func NewScheduler(usecase activityin.Usecase, finalizeExpr, maintenanceExpr string, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		usecase: usecase,
		cron:    rcron.New(rcron.WithSeconds()),
		ctx:     context.Background(),
		logger:  logging.OrDefault(logger),
	}
	if finalizeExpr != "" {
		if _, err := s.cron.AddFunc(finalizeExpr, s.finalize); err != nil {
			return nil, fmt.Errorf("schedule finalize %q: %w", finalizeExpr, err)
		}
	}
	if maintenanceExpr != "" {
		if _, err := s.cron.AddFunc(maintenanceExpr, s.maintain); err != nil {
			return nil, fmt.Errorf("schedule maintenance %q: %w", maintenanceExpr, err)
		}
	}
	return s, nil
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// job to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.Jobs())
	go func() {
		<-ctx.Done()
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			s.logger.Warn("scheduler stop timed out waiting for running jobs")
		}
		s.logger.Info("scheduler stopped")
	}()
}

func (s *Scheduler) finalize() {
	out, err := s.usecase.Finalize(s.ctx)
	if err != nil {
		s.logger.Error("scheduled finalize failed", "error", err)
		return
	}
	s.logger.Info("scheduled finalize done", "days", out.DaysFinalized)
}

func (s *Scheduler) maintain() {
	out, err := s.usecase.Recalculate(s.ctx, dto.RecalculateInput{})
	if err != nil {
		s.logger.Error("scheduled recalculation failed", "error", err)
		return
	}
	s.logger.Info("scheduled recalculation done", "recomputed", out.DaysRecomputed, "skipped", out.DaysSkipped)
}
