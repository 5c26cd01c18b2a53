package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"worktally/internal/modules/activity/domain"
	activityout "worktally/internal/modules/activity/port/out"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/datekey"
	"worktally/internal/platform/logging"
)

// TrackingService is the write path for live heartbeats: durable log first,
// then the live store.
type TrackingService struct {
	heartbeats activityout.HeartbeatStore
	live       *LiveStore
	daily      *DailyCache
	dates      clock.DateProvider
	logger     *slog.Logger
}

func NewTrackingService(
	heartbeats activityout.HeartbeatStore,
	live *LiveStore,
	daily *DailyCache,
	dates clock.DateProvider,
	logger *slog.Logger,
) *TrackingService {
	return &TrackingService{
		heartbeats: heartbeats,
		live:       live,
		daily:      daily,
		dates:      dates,
		logger:     logging.OrDefault(logger),
	}
}

func (s *TrackingService) Push(ctx context.Context, h domain.Heartbeat) (domain.Heartbeat, error) {
	if err := h.Validate(); err != nil {
		return domain.Heartbeat{}, err
	}
	s.CloseRolledDays(ctx)

	stored, err := s.heartbeats.AppendHeartbeat(ctx, h)
	if err != nil {
		return domain.Heartbeat{}, fmt.Errorf("append heartbeat: %w", err)
	}
	if !s.live.PushHeartbeat(stored) {
		s.logger.Debug("heartbeat outside the tracked day kept only in the log",
			"timestamp", stored.Timestamp, "date", datekey.FromMillis(stored.Timestamp, s.dates.Location()))
	}
	return stored, nil
}

// LoadToday seeds the live store from the durable log.
func (s *TrackingService) LoadToday(ctx context.Context) error {
	today := s.dates.Today()
	start, end, err := datekey.DayBounds(today, s.dates.Location())
	if err != nil {
		return err
	}
	heartbeats, err := s.heartbeats.ListHeartbeats(ctx, start, end)
	if err != nil {
		return fmt.Errorf("list today's heartbeats: %w", err)
	}
	s.live.Load(today, heartbeats)
	s.logger.Debug("live store loaded", "date", today, "heartbeats", len(heartbeats))
	return nil
}

// FinalizePending materializes every closed day since the first heartbeat
// that has no daily entry yet.
func (s *TrackingService) FinalizePending(ctx context.Context) (int, error) {
	from, ok, err := s.pendingFrom(ctx)
	if err != nil || !ok {
		return 0, err
	}
	n, err := s.daily.EnsureRange(ctx, from, s.dates.Today())
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.logger.Info("finalized closed days", "from", from, "days", n)
	}
	return n, nil
}

func (s *TrackingService) pendingFrom(ctx context.Context) (string, bool, error) {
	first, _, ok, err := s.heartbeats.HeartbeatBounds(ctx)
	if err != nil {
		return "", false, fmt.Errorf("heartbeat bounds: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return datekey.FromMillis(first, s.dates.Location()), true, nil
}

// CloseRolledDays persists the days the live store rolled past, whichever
// caller triggered the rollover. Failures only cost a later recomputation.
func (s *TrackingService) CloseRolledDays(ctx context.Context) {
	for _, day := range s.live.DrainClosed() {
		if _, err := s.daily.GetDaySessions(ctx, day); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("finalize previous day failed", "date", day, "error", err)
			}
			continue
		}
		s.logger.Info("day rolled over", "finalized", day)
	}
}
