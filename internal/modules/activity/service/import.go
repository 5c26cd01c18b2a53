package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"worktally/internal/modules/activity/domain"
	activityout "worktally/internal/modules/activity/port/out"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/datekey"
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/id"
	"worktally/internal/platform/logging"
	"worktally/internal/platform/tx"
)

// ImportService merges externally sourced history day by day. A day is
// replaced only when the imported coding time is strictly greater than
// what is stored.
type ImportService struct {
	mu         sync.Mutex
	heartbeats activityout.HeartbeatStore
	runs       activityout.ImportRunStore
	daily      *DailyCache
	tx         tx.Manager
	dates      clock.DateProvider
	ids        id.Generator
	interval   time.Duration
	logger     *slog.Logger
}

func NewImportService(
	heartbeats activityout.HeartbeatStore,
	runs activityout.ImportRunStore,
	daily *DailyCache,
	txManager tx.Manager,
	dates clock.DateProvider,
	ids id.Generator,
	interval time.Duration,
	logger *slog.Logger,
) *ImportService {
	if txManager == nil {
		txManager = tx.NoopManager{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ImportService{
		heartbeats: heartbeats,
		runs:       runs,
		daily:      daily,
		tx:         txManager,
		dates:      dates,
		ids:        ids,
		interval:   interval,
		logger:     logging.OrDefault(logger),
	}
}

// Import returns the partial report alongside an error when a day fails;
// days committed before the failure stay committed.
func (s *ImportService) Import(ctx context.Context, source string, records []domain.ImportRecord) (domain.ImportReport, error) {
	if !s.mu.TryLock() {
		return domain.ImportReport{}, apperrors.ErrImportRunning
	}
	defer s.mu.Unlock()

	startedAt := s.dates.Now()
	days, err := s.groupByDay(records)
	if err != nil {
		return domain.ImportReport{}, err
	}

	report := domain.ImportReport{RunID: s.ids.New(), Source: source, Days: []domain.ImportDayResult{}}
	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	today := s.dates.Today()
	for _, key := range keys {
		result, err := s.importDay(ctx, key, today, days[key])
		if err != nil {
			return report, fmt.Errorf("import %s: %w", key, err)
		}
		report.Days = append(report.Days, result)
		if result.Replaced {
			report.DaysReplaced++
			report.HeartbeatsReplaced += result.Heartbeats
		} else {
			report.DaysSkipped++
		}
	}

	run := domain.ImportRun{
		ID:                 report.RunID,
		Source:             source,
		DaysReplaced:       report.DaysReplaced,
		DaysSkipped:        report.DaysSkipped,
		HeartbeatsReplaced: report.HeartbeatsReplaced,
		StartedAt:          startedAt,
		FinishedAt:         s.dates.Now(),
	}
	if s.runs != nil {
		if err := s.runs.SaveImportRun(ctx, run); err != nil {
			s.logger.Warn("record import run failed", "run_id", run.ID, "error", err)
		}
	}
	s.logger.Info("import finished", "run_id", run.ID, "source", source,
		"days_replaced", report.DaysReplaced, "days_skipped", report.DaysSkipped,
		"heartbeats_replaced", report.HeartbeatsReplaced)
	return report, nil
}

func (s *ImportService) importDay(ctx context.Context, key, today string, heartbeats []domain.Heartbeat) (domain.ImportDayResult, error) {
	result := domain.ImportDayResult{DateKey: key, Heartbeats: len(heartbeats)}
	if key >= today {
		result.Reason = domain.SkipReasonOpenDay
		return result, nil
	}

	imported := domain.NewDaySummary(key, domain.Segment(heartbeats))
	existing, err := s.daily.GetDaySessions(ctx, key)
	if err != nil {
		return result, err
	}
	result.ImportedCodingMs = imported.TotalCodingMs
	result.ExistingCodingMs = existing.TotalCodingMs
	if imported.TotalCodingMs <= existing.TotalCodingMs {
		result.Reason = domain.SkipReasonNotGreater
		return result, nil
	}

	start, end, err := datekey.DayBounds(key, s.dates.Location())
	if err != nil {
		return result, err
	}
	err = s.tx.Within(ctx, func(ctx context.Context) error {
		n, err := s.heartbeats.ReplaceHeartbeats(ctx, start, end, heartbeats)
		if err != nil {
			return fmt.Errorf("replace heartbeats: %w", err)
		}
		result.Heartbeats = n
		_, err = s.daily.Recompute(ctx, key)
		return err
	})
	if err != nil {
		return result, err
	}
	result.Replaced = true
	s.logger.Debug("day replaced by import", "date", key,
		"imported_coding_ms", result.ImportedCodingMs, "existing_coding_ms", result.ExistingCodingMs)
	return result, nil
}

// groupByDay expands every record into heartbeats, one per interval across
// its duration, and buckets them by local day sorted and deduplicated by
// timestamp.
func (s *ImportService) groupByDay(records []domain.ImportRecord) (map[string][]domain.Heartbeat, error) {
	loc := s.dates.Location()
	step := s.interval.Milliseconds()
	days := map[string][]domain.Heartbeat{}
	for i, r := range records {
		if r.Timestamp <= 0 {
			return nil, fmt.Errorf("%w: record %d has no timestamp", apperrors.ErrInvalidInput, i)
		}
		if r.DurationMs < 0 {
			return nil, fmt.Errorf("%w: record %d has a negative duration", apperrors.ErrInvalidInput, i)
		}
		kind := domain.CategoryType(r.Category)
		last := r.Timestamp
		if r.DurationMs > 0 {
			last = r.Timestamp + r.DurationMs - 1
		}
		for ts := r.Timestamp; ts <= last; ts += step {
			key := datekey.FromMillis(ts, loc)
			days[key] = append(days[key], domain.Heartbeat{Timestamp: ts, Project: r.Project, Type: kind})
		}
	}
	for key, heartbeats := range days {
		days[key] = sortUnique(heartbeats)
	}
	return days, nil
}

func sortUnique(heartbeats []domain.Heartbeat) []domain.Heartbeat {
	sort.SliceStable(heartbeats, func(i, j int) bool { return heartbeats[i].Timestamp < heartbeats[j].Timestamp })
	out := heartbeats[:0]
	for _, h := range heartbeats {
		if n := len(out); n > 0 && out[n-1].Timestamp == h.Timestamp {
			continue
		}
		out = append(out, h)
	}
	return out
}
