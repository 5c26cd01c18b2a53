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
	apperrors "worktally/internal/platform/errors"
	"worktally/internal/platform/logging"
)

type MaintenanceService struct {
	heartbeats activityout.HeartbeatStore
	dailyStore activityout.DailyCacheStore
	daily      *DailyCache
	aggregates *AggregateCache
	dates      clock.DateProvider
	logger     *slog.Logger
}

func NewMaintenanceService(
	heartbeats activityout.HeartbeatStore,
	dailyStore activityout.DailyCacheStore,
	daily *DailyCache,
	aggregates *AggregateCache,
	dates clock.DateProvider,
	logger *slog.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		heartbeats: heartbeats,
		dailyStore: dailyStore,
		daily:      daily,
		aggregates: aggregates,
		dates:      dates,
		logger:     logging.OrDefault(logger),
	}
}

// RecalculateAll recomputes every closed day from raw heartbeats. Unless
// force is set, days whose stored watermark matches the newest heartbeat id
// of the day are left alone.
func (m *MaintenanceService) RecalculateAll(ctx context.Context, force bool) (domain.RecalculateReport, error) {
	report := domain.RecalculateReport{}
	from, ok, err := m.earliestDay(ctx)
	if err != nil || !ok {
		return report, err
	}
	yesterday, err := datekey.AddDays(m.dates.Today(), -1)
	if err != nil {
		return report, err
	}
	keys, err := datekey.Range(from, yesterday)
	if err != nil {
		return report, err
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !force {
			fresh, err := m.fresh(ctx, key)
			if err != nil {
				return report, err
			}
			if fresh {
				report.DaysSkipped++
				continue
			}
		}
		if _, err := m.daily.Recompute(ctx, key); err != nil {
			return report, fmt.Errorf("recompute %s: %w", key, err)
		}
		report.DaysRecomputed++
	}
	m.logger.Info("recalculation finished", "from", from, "to", yesterday,
		"recomputed", report.DaysRecomputed, "skipped", report.DaysSkipped, "force", force)
	return report, nil
}

func (m *MaintenanceService) RebuildAggregates(ctx context.Context) (int, error) {
	return m.aggregates.Rebuild(ctx)
}

func (m *MaintenanceService) fresh(ctx context.Context, key string) (bool, error) {
	entry, err := m.dailyStore.GetDaily(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		m.logger.Warn("daily cache read failed, recomputing", "date", key, "error", err)
		return false, nil
	}
	start, end, err := datekey.DayBounds(key, m.dates.Location())
	if err != nil {
		return false, err
	}
	lastID, err := m.heartbeats.LastHeartbeatID(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("last heartbeat id %s: %w", key, err)
	}
	return entry.LastHeartbeatID == lastID, nil
}

func (m *MaintenanceService) earliestDay(ctx context.Context) (string, bool, error) {
	var candidates []string
	earliest, _, ok, err := m.dailyStore.DailyKeyBounds(ctx)
	if err != nil {
		return "", false, fmt.Errorf("daily key bounds: %w", err)
	}
	if ok {
		candidates = append(candidates, earliest)
	}
	first, _, ok, err := m.heartbeats.HeartbeatBounds(ctx)
	if err != nil {
		return "", false, fmt.Errorf("heartbeat bounds: %w", err)
	}
	if ok {
		candidates = append(candidates, datekey.FromMillis(first, m.dates.Location()))
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	from := candidates[0]
	for _, c := range candidates[1:] {
		if c < from {
			from = c
		}
	}
	return from, true, nil
}
