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

// AggregateCache keeps week and year totals in step with the daily cache by
// applying deltas instead of rescanning the range.
type AggregateCache struct {
	store  activityout.AggregateCacheStore
	daily  activityout.DailyCacheStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewAggregateCache(store activityout.AggregateCacheStore, daily activityout.DailyCacheStore, clk clock.Clock, logger *slog.Logger) *AggregateCache {
	return &AggregateCache{store: store, daily: daily, clock: clk, logger: logging.OrDefault(logger)}
}

func (a *AggregateCache) GetAggregateTotal(ctx context.Context, rangeKey, fromKey, toKey string) (int64, error) {
	entry, err := a.store.GetAggregate(ctx, rangeKey)
	if err == nil {
		return entry.TotalTimeMs, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		a.logger.Warn("aggregate cache read failed, summing daily entries", "range", rangeKey, "error", err)
		total, sumErr := a.daily.SumDailyTotals(ctx, fromKey, toKey)
		if sumErr != nil {
			return 0, fmt.Errorf("sum daily totals %s..%s: %w", fromKey, toKey, sumErr)
		}
		return total, nil
	}
	return a.computeFresh(ctx, rangeKey, fromKey, toKey)
}

func (a *AggregateCache) WeekTotal(ctx context.Context, dateKey string) (int64, error) {
	from, to, err := datekey.WeekSpan(dateKey)
	if err != nil {
		return 0, err
	}
	return a.GetAggregateTotal(ctx, datekey.WeekRangeKey(from), from, to)
}

func (a *AggregateCache) YearTotal(ctx context.Context, year int) (int64, error) {
	from, to := datekey.YearSpan(year)
	return a.GetAggregateTotal(ctx, datekey.YearRangeKey(year), from, to)
}

// UpdateForDate must run after the daily entry of dateKey holds newTotalMs,
// so a range computed fresh here already includes it.
func (a *AggregateCache) UpdateForDate(ctx context.Context, dateKey string, previousTotalMs, newTotalMs int64) error {
	delta := newTotalMs - previousTotalMs
	if delta == 0 {
		return nil
	}
	ranges, err := rangesFor(dateKey)
	if err != nil {
		return err
	}
	for _, r := range ranges {
		applied, err := a.store.AddAggregateDelta(ctx, r.key, delta, a.clock.Now())
		if err != nil {
			return fmt.Errorf("apply aggregate delta %s: %w", r.key, err)
		}
		if applied {
			a.logger.Debug("aggregate delta applied", "range", r.key, "date", dateKey, "delta_ms", delta)
			continue
		}
		if _, err := a.computeFresh(ctx, r.key, r.from, r.to); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild drops every aggregate entry; they are recomputed on next read.
func (a *AggregateCache) Rebuild(ctx context.Context) (int, error) {
	n, err := a.store.DeleteAggregates(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete aggregates: %w", err)
	}
	a.logger.Info("aggregate cache cleared", "entries", n)
	return n, nil
}

func (a *AggregateCache) computeFresh(ctx context.Context, rangeKey, fromKey, toKey string) (int64, error) {
	total, err := a.daily.SumDailyTotals(ctx, fromKey, toKey)
	if err != nil {
		return 0, fmt.Errorf("sum daily totals %s..%s: %w", fromKey, toKey, err)
	}
	entry := domain.AggregateEntry{RangeKey: rangeKey, TotalTimeMs: total, ComputedAt: a.clock.Now()}
	if err := a.store.PutAggregate(ctx, entry); err != nil {
		return 0, fmt.Errorf("put aggregate %s: %w", rangeKey, err)
	}
	return total, nil
}

type aggregateRange struct {
	key  string
	from string
	to   string
}

func rangesFor(dateKey string) ([]aggregateRange, error) {
	weekFrom, weekTo, err := datekey.WeekSpan(dateKey)
	if err != nil {
		return nil, err
	}
	year, err := datekey.Year(dateKey)
	if err != nil {
		return nil, err
	}
	yearFrom, yearTo := datekey.YearSpan(year)
	return []aggregateRange{
		{key: datekey.WeekRangeKey(weekFrom), from: weekFrom, to: weekTo},
		{key: datekey.YearRangeKey(year), from: yearFrom, to: yearTo},
	}, nil
}
