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
	"worktally/internal/platform/tx"
)

// DailyCache computes a closed day once and keeps the result. Today and
// later days are never cached.
type DailyCache struct {
	heartbeats activityout.HeartbeatStore
	store      activityout.DailyCacheStore
	aggregates *AggregateCache
	tx         tx.Manager
	dates      clock.DateProvider
	notifier   activityout.Notifier
	logger     *slog.Logger
}

func NewDailyCache(
	heartbeats activityout.HeartbeatStore,
	store activityout.DailyCacheStore,
	aggregates *AggregateCache,
	txManager tx.Manager,
	dates clock.DateProvider,
	notifier activityout.Notifier,
	logger *slog.Logger,
) *DailyCache {
	if txManager == nil {
		txManager = tx.NoopManager{}
	}
	return &DailyCache{
		heartbeats: heartbeats,
		store:      store,
		aggregates: aggregates,
		tx:         txManager,
		dates:      dates,
		notifier:   notifier,
		logger:     logging.OrDefault(logger),
	}
}

func (c *DailyCache) GetDaySessions(ctx context.Context, dateKey string) (domain.DaySessionSummary, error) {
	if err := c.checkClosed(dateKey); err != nil {
		return domain.DaySessionSummary{}, err
	}

	entry, err := c.store.GetDaily(ctx, dateKey)
	switch {
	case err == nil:
		return entry.Summary(), nil
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		// The stored total is unknown, so the entry is left alone and the
		// aggregates are not touched.
		c.logger.Warn("daily cache read failed, recomputing from heartbeats", "date", dateKey, "error", err)
		summary, _, computeErr := c.compute(ctx, dateKey)
		return summary, computeErr
	}

	summary, lastID, err := c.compute(ctx, dateKey)
	if err != nil {
		return domain.DaySessionSummary{}, err
	}
	if err := c.persist(ctx, summary, lastID, 0); err != nil {
		c.reportWriteFailure(ctx, dateKey, err)
	}
	return summary, nil
}

// Recompute rebuilds the entry of dateKey from raw heartbeats and moves the
// aggregates by the difference to the previous total.
func (c *DailyCache) Recompute(ctx context.Context, dateKey string) (domain.DaySessionSummary, error) {
	if err := c.checkClosed(dateKey); err != nil {
		return domain.DaySessionSummary{}, err
	}

	var summary domain.DaySessionSummary
	err := c.tx.Within(ctx, func(ctx context.Context) error {
		var previous int64
		entry, err := c.store.GetDaily(ctx, dateKey)
		switch {
		case err == nil:
			previous = entry.TotalTimeMs
		case errors.Is(err, apperrors.ErrNotFound):
		default:
			return fmt.Errorf("get daily %s: %w", dateKey, err)
		}

		computed, lastID, err := c.compute(ctx, dateKey)
		if err != nil {
			return err
		}
		if err := c.persist(ctx, computed, lastID, previous); err != nil {
			return err
		}
		summary = computed
		return nil
	})
	if err != nil {
		return domain.DaySessionSummary{}, err
	}
	c.logger.Debug("daily cache recomputed", "date", dateKey, "total_ms", summary.TotalTimeMs)
	return summary, nil
}

// EnsureRange materializes every closed day in [fromKey, toKey] that has no
// entry yet and returns how many were created.
func (c *DailyCache) EnsureRange(ctx context.Context, fromKey, toKey string) (int, error) {
	yesterday, err := datekey.AddDays(c.dates.Today(), -1)
	if err != nil {
		return 0, err
	}
	if toKey > yesterday {
		toKey = yesterday
	}
	keys, err := datekey.Range(fromKey, toKey)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, key := range keys {
		_, err := c.store.GetDaily(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			c.logger.Warn("daily cache read failed", "date", key, "error", err)
			continue
		}
		if _, err := c.GetDaySessions(ctx, key); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (c *DailyCache) checkClosed(dateKey string) error {
	if !datekey.Valid(dateKey) {
		return fmt.Errorf("%w: invalid date %q", apperrors.ErrInvalidInput, dateKey)
	}
	if dateKey >= c.dates.Today() {
		return fmt.Errorf("%w: %s", apperrors.ErrOpenDay, dateKey)
	}
	return nil
}

func (c *DailyCache) compute(ctx context.Context, dateKey string) (domain.DaySessionSummary, string, error) {
	start, end, err := datekey.DayBounds(dateKey, c.dates.Location())
	if err != nil {
		return domain.DaySessionSummary{}, "", err
	}
	heartbeats, err := c.heartbeats.ListHeartbeats(ctx, start, end)
	if err != nil {
		return domain.DaySessionSummary{}, "", fmt.Errorf("list heartbeats %s: %w", dateKey, err)
	}
	lastID, err := c.heartbeats.LastHeartbeatID(ctx, start, end)
	if err != nil {
		return domain.DaySessionSummary{}, "", fmt.Errorf("last heartbeat id %s: %w", dateKey, err)
	}
	return domain.NewDaySummary(dateKey, domain.Segment(heartbeats)), lastID, nil
}

func (c *DailyCache) persist(ctx context.Context, summary domain.DaySessionSummary, lastID string, previousTotalMs int64) error {
	return c.tx.Within(ctx, func(ctx context.Context) error {
		entry := domain.NewDailyEntry(summary, lastID, c.dates.Now())
		if err := c.store.PutDaily(ctx, entry); err != nil {
			return fmt.Errorf("put daily %s: %w", summary.DateKey, err)
		}
		if c.aggregates == nil {
			return nil
		}
		return c.aggregates.UpdateForDate(ctx, summary.DateKey, previousTotalMs, summary.TotalTimeMs)
	})
}

func (c *DailyCache) reportWriteFailure(ctx context.Context, dateKey string, err error) {
	c.logger.Error("daily cache write failed", "date", dateKey, "error", err)
	if c.notifier == nil {
		return
	}
	msg := fmt.Sprintf("Could not save the summary for %s. It will be recomputed later.", dateKey)
	if notifyErr := c.notifier.Notify(ctx, "worktally", msg); notifyErr != nil {
		c.logger.Warn("notification failed", "error", notifyErr)
	}
}
