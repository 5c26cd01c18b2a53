package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"worktally/internal/modules/activity/domain"
	apperrors "worktally/internal/platform/errors"
)

func TestStatsComposeCachesAndLiveToday(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(wednesday)

	e.seed(workBlock("2023-06-01", 9, 0, 121, domain.ActivityCoding)...)
	e.seed(workBlock("2024-03-05", 9, 0, 61, domain.ActivityCoding)...)
	e.seed(workBlock("2024-03-11", 9, 0, 31, domain.ActivityPlanning)...)
	for _, h := range workBlock("2024-03-13", 10, 0, 21, domain.ActivityCoding) {
		if _, err := e.tracking.Push(ctx, h); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if _, err := e.tracking.FinalizePending(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stats, err := e.stats.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	minute := time.Minute.Milliseconds()
	if stats.TodayMs != 20*minute {
		t.Fatalf("expected 20m today, got %d", stats.TodayMs)
	}
	if stats.ThisWeekMs != 50*minute {
		t.Fatalf("expected 50m this week, got %d", stats.ThisWeekMs)
	}
	if stats.LastWeekMs != 60*minute {
		t.Fatalf("expected 60m last week, got %d", stats.LastWeekMs)
	}
	if want := (110 * minute) / 73; stats.ThisYearDailyAvgMs != want {
		t.Fatalf("expected this-year average %d, got %d", want, stats.ThisYearDailyAvgMs)
	}
	if want := (120 * minute) / 365; stats.LastYearDailyAvgMs != want {
		t.Fatalf("expected last-year average %d, got %d", want, stats.LastYearDailyAvgMs)
	}
	if !stats.HasLastYearData {
		t.Fatalf("expected last year data")
	}
	if _, ok := e.store.daily["2024-03-13"]; ok {
		t.Fatalf("today must stay out of the daily cache")
	}
}

func TestStatsLastYearPresenceIgnoresEmptyDays(t *testing.T) {
	t.Parallel()
	e := newEngine(wednesday)
	e.store.daily["2023-02-01"] = domain.DailyEntry{DateKey: "2023-02-01", SessionCount: 0}

	stats, err := e.stats.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.HasLastYearData || stats.LastYearDailyAvgMs != 0 {
		t.Fatalf("expected no last year data, got %+v", stats)
	}
}

func TestDaySessionsRouting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEngine(wednesday)
	e.seed(workBlock("2024-03-12", 9, 0, 11, domain.ActivityCoding)...)
	for _, h := range workBlock("2024-03-13", 9, 0, 6, domain.ActivityCoding) {
		if _, err := e.tracking.Push(ctx, h); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	today, live, err := e.stats.DaySessions(ctx, "")
	if err != nil || !live || today.TotalTimeMs != (5*time.Minute).Milliseconds() {
		t.Fatalf("expected live today, got %+v live=%v (%v)", today, live, err)
	}
	past, live, err := e.stats.DaySessions(ctx, "2024-03-12")
	if err != nil || live || past.TotalTimeMs != (10*time.Minute).Milliseconds() {
		t.Fatalf("expected cached past day, got %+v live=%v (%v)", past, live, err)
	}
	if _, _, err := e.stats.DaySessions(ctx, "2024-03-14"); !errors.Is(err, apperrors.ErrOpenDay) {
		t.Fatalf("expected future day rejection, got %v", err)
	}
}
