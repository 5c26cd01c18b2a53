package service

import (
	"context"
	"fmt"

	"worktally/internal/modules/activity/domain"
	activityout "worktally/internal/modules/activity/port/out"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/datekey"
	apperrors "worktally/internal/platform/errors"
)

// StatsService composes the live store, the daily cache and the aggregate
// cache into read-side summaries.
type StatsService struct {
	live       *LiveStore
	daily      *DailyCache
	aggregates *AggregateCache
	dailyStore activityout.DailyCacheStore
	dates      clock.DateProvider
}

func NewStatsService(live *LiveStore, daily *DailyCache, aggregates *AggregateCache, dailyStore activityout.DailyCacheStore, dates clock.DateProvider) *StatsService {
	return &StatsService{live: live, daily: daily, aggregates: aggregates, dailyStore: dailyStore, dates: dates}
}

// DaySessions routes today to the live store and closed days to the cache.
func (s *StatsService) DaySessions(ctx context.Context, dateKey string) (domain.DaySessionSummary, bool, error) {
	today := s.dates.Today()
	switch {
	case dateKey == "" || dateKey == today:
		return s.live.Summary(), true, nil
	case !datekey.Valid(dateKey):
		return domain.DaySessionSummary{}, false, fmt.Errorf("%w: invalid date %q", apperrors.ErrInvalidInput, dateKey)
	case dateKey > today:
		return domain.DaySessionSummary{}, false, fmt.Errorf("%w: %s is in the future", apperrors.ErrOpenDay, dateKey)
	}
	summary, err := s.daily.GetDaySessions(ctx, dateKey)
	return summary, false, err
}

func (s *StatsService) Stats(ctx context.Context) (domain.StatsSummary, error) {
	today := s.dates.Today()
	weekStart, err := datekey.WeekStart(today)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	lastWeekStart, err := datekey.AddDays(weekStart, -7)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	if _, err := s.daily.EnsureRange(ctx, lastWeekStart, today); err != nil {
		return domain.StatsSummary{}, fmt.Errorf("materialize recent days: %w", err)
	}

	todayMs := s.live.Summary().TotalTimeMs
	thisWeek, err := s.aggregates.WeekTotal(ctx, today)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	lastWeek, err := s.aggregates.WeekTotal(ctx, lastWeekStart)
	if err != nil {
		return domain.StatsSummary{}, err
	}

	year, err := datekey.Year(today)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	thisYear, err := s.aggregates.YearTotal(ctx, year)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	lastYear, err := s.aggregates.YearTotal(ctx, year-1)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	elapsed, err := datekey.DayOfYear(today)
	if err != nil {
		return domain.StatsSummary{}, err
	}
	lastYearFrom, lastYearTo := datekey.YearSpan(year - 1)
	hasLastYear, err := s.dailyStore.HasSessions(ctx, lastYearFrom, lastYearTo)
	if err != nil {
		return domain.StatsSummary{}, fmt.Errorf("check last year data: %w", err)
	}

	return domain.StatsSummary{
		TodayMs:            todayMs,
		ThisWeekMs:         thisWeek + todayMs,
		LastWeekMs:         lastWeek,
		ThisYearDailyAvgMs: (thisYear + todayMs) / int64(elapsed),
		LastYearDailyAvgMs: lastYear / int64(datekey.DaysInYear(year-1)),
		HasLastYearData:    hasLastYear,
	}, nil
}
