package usecase

import (
	"context"

	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	"worktally/internal/platform/clock"
)

// LogFollower answers queries in a process that does not receive heartbeats
// itself, such as the query API or the dashboard. Another process appends to
// the shared heartbeat log, so today's projection is rebuilt from the log
// before every read that includes today.
type LogFollower struct {
	activityin.Usecase
	dates clock.DateProvider
}

func NewLogFollower(inner activityin.Usecase, dates clock.DateProvider) activityin.Usecase {
	return LogFollower{Usecase: inner, dates: dates}
}

func (f LogFollower) Today(ctx context.Context) (dto.DaySummaryOutput, error) {
	return f.DaySessions(ctx, dto.DayInput{})
}

func (f LogFollower) DaySessions(ctx context.Context, input dto.DayInput) (dto.DaySummaryOutput, error) {
	if input.DateKey == "" || input.DateKey == f.dates.Today() {
		if err := f.Usecase.LoadToday(ctx); err != nil {
			return dto.DaySummaryOutput{}, err
		}
	}
	return f.Usecase.DaySessions(ctx, input)
}

func (f LogFollower) Stats(ctx context.Context) (dto.StatsOutput, error) {
	if err := f.Usecase.LoadToday(ctx); err != nil {
		return dto.StatsOutput{}, err
	}
	return f.Usecase.Stats(ctx)
}
