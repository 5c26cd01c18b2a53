package in_test

import (
	"context"
	"fmt"
	"sync"

	"worktally/internal/modules/activity/dto"
	apperrors "worktally/internal/platform/errors"
)

type fakeUsecase struct {
	mu      sync.Mutex
	pushed  []dto.PushHeartbeatInput
	days    []dto.DayInput
	pushErr error
}

func (f *fakeUsecase) PushHeartbeat(_ context.Context, input dto.PushHeartbeatInput) (dto.PushHeartbeatOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return dto.PushHeartbeatOutput{}, f.pushErr
	}
	if input.ActivityType != "coding" && input.ActivityType != "planning" {
		return dto.PushHeartbeatOutput{}, fmt.Errorf("%w: activity type %q", apperrors.ErrInvalidInput, input.ActivityType)
	}
	f.pushed = append(f.pushed, input)
	return dto.PushHeartbeatOutput{ID: fmt.Sprint(len(f.pushed)), Timestamp: input.Timestamp}, nil
}

func (f *fakeUsecase) LoadToday(context.Context) error { return nil }

func (f *fakeUsecase) Today(ctx context.Context) (dto.DaySummaryOutput, error) {
	return f.DaySessions(ctx, dto.DayInput{})
}

func (f *fakeUsecase) DaySessions(_ context.Context, input dto.DayInput) (dto.DaySummaryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, input)
	switch input.DateKey {
	case "":
		return dto.DaySummaryOutput{DateKey: "2024-03-13", Live: true, Sessions: []dto.SessionOutput{}, TotalTimeMs: 60_000}, nil
	case "2024-03-14":
		return dto.DaySummaryOutput{}, fmt.Errorf("%w: 2024-03-14 is in the future", apperrors.ErrOpenDay)
	case "2024-03-12":
		return dto.DaySummaryOutput{DateKey: "2024-03-12", Sessions: []dto.SessionOutput{}, TotalTimeMs: 120_000}, nil
	}
	return dto.DaySummaryOutput{}, fmt.Errorf("%w: invalid date %q", apperrors.ErrInvalidInput, input.DateKey)
}

func (f *fakeUsecase) Stats(context.Context) (dto.StatsOutput, error) {
	return dto.StatsOutput{TodayMs: 60_000, ThisWeekMs: 180_000, HasLastYearData: true}, nil
}

func (f *fakeUsecase) Import(_ context.Context, input dto.ImportInput) (dto.ImportOutput, error) {
	return dto.ImportOutput{DaysSkipped: len(input.Records)}, nil
}

func (f *fakeUsecase) Finalize(context.Context) (dto.FinalizeOutput, error) {
	return dto.FinalizeOutput{DaysFinalized: 1}, nil
}

func (f *fakeUsecase) Recalculate(context.Context, dto.RecalculateInput) (dto.RecalculateOutput, error) {
	return dto.RecalculateOutput{}, nil
}

func (f *fakeUsecase) RebuildAggregates(context.Context) (int, error) { return 0, nil }
