package in

import (
	"context"

	"worktally/internal/modules/activity/dto"
)

type Usecase interface {
	PushHeartbeat(ctx context.Context, input dto.PushHeartbeatInput) (dto.PushHeartbeatOutput, error)
	LoadToday(ctx context.Context) error
	Today(ctx context.Context) (dto.DaySummaryOutput, error)
	DaySessions(ctx context.Context, input dto.DayInput) (dto.DaySummaryOutput, error)
	Stats(ctx context.Context) (dto.StatsOutput, error)
	Import(ctx context.Context, input dto.ImportInput) (dto.ImportOutput, error)
	Finalize(ctx context.Context) (dto.FinalizeOutput, error)
	Recalculate(ctx context.Context, input dto.RecalculateInput) (dto.RecalculateOutput, error)
	RebuildAggregates(ctx context.Context) (int, error)
}
