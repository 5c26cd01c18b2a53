package in

import (
	"context"
	"time"

	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
)

type CLIHandler struct {
	usecase activityin.Usecase
}

func NewCLIHandler(usecase activityin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Push(ctx context.Context, activityType, project string, at time.Time) (dto.PushHeartbeatOutput, error) {
	input := dto.PushHeartbeatInput{Project: project, ActivityType: activityType}
	if !at.IsZero() {
		input.Timestamp = at.UnixMilli()
	}
	return h.usecase.PushHeartbeat(ctx, input)
}

func (h CLIHandler) Day(ctx context.Context, dateKey string, minDuration time.Duration) (dto.DaySummaryOutput, error) {
	return h.usecase.DaySessions(ctx, dto.DayInput{DateKey: dateKey, MinDuration: minDuration})
}

func (h CLIHandler) Stats(ctx context.Context) (dto.StatsOutput, error) {
	return h.usecase.Stats(ctx)
}

func (h CLIHandler) Import(ctx context.Context, source string, records []dto.ImportRecord) (dto.ImportOutput, error) {
	return h.usecase.Import(ctx, dto.ImportInput{Source: source, Records: records})
}

func (h CLIHandler) Finalize(ctx context.Context) (dto.FinalizeOutput, error) {
	return h.usecase.Finalize(ctx)
}

func (h CLIHandler) Recalculate(ctx context.Context, force bool) (dto.RecalculateOutput, error) {
	return h.usecase.Recalculate(ctx, dto.RecalculateInput{Force: force})
}

func (h CLIHandler) RebuildAggregates(ctx context.Context) (int, error) {
	return h.usecase.RebuildAggregates(ctx)
}
