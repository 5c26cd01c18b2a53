package usecase

import (
	"context"

	"worktally/internal/modules/activity/domain"
	"worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	"worktally/internal/modules/activity/service"
	"worktally/internal/platform/clock"
	"worktally/internal/platform/datekey"
)

type Interactor struct {
	tracking    *service.TrackingService
	stats       *service.StatsService
	imports     *service.ImportService
	maintenance *service.MaintenanceService
	dates       clock.DateProvider
}

func NewInteractor(
	tracking *service.TrackingService,
	stats *service.StatsService,
	imports *service.ImportService,
	maintenance *service.MaintenanceService,
	dates clock.DateProvider,
) activityin.Usecase {
	return &Interactor{tracking: tracking, stats: stats, imports: imports, maintenance: maintenance, dates: dates}
}

func (i *Interactor) PushHeartbeat(ctx context.Context, input dto.PushHeartbeatInput) (dto.PushHeartbeatOutput, error) {
	kind, err := domain.ParseActivityType(input.ActivityType)
	if err != nil {
		return dto.PushHeartbeatOutput{}, err
	}
	ts := input.Timestamp
	if ts == 0 {
		ts = i.dates.Now().UnixMilli()
	}
	stored, err := i.tracking.Push(ctx, domain.Heartbeat{Timestamp: ts, Project: input.Project, Type: kind})
	if err != nil {
		return dto.PushHeartbeatOutput{}, err
	}
	return dto.PushHeartbeatOutput{
		ID:        stored.ID,
		Timestamp: stored.Timestamp,
		DateKey:   datekey.FromMillis(stored.Timestamp, i.dates.Location()),
	}, nil
}

func (i *Interactor) LoadToday(ctx context.Context) error {
	return i.tracking.LoadToday(ctx)
}

func (i *Interactor) Today(ctx context.Context) (dto.DaySummaryOutput, error) {
	return i.DaySessions(ctx, dto.DayInput{})
}

func (i *Interactor) DaySessions(ctx context.Context, input dto.DayInput) (dto.DaySummaryOutput, error) {
	i.tracking.CloseRolledDays(ctx)
	summary, live, err := i.stats.DaySessions(ctx, input.DateKey)
	if err != nil {
		return dto.DaySummaryOutput{}, err
	}
	if input.MinDuration > 0 {
		summary.Sessions = domain.FilterSessions(summary.Sessions, input.MinDuration)
	}
	return toDaySummaryOutput(summary, live), nil
}

func (i *Interactor) Stats(ctx context.Context) (dto.StatsOutput, error) {
	i.tracking.CloseRolledDays(ctx)
	stats, err := i.stats.Stats(ctx)
	if err != nil {
		return dto.StatsOutput{}, err
	}
	return dto.StatsOutput{
		TodayMs:            stats.TodayMs,
		ThisWeekMs:         stats.ThisWeekMs,
		LastWeekMs:         stats.LastWeekMs,
		ThisYearDailyAvgMs: stats.ThisYearDailyAvgMs,
		LastYearDailyAvgMs: stats.LastYearDailyAvgMs,
		HasLastYearData:    stats.HasLastYearData,
	}, nil
}

func (i *Interactor) Import(ctx context.Context, input dto.ImportInput) (dto.ImportOutput, error) {
	records := make([]domain.ImportRecord, 0, len(input.Records))
	for _, r := range input.Records {
		records = append(records, domain.ImportRecord{
			Timestamp:  r.Timestamp,
			Project:    r.Project,
			Category:   r.Category,
			DurationMs: r.DurationMs,
		})
	}
	report, err := i.imports.Import(ctx, input.Source, records)
	return toImportOutput(report), err
}

func (i *Interactor) Finalize(ctx context.Context) (dto.FinalizeOutput, error) {
	n, err := i.tracking.FinalizePending(ctx)
	return dto.FinalizeOutput{DaysFinalized: n}, err
}

func (i *Interactor) Recalculate(ctx context.Context, input dto.RecalculateInput) (dto.RecalculateOutput, error) {
	report, err := i.maintenance.RecalculateAll(ctx, input.Force)
	return dto.RecalculateOutput{DaysRecomputed: report.DaysRecomputed, DaysSkipped: report.DaysSkipped}, err
}

func (i *Interactor) RebuildAggregates(ctx context.Context) (int, error) {
	return i.maintenance.RebuildAggregates(ctx)
}

func toDaySummaryOutput(summary domain.DaySessionSummary, live bool) dto.DaySummaryOutput {
	out := dto.DaySummaryOutput{
		DateKey:         summary.DateKey,
		Live:            live,
		Sessions:        make([]dto.SessionOutput, 0, len(summary.Sessions)),
		TotalCodingMs:   summary.TotalCodingMs,
		TotalPlanningMs: summary.TotalPlanningMs,
		TotalTimeMs:     summary.TotalTimeMs,
	}
	for _, s := range summary.Sessions {
		segments := make([]dto.SegmentOutput, 0, len(s.Segments))
		for _, seg := range s.Segments {
			segments = append(segments, dto.SegmentOutput{Start: seg.Start, End: seg.End, Type: string(seg.Type)})
		}
		out.Sessions = append(out.Sessions, dto.SessionOutput{
			Start:          s.Start,
			End:            s.End,
			DurationMs:     s.DurationMs,
			HeartbeatCount: s.HeartbeatCount,
			Projects:       append([]string{}, s.Projects...),
			CodingMs:       s.CodingMs,
			PlanningMs:     s.PlanningMs,
			Segments:       segments,
		})
	}
	return out
}

func toImportOutput(report domain.ImportReport) dto.ImportOutput {
	out := dto.ImportOutput{
		RunID:              report.RunID,
		DaysReplaced:       report.DaysReplaced,
		DaysSkipped:        report.DaysSkipped,
		HeartbeatsReplaced: report.HeartbeatsReplaced,
		Days:               make([]dto.ImportDayOutput, 0, len(report.Days)),
	}
	for _, d := range report.Days {
		out.Days = append(out.Days, dto.ImportDayOutput{
			DateKey:          d.DateKey,
			Replaced:         d.Replaced,
			Reason:           d.Reason,
			ImportedCodingMs: d.ImportedCodingMs,
			ExistingCodingMs: d.ExistingCodingMs,
			Heartbeats:       d.Heartbeats,
		})
	}
	return out
}
