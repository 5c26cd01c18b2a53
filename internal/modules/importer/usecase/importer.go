package usecase

import (
	"context"
	"fmt"

	activitydto "worktally/internal/modules/activity/dto"
	activityin "worktally/internal/modules/activity/port/in"
	"worktally/internal/modules/importer/domain"
	"worktally/internal/modules/importer/dto"
	importerin "worktally/internal/modules/importer/port/in"
	"worktally/internal/modules/importer/service"
)

type Interactor struct {
	svc      *service.ImporterService
	activity activityin.Usecase
}

func NewInteractor(svc *service.ImporterService, activity activityin.Usecase) importerin.Usecase {
	return &Interactor{svc: svc, activity: activity}
}

func (i *Interactor) List(ctx context.Context) ([]dto.PluginInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

// Run fetches history from a plugin and merges it through the activity
// import policy.
func (i *Interactor) Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	records, meta, err := i.svc.Fetch(ctx, input.PluginName, domain.FetchRequest{FromMs: input.FromMs, ToMs: input.ToMs})
	if err != nil {
		return dto.RunOutput{}, err
	}
	source := "plugin:" + input.PluginName
	if meta.Source != "" {
		source = fmt.Sprintf("%s/%s", source, meta.Source)
	}
	importRecords := make([]activitydto.ImportRecord, 0, len(records))
	for _, r := range records {
		importRecords = append(importRecords, activitydto.ImportRecord{
			Timestamp:  r.Timestamp,
			Project:    r.Project,
			Category:   r.Category,
			DurationMs: r.DurationMs,
		})
	}
	report, err := i.activity.Import(ctx, activitydto.ImportInput{Source: source, Records: importRecords})
	return dto.RunOutput{PluginName: input.PluginName, Source: source, Records: len(records), Import: report}, err
}
