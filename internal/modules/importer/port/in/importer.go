package in

import (
	"context"

	"worktally/internal/modules/importer/dto"
)

type Usecase interface {
	List(ctx context.Context) ([]dto.PluginInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error)
}
