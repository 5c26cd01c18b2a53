package in

import (
	"context"

	"worktally/internal/modules/importer/dto"
	importerin "worktally/internal/modules/importer/port/in"
)

type CLIHandler struct {
	usecase importerin.Usecase
}

func NewCLIHandler(usecase importerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.PluginInfo, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	return h.usecase.Run(ctx, input)
}
