package out

import (
	"context"

	"worktally/internal/modules/importer/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	FetchActivity(ctx context.Context, manifest domain.Manifest, req domain.FetchRequest) ([]domain.ActivityRecord, error)
}
