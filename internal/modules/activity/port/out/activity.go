package out

import (
	"context"
	"time"

	"worktally/internal/modules/activity/domain"
)

// HeartbeatStore is the durable heartbeat log. Ranges are [startMs, endMs)
// and results are ordered by timestamp, then id.
type HeartbeatStore interface {
	AppendHeartbeat(ctx context.Context, h domain.Heartbeat) (domain.Heartbeat, error)
	ListHeartbeats(ctx context.Context, startMs, endMs int64) ([]domain.Heartbeat, error)
	ReplaceHeartbeats(ctx context.Context, startMs, endMs int64, heartbeats []domain.Heartbeat) (int, error)
	LastHeartbeatID(ctx context.Context, startMs, endMs int64) (string, error)
	HeartbeatBounds(ctx context.Context) (firstMs, lastMs int64, ok bool, err error)
}

// DailyCacheStore returns apperrors.ErrNotFound for missing entries.
type DailyCacheStore interface {
	GetDaily(ctx context.Context, dateKey string) (domain.DailyEntry, error)
	PutDaily(ctx context.Context, entry domain.DailyEntry) error
	SumDailyTotals(ctx context.Context, fromKey, toKey string) (int64, error)
	HasSessions(ctx context.Context, fromKey, toKey string) (bool, error)
	DailyKeyBounds(ctx context.Context) (earliest, latest string, ok bool, err error)
}

// AggregateCacheStore returns apperrors.ErrNotFound for missing entries.
type AggregateCacheStore interface {
	GetAggregate(ctx context.Context, rangeKey string) (domain.AggregateEntry, error)
	PutAggregate(ctx context.Context, entry domain.AggregateEntry) error
	AddAggregateDelta(ctx context.Context, rangeKey string, delta int64, at time.Time) (bool, error)
	DeleteAggregates(ctx context.Context) (int, error)
}

type ImportRunStore interface {
	SaveImportRun(ctx context.Context, run domain.ImportRun) error
}

type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Store is everything a single storage backend provides.
type Store interface {
	HeartbeatStore
	DailyCacheStore
	AggregateCacheStore
	ImportRunStore
	Close() error
}
