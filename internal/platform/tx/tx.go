package tx

import "context"

// Manager runs fn inside one storage transaction. Stores pick the
// transaction up from the context passed to fn.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

// NoopManager runs fn directly, for in-memory stores and tests.
type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
