package workflow

import (
	"context"
)

// Audit log of settlement references
type History interface {
	Record(ctx context.Context, reference, kind string) error
}

// Answers whether an address has joined the shielded pool.
// Always reads the store, the flag is never cached.
type Registry interface {
	IsRegistered(ctx context.Context, address string) (bool, error)
}

// Discards records, used when there's no audit log configured
type NoHistory struct{}

func (NoHistory) Record(context.Context, string, string) error { return nil }
