package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record changed concurrently")
	ErrDuplicate = errors.New("record already exists")
)

// Column name to expected value. Nil matches NULL.
type Filter map[string]interface{}

// Column name to new value. Nil sets NULL, Increment adds to the current value.
type Changes map[string]interface{}

type Increment struct {
	By int
}

func Inc(by int) Increment {
	return Increment{By: by}
}

// Generic record store for one entity type. No transactions span multiple calls.
type Collection[T any] interface {
	// Fails with ErrDuplicate upon key or unique index collision
	Create(ctx context.Context, v *T) error

	// Fails with ErrNotFound
	FindOne(ctx context.Context, key string) (*T, error)

	// Records in insertion order, unless options say otherwise
	FindMany(ctx context.Context, filter Filter, opts ...Option) ([]*T, error)

	// Applies changes only if the record still matches the guard.
	// Fails with ErrNotFound when there's no record and ErrConflict when the guard doesn't match.
	UpdateOne(ctx context.Context, key string, guard Filter, changes Changes) error

	// Same semantics as UpdateOne
	DeleteOne(ctx context.Context, key string, guard Filter) error
}

type query struct {
	descending bool
	limit      int
}

type Option func(*query)

// Newest records first
func Descending() Option {
	return func(q *query) {
		q.descending = true
	}
}

// At most n records, 0 means no limit
func Limit(n int) Option {
	return func(q *query) {
		q.limit = n
	}
}

func newQuery(opts []Option) (q query) {
	for _, opt := range opts {
		opt(&q)
	}
	return
}
