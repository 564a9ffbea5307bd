// Package tx defines the transaction boundary used by domain services.
package tx

import (
	"context"
)

// Manager runs fn inside a database transaction. A non-nil error from fn
// rolls back; nested calls reuse the transaction found in ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions.
type ReadOnlyManager interface {
	Manager
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn directly. Used by unit tests with in-memory repositories.
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
