// Package numerator implements document numbering on a sys_sequences table.
//
// Every call upserts the counter row of its series and period and returns
// the incremented value. The upsert takes a row lock that is held until the
// surrounding transaction ends, so two concurrent orders of the same month
// can never receive the same number and a rolled back order releases its
// number together with everything else it wrote.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "autoerp/internal/core/numerator"
	"autoerp/internal/infrastructure/storage/postgres"
)

// Querier is the subset of pgx used by the service.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const nextSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, 1)
	ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1, updated_at = now()
	RETURNING current_val`

const setSQL = `
	INSERT INTO sys_sequences (key, current_val)
	VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET current_val = $2, updated_at = now()
	RETURNING current_val`

// Service is the PostgreSQL Generator.
type Service struct {
	// static is set in tests; otherwise the tenant TxManager in ctx is used.
	static Querier
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to a fixed querier.
func New(q Querier) *Service {
	return &Service{static: q}
}

// NewFromContext creates a service resolving the tenant transaction from ctx.
func NewFromContext() *Service {
	return &Service{}
}

func (s *Service) querier(ctx context.Context) Querier {
	if s.static != nil {
		return s.static
	}
	return postgres.MustGetTxManager(ctx).GetQuerier(ctx)
}

// NextNumber increments the counter of cfg for period and formats it.
func (s *Service) NextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	key := cfg.Key(period)

	var n int64
	if err := s.querier(ctx).QueryRow(ctx, nextSQL, key).Scan(&n); err != nil {
		return "", fmt.Errorf("next number %s: %w", key, err)
	}
	return cfg.Format(period, n), nil
}

// SetNextNumber moves the counter so that the next call returns value.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := cfg.Key(period)
	var result int64
	if err := s.querier(ctx).QueryRow(ctx, setSQL, key, value-1).Scan(&result); err != nil {
		return fmt.Errorf("set next number %s: %w", key, err)
	}
	return nil
}
