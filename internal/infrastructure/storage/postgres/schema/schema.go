// Package schema embeds the SQL that creates the meta and tenant databases.
package schema

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed meta.sql
var Meta string

//go:embed tenant.sql
var Tenant string

// Apply runs script in a single transaction. Every statement is idempotent.
func Apply(ctx context.Context, pool *pgxpool.Pool, script string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return tx.Commit(ctx)
}
