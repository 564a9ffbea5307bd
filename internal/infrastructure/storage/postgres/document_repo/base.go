// Package document_repo stores commandes, delivery notes, factures and BCGs.
// In Database-per-Tenant architecture, TxManager is obtained from context per-request.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/infrastructure/storage/postgres"
)

// insertLines writes document lines, with COPY when a transaction is open.
func insertLines(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	txm := postgres.MustGetTxManager(ctx)
	if txm.GetTx(ctx) != nil {
		if _, err := txm.CopyFromSlice(ctx, table, columns, rows); err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
		return nil
	}
	q := postgres.Builder.Insert(table).Columns(columns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	if _, err := postgres.Exec(ctx, q); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// period restricts a date column to [debut, fin], both days included.
func period(q squirrel.SelectBuilder, col string, debut, fin *time.Time) squirrel.SelectBuilder {
	if debut != nil {
		q = q.Where(squirrel.GtOrEq{col: *debut})
	}
	if fin != nil {
		q = q.Where(squirrel.Lt{col: fin.AddDate(0, 0, 1)})
	}
	return q
}
