package stock

import (
	"context"

	"autoerp/internal/core/id"
)

// Repository persists balances and movements. Every write runs in the
// transaction carried by ctx.
type Repository interface {
	// EnsureStocks inserts a zero row for every key that has none.
	EnsureStocks(ctx context.Context, keys []Key) error

	// LockStocks selects the existing rows of keys FOR UPDATE, ordered by
	// (article_id, agence_id). Missing rows are absent from the result.
	LockStocks(ctx context.Context, keys []Key) ([]Stock, error)

	// SaveStocks upserts balance rows.
	SaveStocks(ctx context.Context, rows []Stock) error

	// InsertMovements appends ledger rows.
	InsertMovements(ctx context.Context, movements []Movement) error

	// Articles returns the cost data of the given articles.
	Articles(ctx context.Context, articleIDs []id.ID) (map[id.ID]ArticleInfo, error)

	// InitArticle creates a zero row for articleID in every active depot.
	InitArticle(ctx context.Context, articleID id.ID) (int64, error)

	ByArticle(ctx context.Context, articleID id.ID) ([]StockView, error)
	BelowThreshold(ctx context.Context, agenceID *id.ID) ([]StockView, error)
	ListMovements(ctx context.Context, f MovementFilter) ([]Movement, int64, error)
	HasMovements(ctx context.Context, articleID id.ID) (bool, error)
}
