package catalog

import (
	"context"

	"autoerp/internal/core/id"
)

// Repository persists articles.
type Repository interface {
	Create(ctx context.Context, a *Article) error
	GetByID(ctx context.Context, articleID id.ID) (*Article, error)
	GetByIDs(ctx context.Context, articleIDs []id.ID) ([]Article, error)
	Update(ctx context.Context, a *Article) error
	ExistsBySKU(ctx context.Context, sku string, exclude *id.ID) (bool, error)
	List(ctx context.Context, f Filter) ([]Article, int64, error)

	// Familles returns the distinct famille labels of active articles.
	Familles(ctx context.Context) ([]string, error)

	// SousFamilles returns the distinct sous-famille labels, optionally within famille.
	SousFamilles(ctx context.Context, famille string) ([]string, error)
}
