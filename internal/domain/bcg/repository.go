package bcg

import (
	"context"

	"autoerp/internal/core/id"
)

// Repository persists BCGs and their lines.
type Repository interface {
	// Create inserts the BCG and its Lignes.
	Create(ctx context.Context, b *BCG) error
	GetByID(ctx context.Context, bcgID id.ID) (*BCG, error)
	// GetForUpdate locks the BCG row and loads its lines.
	GetForUpdate(ctx context.Context, bcgID id.ID) (*BCG, error)
	Update(ctx context.Context, b *BCG) error
	UpdateLignes(ctx context.Context, lines []Ligne) error
	Lignes(ctx context.Context, bcgID id.ID) ([]Ligne, error)
	List(ctx context.Context, f Filter) ([]BCG, int64, error)
}
