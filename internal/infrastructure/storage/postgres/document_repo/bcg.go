package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/bcg"
	"autoerp/internal/infrastructure/storage/postgres"
)

// BCGRepo implements bcg.Repository.
type BCGRepo struct {
	table *postgres.Table[bcg.BCG]
}

func NewBCGRepo() *BCGRepo {
	return &BCGRepo{table: postgres.NewTable[bcg.BCG]("bcg", "bcg")}
}

func (r *BCGRepo) Create(ctx context.Context, b *bcg.BCG) error {
	if err := r.table.Insert(ctx, b); err != nil {
		return err
	}
	rows := make([][]any, 0, len(b.Lignes))
	for i := range b.Lignes {
		b.Lignes[i].BCGID = b.ID
		rows = append(rows, b.Lignes[i].Values())
	}
	return insertLines(ctx, "lignes_bcg", bcg.LigneColumns, rows)
}

func (r *BCGRepo) GetByID(ctx context.Context, bcgID id.ID) (*bcg.BCG, error) {
	return r.table.GetByID(ctx, bcgID, false)
}

func (r *BCGRepo) GetForUpdate(ctx context.Context, bcgID id.ID) (*bcg.BCG, error) {
	b, err := r.table.GetByID(ctx, bcgID, true)
	if err != nil {
		return nil, err
	}
	if b.Lignes, err = r.Lignes(ctx, bcgID); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BCGRepo) Update(ctx context.Context, b *bcg.BCG) error {
	return r.table.Update(ctx, b.ID, b, "numero", "depot_source_id", "vehicule_id", "created_by")
}

// UpdateLignes stores the reconciled quantities.
func (r *BCGRepo) UpdateLignes(ctx context.Context, lines []bcg.Ligne) error {
	for _, l := range lines {
		_, err := postgres.Exec(ctx, postgres.Builder.Update("lignes_bcg").
			Set("quantite_retournee", l.QuantiteRetournee).
			Set("quantite_vendue", l.QuantiteVendue).
			Where(squirrel.Eq{"id": l.ID}))
		if err != nil {
			return fmt.Errorf("update bcg line: %w", err)
		}
	}
	return nil
}

func (r *BCGRepo) Lignes(ctx context.Context, bcgID id.ID) ([]bcg.Ligne, error) {
	q := postgres.Builder.Select(
		"l.id", "l.bcg_id", "l.article_id", "l.quantite_chargee", "l.quantite_retournee",
		"l.quantite_vendue", "l.commentaire", "a.sku", "a.libelle",
	).From("lignes_bcg l").
		Join("articles a ON a.id = l.article_id").
		Where(squirrel.Eq{"l.bcg_id": bcgID}).
		OrderBy("a.sku")
	lines, err := postgres.SelectAll[bcg.Ligne](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load bcg lines: %w", err)
	}
	return lines, nil
}

func (r *BCGRepo) List(ctx context.Context, f bcg.Filter) ([]bcg.BCG, int64, error) {
	q := r.table.Select()
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	if f.VehiculeID != nil {
		q = q.Where(squirrel.Eq{"vehicule_id": *f.VehiculeID})
	}
	if f.DepotID != nil {
		q = q.Where(squirrel.Eq{"depot_source_id": *f.DepotID})
	}
	return postgres.Paginate[bcg.BCG](ctx, q, f.Page, "created_at DESC")
}

var _ bcg.Repository = (*BCGRepo)(nil)
