package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/order"
	"autoerp/internal/infrastructure/storage/postgres"
)

func (r *OrderRepo) CreateFacture(ctx context.Context, f *order.Facture) error {
	return r.factures.Insert(ctx, f)
}

func (r *OrderRepo) GetFacture(ctx context.Context, factureID id.ID) (*order.Facture, error) {
	return r.factures.GetByID(ctx, factureID, false)
}

func (r *OrderRepo) GetFactureForUpdate(ctx context.Context, factureID id.ID) (*order.Facture, error) {
	return r.factures.GetByID(ctx, factureID, true)
}

func (r *OrderRepo) UpdateFacture(ctx context.Context, f *order.Facture) error {
	return r.factures.Update(ctx, f.ID, f, "numero", "commande_id", "client_id")
}

func (r *OrderRepo) ListFactures(ctx context.Context, f order.FactureFilter) ([]order.Facture, int64, error) {
	q := r.factures.Select()
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	if f.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *f.ClientID})
	}
	if f.CommercialID != nil {
		q = q.Where(squirrel.Eq{"commercial_id": *f.CommercialID})
	}
	if f.AgenceID != nil {
		q = q.Where(squirrel.Eq{"agence_id": *f.AgenceID})
	}
	q = period(q, "date_facture", f.DateDebut, f.DateFin)
	return postgres.Paginate[order.Facture](ctx, q, f.Page, "date_facture DESC", "numero DESC")
}

func (r *OrderRepo) CreatePaiement(ctx context.Context, p *order.Paiement) error {
	return r.paiements.Insert(ctx, p)
}

// Paiements lists the payments of a facture, oldest first.
func (r *OrderRepo) Paiements(ctx context.Context, factureID id.ID) ([]order.Paiement, error) {
	rows, err := postgres.SelectAll[order.Paiement](ctx, r.paiements.Select().
		Where(squirrel.Eq{"facture_id": factureID}).
		OrderBy("date_paiement", "id"))
	if err != nil {
		return nil, fmt.Errorf("load paiements: %w", err)
	}
	return rows, nil
}
