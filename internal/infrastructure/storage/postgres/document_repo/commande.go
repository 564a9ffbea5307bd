package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/order"
	"autoerp/internal/infrastructure/storage/postgres"
)

// OrderRepo implements order.Repository.
type OrderRepo struct {
	commandes *postgres.Table[order.Commande]
	bls       *postgres.Table[order.BonLivraison]
	factures  *postgres.Table[order.Facture]
	paiements *postgres.Table[order.Paiement]
}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{
		commandes: postgres.NewTable[order.Commande]("commandes", "commande"),
		bls:       postgres.NewTable[order.BonLivraison]("bons_livraison", "bon_livraison"),
		factures:  postgres.NewTable[order.Facture]("factures", "facture"),
		paiements: postgres.NewTable[order.Paiement]("paiements", "paiement"),
	}
}

// Create inserts the commande and its lines.
func (r *OrderRepo) Create(ctx context.Context, c *order.Commande) error {
	if err := r.commandes.Insert(ctx, c); err != nil {
		return err
	}
	rows := make([][]any, 0, len(c.Lignes))
	for i := range c.Lignes {
		c.Lignes[i].CommandeID = c.ID
		rows = append(rows, c.Lignes[i].Values())
	}
	return insertLines(ctx, "lignes_commande", order.LigneColumns, rows)
}

func (r *OrderRepo) GetByID(ctx context.Context, commandeID id.ID) (*order.Commande, error) {
	return r.commandes.GetByID(ctx, commandeID, false)
}

func (r *OrderRepo) GetByNumero(ctx context.Context, numero string) (*order.Commande, error) {
	return r.commandes.GetBy(ctx, squirrel.Eq{"numero": numero}, numero)
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, commandeID id.ID) (*order.Commande, error) {
	c, err := r.commandes.GetByID(ctx, commandeID, true)
	if err != nil {
		return nil, err
	}
	if c.Lignes, err = r.Lignes(ctx, commandeID); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *OrderRepo) Update(ctx context.Context, c *order.Commande) error {
	return r.commandes.Update(ctx, c.ID, c, "numero", "client_id", "created_by", "source")
}

func (r *OrderRepo) List(ctx context.Context, f order.Filter) ([]order.Commande, int64, error) {
	return postgres.Paginate[order.Commande](ctx, r.listQuery(f), f.Page, "date_commande DESC", "numero DESC")
}

func (r *OrderRepo) listQuery(f order.Filter) squirrel.SelectBuilder {
	q := r.commandes.Select()
	if f.Statut != "" {
		q = q.Where(squirrel.Eq{"statut": f.Statut})
	}
	if f.ExcludeBrouillon {
		q = q.Where(squirrel.NotEq{"statut": order.StatutBrouillon})
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
	if f.IsEncaisse != nil {
		q = q.Where(squirrel.Eq{"is_encaisse": *f.IsEncaisse})
	}
	if f.Source != "" {
		q = q.Where(squirrel.Eq{"source": f.Source})
	}
	if f.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"numero": "%" + f.Search + "%"},
			squirrel.Expr(`client_id IN (SELECT id FROM clients WHERE nom ILIKE ? OR raison_sociale ILIKE ?)`,
				"%"+f.Search+"%", "%"+f.Search+"%"),
		})
	}
	return period(q, "date_commande", f.DateDebut, f.DateFin)
}

// Lignes loads the lines with their article labels.
func (r *OrderRepo) Lignes(ctx context.Context, commandeID id.ID) ([]order.Ligne, error) {
	q := postgres.Builder.Select(
		"l.id", "l.commande_id", "l.article_id", "l.quantite", "l.prix_unitaire", "l.remise_pourcentage",
		"l.remise_montant", "l.montant_ht", "l.montant_ttc", "l.commentaire", "a.sku", "a.libelle",
	).From("lignes_commande l").
		Join("articles a ON a.id = l.article_id").
		Where(squirrel.Eq{"l.commande_id": commandeID}).
		OrderBy("l.id")
	lines, err := postgres.SelectAll[order.Ligne](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load commande lines: %w", err)
	}
	return lines, nil
}

func (r *OrderRepo) CreateBL(ctx context.Context, bl *order.BonLivraison) error {
	return r.bls.Insert(ctx, bl)
}

func (r *OrderRepo) GetBL(ctx context.Context, blID id.ID) (*order.BonLivraison, error) {
	return r.bls.GetByID(ctx, blID, false)
}

var _ order.Repository = (*OrderRepo)(nil)
