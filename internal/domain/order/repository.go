package order

import (
	"context"

	"autoerp/internal/core/id"
)

// Repository persists commandes, their lines, delivery notes, factures and payments.
type Repository interface {
	Create(ctx context.Context, c *Commande) error
	GetByID(ctx context.Context, commandeID id.ID) (*Commande, error)
	GetByNumero(ctx context.Context, numero string) (*Commande, error)

	// GetForUpdate loads the commande and its lines with the header row locked.
	GetForUpdate(ctx context.Context, commandeID id.ID) (*Commande, error)
	Update(ctx context.Context, c *Commande) error
	List(ctx context.Context, f Filter) ([]Commande, int64, error)
	Lignes(ctx context.Context, commandeID id.ID) ([]Ligne, error)

	CreateBL(ctx context.Context, bl *BonLivraison) error
	GetBL(ctx context.Context, blID id.ID) (*BonLivraison, error)

	CreateFacture(ctx context.Context, f *Facture) error
	GetFacture(ctx context.Context, factureID id.ID) (*Facture, error)
	GetFactureForUpdate(ctx context.Context, factureID id.ID) (*Facture, error)
	UpdateFacture(ctx context.Context, f *Facture) error
	ListFactures(ctx context.Context, f FactureFilter) ([]Facture, int64, error)
	CreatePaiement(ctx context.Context, p *Paiement) error
	Paiements(ctx context.Context, factureID id.ID) ([]Paiement, error)
}
