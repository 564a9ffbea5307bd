// Package bcg handles vehicle loadouts: goods loaded from a depot into a
// sales vehicle (bon de chargement) and the end-of-round return.
package bcg

import (
	"slices"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/numerator"
)

// BCG statuses.
const (
	StatutBrouillon = "brouillon"
	StatutCharge    = "charge"
	StatutRetourne  = "retourne"
)

var Numbering = numerator.MonthlyConfig("BCG")

// BCG is a bon de chargement.
type BCG struct {
	entity.Base
	Numero        string     `db:"numero" json:"numero"`
	DepotSourceID id.ID      `db:"depot_source_id" json:"depot_source_id"`
	VehiculeID    id.ID      `db:"vehicule_id" json:"vehicule_id"`
	CommercialID  *id.ID     `db:"commercial_id" json:"commercial_id"`
	Statut        string     `db:"statut" json:"statut"`
	DateCharge    *time.Time `db:"date_charge" json:"date_charge"`
	DateRetour    *time.Time `db:"date_retour" json:"date_retour"`
	Commentaire   string     `db:"commentaire" json:"commentaire"`
	CreatedBy     *id.ID     `db:"created_by" json:"created_by"`
	Lignes        []Ligne    `db:"-" json:"lignes,omitempty"`
}

// Resource is the policy view of the BCG: the depot is the owning agence.
func (b *BCG) Resource() map[string]any {
	r := map[string]any{
		"agence_id":    b.DepotSourceID.String(),
		"to_agence_id": b.VehiculeID.String(),
	}
	if b.CommercialID != nil {
		r["commercial_id"] = b.CommercialID.String()
	}
	return r
}

func (b *BCG) RequireStatus(allowed ...string) error {
	if !slices.Contains(allowed, b.Statut) {
		return apperror.NewInvalidStatus("bcg", b.Statut, allowed...)
	}
	return nil
}

// Ligne is one loaded article.
type Ligne struct {
	ID                id.ID  `db:"id" json:"id"`
	BCGID             id.ID  `db:"bcg_id" json:"bcg_id"`
	ArticleID         id.ID  `db:"article_id" json:"article_id"`
	QuantiteChargee   int64  `db:"quantite_chargee" json:"quantite_chargee"`
	QuantiteRetournee int64  `db:"quantite_retournee" json:"quantite_retournee"`
	QuantiteVendue    int64  `db:"quantite_vendue" json:"quantite_vendue"`
	Commentaire       string `db:"commentaire" json:"commentaire"`
	SKU               string `db:"sku" json:"sku,omitempty"`
	Libelle           string `db:"libelle" json:"libelle,omitempty"`
}

// LigneColumns is the insert column order of Ligne.
var LigneColumns = []string{
	"id", "bcg_id", "article_id", "quantite_chargee", "quantite_retournee", "quantite_vendue", "commentaire",
}

func (l *Ligne) Values() []any {
	return []any{l.ID, l.BCGID, l.ArticleID, l.QuantiteChargee, l.QuantiteRetournee, l.QuantiteVendue, l.Commentaire}
}

// LigneInput is a requested loading line.
type LigneInput struct {
	ArticleID   id.ID
	Quantite    int64
	Commentaire string
}

// CreateInput loads a vehicle from a depot.
type CreateInput struct {
	DepotSourceID id.ID
	VehiculeID    id.ID
	CommercialID  *id.ID
	Commentaire   string
	Lignes        []LigneInput
}

// RetourLigne reports the outcome of one loaded article.
type RetourLigne struct {
	ArticleID         id.ID
	QuantiteVendue    int64
	QuantiteRetournee int64
}

// RetourInput closes a round.
type RetourInput struct {
	Commentaire string
	Lignes      []RetourLigne
}

// Filter selects BCGs.
type Filter struct {
	entity.Page
	Statut     string
	VehiculeID *id.ID
	DepotID    *id.ID
}
