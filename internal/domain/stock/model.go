// Package stock is the stock ledger: one balance row per (article, agence)
// and an append-only log of signed movements.
package stock

import (
	"bytes"
	"time"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
)

// Movement types.
const (
	TypeAchat       = "ACHAT"
	TypeVente       = "VENTE"
	TypeTransfert   = "TRANSFERT"
	TypeBCG         = "BCG"
	TypeBRT         = "BRT"
	TypeInventaire  = "INVENTAIRE"
	TypeAvoirClient = "AVOIR_CLIENT"
)

// MovementTypes lists every movement type.
var MovementTypes = []string{TypeAchat, TypeVente, TypeTransfert, TypeBCG, TypeBRT, TypeInventaire, TypeAvoirClient}

// Key identifies a stock row.
type Key struct {
	ArticleID id.ID
	AgenceID  id.ID
}

// Less orders keys by article then agence; rows are always locked in this order.
func (k Key) Less(o Key) bool {
	if c := bytes.Compare(k.ArticleID[:], o.ArticleID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.AgenceID[:], o.AgenceID[:]) < 0
}

// Stock is the balance of one article in one agence.
// Quantite is what can still be sold; reserved units are moved to QuantiteReservee.
type Stock struct {
	ArticleID        id.ID       `db:"article_id" json:"article_id"`
	AgenceID         id.ID       `db:"agence_id" json:"agence_id"`
	Quantite         int64       `db:"quantite" json:"quantite"`
	QuantiteReservee int64       `db:"quantite_reservee" json:"quantite_reservee"`
	ValeurStock      types.Money `db:"valeur_stock" json:"valeur_stock"`
	LastMovement     *time.Time  `db:"last_movement" json:"last_movement"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Key returns the row key.
func (s *Stock) Key() Key {
	return Key{ArticleID: s.ArticleID, AgenceID: s.AgenceID}
}

// StockView is a stock row joined with its article and agence.
type StockView struct {
	Stock
	SKU        string `db:"sku" json:"sku"`
	Libelle    string `db:"libelle" json:"libelle"`
	SeuilMin   int64  `db:"seuil_min" json:"seuil_min"`
	AgenceNom  string `db:"agence_nom" json:"agence_nom"`
	AgenceCode string `db:"agence_code" json:"agence_code"`
}

// Movement is one ledger entry. Quantite is signed: negative leaves the agence.
type Movement struct {
	ID           id.ID       `db:"id" json:"id"`
	ArticleID    id.ID       `db:"article_id" json:"article_id"`
	AgenceID     id.ID       `db:"agence_id" json:"agence_id"`
	Type         string      `db:"type" json:"type"`
	Quantite     int64       `db:"quantite" json:"quantite"`
	PrixUnitaire types.Money `db:"prix_unitaire" json:"prix_unitaire"`
	ValeurTotale types.Money `db:"valeur_totale" json:"valeur_totale"`
	Reference    string      `db:"reference" json:"reference"`
	ReferenceID  *id.ID      `db:"reference_id" json:"reference_id"`
	Commentaire  string      `db:"commentaire" json:"commentaire"`
	CreatedBy    *id.ID      `db:"created_by" json:"created_by"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// MovementColumns is the insert column order of Movement.
var MovementColumns = []string{
	"id", "article_id", "agence_id", "type", "quantite", "prix_unitaire", "valeur_totale",
	"reference", "reference_id", "commentaire", "created_by", "created_at",
}

// Values returns the row in MovementColumns order.
func (m *Movement) Values() []any {
	return []any{
		m.ID, m.ArticleID, m.AgenceID, m.Type, m.Quantite, m.PrixUnitaire, m.ValeurTotale,
		m.Reference, m.ReferenceID, m.Commentaire, m.CreatedBy, m.CreatedAt,
	}
}

// MovementFilter selects movements.
type MovementFilter struct {
	entity.Page
	ArticleID *id.ID
	AgenceID  *id.ID
	Type      string
	Reference string
	DateDebut *time.Time
	DateFin   *time.Time
}

// TransferInput moves Quantite units of an article between two agences.
type TransferInput struct {
	ArticleID   id.ID
	FromAgence  id.ID
	ToAgence    id.ID
	Quantite    int64
	Commentaire string
}

// TransferResult is returned by Transfer.
type TransferResult struct {
	Reference string     `json:"reference"`
	From      Stock      `json:"from"`
	To        Stock      `json:"to"`
	Movements []Movement `json:"movements"`
}

// InventoryItem is one counted article.
type InventoryItem struct {
	ArticleID   id.ID
	Counted     int64
	Commentaire string
}

// InventoryLine reports the adjustment of one article.
type InventoryLine struct {
	ArticleID        id.ID       `json:"article_id"`
	Libelle          string      `json:"libelle"`
	QuantiteAncienne int64       `json:"quantite_ancienne"`
	QuantiteNouvelle int64       `json:"quantite_nouvelle"`
	Ecart            int64       `json:"ecart"`
	ValeurEcart      types.Money `json:"valeur_ecart"`
}

// InventoryResult is returned by AdjustInventory.
type InventoryResult struct {
	Reference string          `json:"reference"`
	AgenceID  id.ID           `json:"agence_id"`
	Lines     []InventoryLine `json:"lines"`
}

// Location summarizes where an article is stocked.
type Location struct {
	ArticleID     id.ID       `json:"article_id"`
	Rows          []StockView `json:"stocks"`
	TotalQuantite int64       `json:"total_quantite"`
	TotalReservee int64       `json:"total_reservee"`
	TotalValeur   types.Money `json:"total_valeur"`
}

// ArticleInfo is what the ledger needs to know about an article.
type ArticleInfo struct {
	ID      id.ID       `db:"id"`
	Libelle string      `db:"libelle"`
	CMP     types.Money `db:"cmp"`
}
