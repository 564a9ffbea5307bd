package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/domain/bcg"
	"autoerp/internal/domain/stock"
)

type TransferRequest struct {
	ArticleID   id.ID  `json:"article_id" binding:"required"`
	FromAgence  id.ID  `json:"from_agence" binding:"required"`
	ToAgence    id.ID  `json:"to_agence" binding:"required,nefield=FromAgence"`
	Quantite    int64  `json:"quantite" binding:"required,gt=0"`
	Commentaire string `json:"commentaire"`
}

func (r *TransferRequest) ToInput() stock.TransferInput {
	return stock.TransferInput{
		ArticleID:   r.ArticleID,
		FromAgence:  r.FromAgence,
		ToAgence:    r.ToAgence,
		Quantite:    r.Quantite,
		Commentaire: r.Commentaire,
	}
}

type InventoryRequest struct {
	AgenceID id.ID                  `json:"agence_id" binding:"required"`
	Items    []InventoryItemRequest `json:"items" binding:"required,min=1,dive"`
}

type InventoryItemRequest struct {
	ArticleID   id.ID  `json:"article_id" binding:"required"`
	Counted     *int64 `json:"quantite_comptee" binding:"required,gte=0"`
	Commentaire string `json:"commentaire"`
}

func (r *InventoryRequest) ToItems() []stock.InventoryItem {
	items := make([]stock.InventoryItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, stock.InventoryItem{
			ArticleID:   it.ArticleID,
			Counted:     *it.Counted,
			Commentaire: it.Commentaire,
		})
	}
	return items
}

type WhereQuery struct {
	ArticleID string `form:"article_id" binding:"required,uuid"`
}

type SeuilQuery struct {
	AgenceID string `form:"agence_id" binding:"omitempty,uuid"`
}

func (q *SeuilQuery) Agence() *id.ID {
	return optID(q.AgenceID)
}

type MovementQuery struct {
	PageQuery
	ArticleID string `form:"article_id" binding:"omitempty,uuid"`
	AgenceID  string `form:"agence_id" binding:"omitempty,uuid"`
	Type      string `form:"type" binding:"omitempty,oneof=ACHAT VENTE TRANSFERT BCG BRT INVENTAIRE AVOIR_CLIENT"`
	Reference string `form:"reference"`
	DateDebut string `form:"date_debut" binding:"omitempty,datetime=2006-01-02"`
	DateFin   string `form:"date_fin" binding:"omitempty,datetime=2006-01-02"`
}

func (q *MovementQuery) ToFilter() stock.MovementFilter {
	return stock.MovementFilter{
		Page:      q.ToPage(),
		ArticleID: optID(q.ArticleID),
		AgenceID:  optID(q.AgenceID),
		Type:      q.Type,
		Reference: q.Reference,
		DateDebut: datePtr(q.DateDebut),
		DateFin:   datePtr(q.DateFin),
	}
}

// BCGRequest loads a vehicle from a depot.
type BCGRequest struct {
	DepotSourceID id.ID             `json:"depot_source_id" binding:"required"`
	VehiculeID    id.ID             `json:"vehicule_id" binding:"required,nefield=DepotSourceID"`
	CommercialID  *id.ID            `json:"commercial_id"`
	Commentaire   string            `json:"commentaire"`
	Lignes        []BCGLigneRequest `json:"lignes" binding:"required,min=1,dive"`
}

type BCGLigneRequest struct {
	ArticleID   id.ID  `json:"article_id" binding:"required"`
	Quantite    int64  `json:"quantite" binding:"required,gt=0"`
	Commentaire string `json:"commentaire"`
}

func (r *BCGRequest) ToInput() bcg.CreateInput {
	lignes := make([]bcg.LigneInput, 0, len(r.Lignes))
	for _, l := range r.Lignes {
		lignes = append(lignes, bcg.LigneInput{ArticleID: l.ArticleID, Quantite: l.Quantite, Commentaire: l.Commentaire})
	}
	return bcg.CreateInput{
		DepotSourceID: r.DepotSourceID,
		VehiculeID:    r.VehiculeID,
		CommercialID:  r.CommercialID,
		Commentaire:   r.Commentaire,
		Lignes:        lignes,
	}
}

// RetourRequest closes a BCG: per line, what was sold on the road and what
// comes back to the depot.
type RetourRequest struct {
	Commentaire string               `json:"commentaire"`
	Lignes      []RetourLigneRequest `json:"lignes" binding:"required,min=1,dive"`
}

type RetourLigneRequest struct {
	ArticleID         id.ID `json:"article_id" binding:"required"`
	QuantiteVendue    int64 `json:"quantite_vendue" binding:"gte=0"`
	QuantiteRetournee int64 `json:"quantite_retournee" binding:"gte=0"`
}

func (r *RetourRequest) ToInput() bcg.RetourInput {
	lignes := make([]bcg.RetourLigne, 0, len(r.Lignes))
	for _, l := range r.Lignes {
		lignes = append(lignes, bcg.RetourLigne{
			ArticleID:         l.ArticleID,
			QuantiteVendue:    l.QuantiteVendue,
			QuantiteRetournee: l.QuantiteRetournee,
		})
	}
	return bcg.RetourInput{Commentaire: r.Commentaire, Lignes: lignes}
}

type BCGListQuery struct {
	PageQuery
	Statut     string `form:"statut" binding:"omitempty,oneof=brouillon charge retourne"`
	VehiculeID string `form:"vehicule_id" binding:"omitempty,uuid"`
	DepotID    string `form:"depot_id" binding:"omitempty,uuid"`
}

func (q *BCGListQuery) ToFilter() bcg.Filter {
	return bcg.Filter{
		Page:       q.ToPage(),
		Statut:     q.Statut,
		VehiculeID: optID(q.VehiculeID),
		DepotID:    optID(q.DepotID),
	}
}
