package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
	"autoerp/internal/domain/order"
)

type LigneRequest struct {
	ArticleID id.ID `json:"article_id" binding:"required"`
	Quantite  int64 `json:"quantite" binding:"required,gt=0"`
	// Defaults to the article's prix_standard.
	PrixUnitaire      *types.Money `json:"prix_unitaire"`
	RemisePourcentage types.Money  `json:"remise_pourcentage" binding:"gte=0,lte=100"`
	Commentaire       string       `json:"commentaire"`
}

func (r LigneRequest) toInput() order.LigneInput {
	return order.LigneInput{
		ArticleID:         r.ArticleID,
		Quantite:          r.Quantite,
		PrixUnitaire:      r.PrixUnitaire,
		RemisePourcentage: r.RemisePourcentage,
		Commentaire:       r.Commentaire,
	}
}

type CommandeRequest struct {
	ClientID               id.ID          `json:"client_id" binding:"required"`
	CommercialID           *id.ID         `json:"commercial_id"`
	AgenceID               *id.ID         `json:"agence_id"`
	DateLivraisonSouhaitee *Date          `json:"date_livraison_souhaitee"`
	Commentaire            string         `json:"commentaire"`
	EncaissementType       string         `json:"encaissement_type" binding:"omitempty,oneof=especes cheque virement a_credit"`
	EncaissementMontant    types.Money    `json:"encaissement_montant" binding:"gte=0"`
	EncaissementReference  string         `json:"encaissement_reference"`
	Lignes                 []LigneRequest `json:"lignes" binding:"required,min=1,dive"`
}

func (r *CommandeRequest) ToInput() order.CreateInput {
	lignes := make([]order.LigneInput, 0, len(r.Lignes))
	for _, l := range r.Lignes {
		lignes = append(lignes, l.toInput())
	}
	return order.CreateInput{
		ClientID:               r.ClientID,
		CommercialID:           r.CommercialID,
		AgenceID:               r.AgenceID,
		DateLivraisonSouhaitee: r.DateLivraisonSouhaitee.Ptr(),
		Commentaire:            r.Commentaire,
		EncaissementType:       r.EncaissementType,
		EncaissementMontant:    r.EncaissementMontant,
		EncaissementReference:  r.EncaissementReference,
		Lignes:                 lignes,
	}
}

type LivrerRequest struct {
	DateLivraison *Date  `json:"date_livraison"`
	Commentaire   string `json:"commentaire"`
}

func (r *LivrerRequest) ToInput() order.LivrerInput {
	return order.LivrerInput{DateLivraison: r.DateLivraison.Ptr(), Commentaire: r.Commentaire}
}

type AnnulerRequest struct {
	Motif string `json:"motif" binding:"required,min=3"`
}

type PaiementRequest struct {
	Montant   types.Money `json:"montant" binding:"required,gt=0"`
	Mode      string      `json:"mode" binding:"required,oneof=especes cheque virement effet"`
	Reference string      `json:"reference"`
	Date      *Date       `json:"date"`
}

func (r *PaiementRequest) ToInput() order.PaiementInput {
	return order.PaiementInput{
		Montant:   r.Montant,
		Mode:      r.Mode,
		Reference: r.Reference,
		Date:      r.Date.Ptr(),
	}
}

type CommandeListQuery struct {
	PageQuery
	Statut       string `form:"statut" binding:"omitempty,oneof=brouillon validee livree facturee annulee"`
	ClientID     string `form:"client_id" binding:"omitempty,uuid"`
	CommercialID string `form:"commercial_id" binding:"omitempty,uuid"`
	AgenceID     string `form:"agence_id" binding:"omitempty,uuid"`
	DateDebut    string `form:"date_debut" binding:"omitempty,datetime=2006-01-02"`
	DateFin      string `form:"date_fin" binding:"omitempty,datetime=2006-01-02"`
	IsEncaisse   *bool  `form:"is_encaisse"`
	Source       string `form:"source" binding:"omitempty,oneof=interne portail"`
	Search       string `form:"search"`
}

func (q *CommandeListQuery) ToFilter() order.Filter {
	return order.Filter{
		Page:         q.ToPage(),
		Statut:       q.Statut,
		ClientID:     optID(q.ClientID),
		CommercialID: optID(q.CommercialID),
		AgenceID:     optID(q.AgenceID),
		DateDebut:    datePtr(q.DateDebut),
		DateFin:      datePtr(q.DateFin),
		IsEncaisse:   q.IsEncaisse,
		Source:       q.Source,
		Search:       q.Search,
	}
}

type FactureListQuery struct {
	PageQuery
	Statut       string `form:"statut" binding:"omitempty,oneof=brouillon declaree impayee payee"`
	ClientID     string `form:"client_id" binding:"omitempty,uuid"`
	CommercialID string `form:"commercial_id" binding:"omitempty,uuid"`
	AgenceID     string `form:"agence_id" binding:"omitempty,uuid"`
	DateDebut    string `form:"date_debut" binding:"omitempty,datetime=2006-01-02"`
	DateFin      string `form:"date_fin" binding:"omitempty,datetime=2006-01-02"`
}

func (q *FactureListQuery) ToFilter() order.FactureFilter {
	return order.FactureFilter{
		Page:         q.ToPage(),
		Statut:       q.Statut,
		ClientID:     optID(q.ClientID),
		CommercialID: optID(q.CommercialID),
		AgenceID:     optID(q.AgenceID),
		DateDebut:    datePtr(q.DateDebut),
		DateFin:      datePtr(q.DateFin),
	}
}
