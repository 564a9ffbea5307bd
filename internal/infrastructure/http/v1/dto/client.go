package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/domain/client"
)

// ClientRequest creates or replaces a client. Particuliers need nom and
// prenom, entreprises a raison sociale; the service checks which applies.
type ClientRequest struct {
	Type           string   `json:"type" binding:"required,oneof=particulier entreprise"`
	Nom            string   `json:"nom"`
	Prenom         string   `json:"prenom"`
	RaisonSociale  string   `json:"raison_sociale"`
	Telephone      string   `json:"telephone" binding:"required,phone_ma"`
	Email          string   `json:"email" binding:"omitempty,email"`
	Adresse        string   `json:"adresse"`
	Ville          string   `json:"ville"`
	CodePostal     string   `json:"code_postal"`
	Latitude       *float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude" binding:"omitempty,longitude"`
	TypeEntreprise string   `json:"type_entreprise" binding:"omitempty,oneof=SARL SA AE"`
	RC             string   `json:"rc"`
	ICE            string   `json:"ice" binding:"omitempty,numeric,len=15"`
	TVA            string   `json:"tva"`
	IsProspect     bool     `json:"is_prospect"`
	CommercialID   *id.ID   `json:"commercial_id"`
	AgenceID       *id.ID   `json:"agence_id"`
}

func (r *ClientRequest) ToInput() client.Input {
	return client.Input{
		Type:           r.Type,
		Nom:            r.Nom,
		Prenom:         r.Prenom,
		RaisonSociale:  r.RaisonSociale,
		Telephone:      r.Telephone,
		Email:          r.Email,
		Adresse:        r.Adresse,
		Ville:          r.Ville,
		CodePostal:     r.CodePostal,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		TypeEntreprise: r.TypeEntreprise,
		RC:             r.RC,
		ICE:            r.ICE,
		TVA:            r.TVA,
		IsProspect:     r.IsProspect,
		CommercialID:   r.CommercialID,
		AgenceID:       r.AgenceID,
	}
}

type ClientListQuery struct {
	PageQuery
	Search       string `form:"search"`
	Type         string `form:"type" binding:"omitempty,oneof=particulier entreprise"`
	IsProspect   *bool  `form:"is_prospect"`
	IsActive     *bool  `form:"is_active"`
	CommercialID string `form:"commercial_id" binding:"omitempty,uuid"`
	AgenceID     string `form:"agence_id" binding:"omitempty,uuid"`
}

func (q *ClientListQuery) ToFilter() client.Filter {
	return client.Filter{
		Page:         q.ToPage(),
		Search:       q.Search,
		Type:         q.Type,
		IsProspect:   q.IsProspect,
		IsActive:     q.IsActive,
		CommercialID: optID(q.CommercialID),
		AgenceID:     optID(q.AgenceID),
	}
}
