package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
)

type OTPRequest struct {
	Telephone string `json:"telephone" binding:"required,phone_ma"`
}

type OTPVerifyRequest struct {
	Telephone string `json:"telephone" binding:"required,phone_ma"`
	Code      string `json:"code" binding:"required,len=6,numeric"`
}

// SessionResponse answers a successful OTP verification. The token is also
// set as the portal_session cookie.
type SessionResponse struct {
	SessionToken string         `json:"session_token"`
	ExpiresAt    string         `json:"expires_at"`
	Client       *client.Client `json:"client"`
}

type PortalRegisterRequest struct {
	Type           string `json:"type" binding:"required,oneof=particulier entreprise"`
	Nom            string `json:"nom"`
	Prenom         string `json:"prenom"`
	RaisonSociale  string `json:"raison_sociale"`
	Telephone      string `json:"telephone" binding:"required,phone_ma"`
	Email          string `json:"email" binding:"omitempty,email"`
	Adresse        string `json:"adresse"`
	Ville          string `json:"ville"`
	CodePostal     string `json:"code_postal"`
	TypeEntreprise string `json:"type_entreprise" binding:"omitempty,oneof=SARL SA AE"`
	RC             string `json:"rc"`
	ICE            string `json:"ice" binding:"omitempty,numeric,len=15"`
}

func (r *PortalRegisterRequest) ToInput() client.Input {
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
		TypeEntreprise: r.TypeEntreprise,
		RC:             r.RC,
		ICE:            r.ICE,
		IsProspect:     true,
	}
}

type CheckoutRequest struct {
	ClientID id.ID                 `json:"client_id" binding:"required"`
	Items    []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CheckoutItemRequest struct {
	ArticleID id.ID `json:"article_id" binding:"required"`
	Quantite  int64 `json:"quantite" binding:"required,gt=0"`
}

// ToItems drops any client-side price: the portal sells at prix_public.
func (r *CheckoutRequest) ToItems() []order.LigneInput {
	items := make([]order.LigneInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, order.LigneInput{ArticleID: it.ArticleID, Quantite: it.Quantite})
	}
	return items
}

type SousFamilleQuery struct {
	Famille string `form:"famille"`
}
