// Package client manages customers and prospects: garages, resellers and
// individuals buying parts.
package client

import (
	"context"
	"net/mail"
	"strings"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain"
)

// Client kinds.
const (
	TypeParticulier = "particulier"
	TypeEntreprise  = "entreprise"
)

// Legal forms of an entreprise.
var typesEntreprise = map[string]bool{"SARL": true, "SA": true, "AE": true}

// Client is a customer or a prospect.
type Client struct {
	entity.Base
	Type           string   `db:"type" json:"type"`
	Nom            string   `db:"nom" json:"nom"`
	Prenom         string   `db:"prenom" json:"prenom"`
	RaisonSociale  string   `db:"raison_sociale" json:"raison_sociale"`
	Telephone      string   `db:"telephone" json:"telephone"`
	Email          string   `db:"email" json:"email"`
	Adresse        string   `db:"adresse" json:"adresse"`
	Ville          string   `db:"ville" json:"ville"`
	CodePostal     string   `db:"code_postal" json:"code_postal"`
	Latitude       *float64 `db:"latitude" json:"latitude"`
	Longitude      *float64 `db:"longitude" json:"longitude"`
	TypeEntreprise string   `db:"type_entreprise" json:"type_entreprise,omitempty"`
	RC             string   `db:"rc" json:"rc"`
	ICE            string   `db:"ice" json:"ice"`
	TVA            string   `db:"tva" json:"tva"`
	IsProspect     bool     `db:"is_prospect" json:"is_prospect"`
	IsActive       bool     `db:"is_active" json:"is_active"`
	CommercialID   *id.ID   `db:"commercial_id" json:"commercial_id"`
	AgenceID       *id.ID   `db:"agence_id" json:"agence_id"`
}

// DisplayName is the raison sociale of a company or "Prenom Nom".
func (c *Client) DisplayName() string {
	if c.Type == TypeEntreprise {
		return c.RaisonSociale
	}
	return strings.TrimSpace(c.Prenom + " " + c.Nom)
}

// Validate normalizes and checks the client.
func (c *Client) Validate(ctx context.Context) error {
	c.Telephone = domain.NormalizePhone(c.Telephone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.TypeEntreprise = strings.ToUpper(strings.TrimSpace(c.TypeEntreprise))

	switch c.Type {
	case TypeParticulier:
		if strings.TrimSpace(c.Nom) == "" || strings.TrimSpace(c.Prenom) == "" {
			return apperror.NewValidation("nom and prenom are required for a particulier").WithDetail("field", "nom")
		}
	case TypeEntreprise:
		if strings.TrimSpace(c.RaisonSociale) == "" {
			return apperror.NewValidation("raison_sociale is required for an entreprise").WithDetail("field", "raison_sociale")
		}
		if c.TypeEntreprise != "" && !typesEntreprise[c.TypeEntreprise] {
			return apperror.NewValidation("invalid type_entreprise").WithDetail("field", "type_entreprise")
		}
	default:
		return apperror.NewValidation("type must be particulier or entreprise").WithDetail("field", "type")
	}

	if !domain.PhonePattern.MatchString(c.Telephone) {
		return apperror.NewValidation("invalid telephone").WithDetail("field", "telephone")
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return apperror.NewValidation("invalid email").WithDetail("field", "email")
		}
	}
	if c.Latitude != nil && (*c.Latitude < -90 || *c.Latitude > 90) {
		return apperror.NewValidation("invalid latitude").WithDetail("field", "latitude")
	}
	if c.Longitude != nil && (*c.Longitude < -180 || *c.Longitude > 180) {
		return apperror.NewValidation("invalid longitude").WithDetail("field", "longitude")
	}
	return nil
}

// Resource is the policy view of the client.
func (c *Client) Resource() map[string]any {
	return map[string]any{
		"commercial_id": idString(c.CommercialID),
		"agence_id":     idString(c.AgenceID),
	}
}

func idString(v *id.ID) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// Input carries the writable fields of a client.
type Input struct {
	Type           string
	Nom            string
	Prenom         string
	RaisonSociale  string
	Telephone      string
	Email          string
	Adresse        string
	Ville          string
	CodePostal     string
	Latitude       *float64
	Longitude      *float64
	TypeEntreprise string
	RC             string
	ICE            string
	TVA            string
	IsProspect     bool
	CommercialID   *id.ID
	AgenceID       *id.ID
}

func (in Input) apply(c *Client) {
	c.Type = in.Type
	c.Nom = strings.TrimSpace(in.Nom)
	c.Prenom = strings.TrimSpace(in.Prenom)
	c.RaisonSociale = strings.TrimSpace(in.RaisonSociale)
	c.Telephone = in.Telephone
	c.Email = in.Email
	c.Adresse = in.Adresse
	c.Ville = in.Ville
	c.CodePostal = in.CodePostal
	c.Latitude = in.Latitude
	c.Longitude = in.Longitude
	c.TypeEntreprise = in.TypeEntreprise
	c.RC = in.RC
	c.ICE = in.ICE
	c.TVA = in.TVA
	c.IsProspect = in.IsProspect
	if in.CommercialID != nil {
		c.CommercialID = in.CommercialID
	}
	if in.AgenceID != nil {
		c.AgenceID = in.AgenceID
	}
}

// Filter selects clients.
type Filter struct {
	entity.Page
	Search       string
	Type         string
	IsProspect   *bool
	IsActive     *bool
	CommercialID *id.ID
	AgenceID     *id.ID
}
