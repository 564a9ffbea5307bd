// Package catalog manages the article master data: references, prices and
// reorder thresholds.
package catalog

import (
	"context"
	"slices"
	"strings"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/types"
	"autoerp/internal/domain/stock"
)

// Article types.
const (
	TypePiece      = "piece"
	TypeAccessoire = "accessoire"
	TypeLubrifiant = "lubrifiant"
	TypePneu       = "pneu"
	TypeAutre      = "autre"
)

var articleTypes = []string{TypePiece, TypeAccessoire, TypeLubrifiant, TypePneu, TypeAutre}

// Article is a sellable reference.
type Article struct {
	entity.Base
	SKU              string      `db:"sku" json:"sku"`
	CodeBarres       string      `db:"code_barres" json:"code_barres"`
	Libelle          string      `db:"libelle" json:"libelle"`
	Marque           string      `db:"marque" json:"marque"`
	Famille          string      `db:"famille" json:"famille"`
	SousFamille      string      `db:"sous_famille" json:"sous_famille"`
	Type             string      `db:"type" json:"type"`
	Photo            string      `db:"photo" json:"photo"`
	Unite            string      `db:"unite" json:"unite"`
	PackSize         int         `db:"pack_size" json:"pack_size"`
	PrixPublic       types.Money `db:"prix_public" json:"prix_public"`
	PrixStandard     types.Money `db:"prix_standard" json:"prix_standard"`
	CMP              types.Money `db:"cmp" json:"cmp"`
	DernierPrixAchat types.Money `db:"dernier_prix_achat" json:"dernier_prix_achat"`
	SeuilMin         int64       `db:"seuil_min" json:"seuil_min"`
	SeuilMax         int64       `db:"seuil_max" json:"seuil_max"`
	SafetyStock      int64       `db:"safety_stock" json:"safety_stock"`
	LeadTime         int         `db:"lead_time" json:"lead_time"`
	IsActive         bool        `db:"is_active" json:"is_active"`
}

// Validate normalizes labels and checks prices and thresholds.
func (a *Article) Validate(ctx context.Context) error {
	a.SKU = strings.ToUpper(strings.TrimSpace(a.SKU))
	a.Libelle = strings.TrimSpace(a.Libelle)
	a.Marque = strings.TrimSpace(a.Marque)
	a.Famille = NormalizeLabel(a.Famille)
	a.SousFamille = NormalizeLabel(a.SousFamille)
	if a.Type == "" {
		a.Type = TypePiece
	}
	if a.Unite == "" {
		a.Unite = "U"
	}
	if a.PackSize < 1 {
		a.PackSize = 1
	}

	switch {
	case a.SKU == "":
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	case a.Libelle == "":
		return apperror.NewValidation("libelle is required").WithDetail("field", "libelle")
	case !slices.Contains(articleTypes, a.Type):
		return apperror.NewValidation("invalid article type").WithDetail("field", "type")
	case a.PrixPublic.IsNegative() || a.PrixStandard.IsNegative() || a.CMP.IsNegative() || a.DernierPrixAchat.IsNegative():
		return apperror.NewValidation("prices cannot be negative").WithDetail("field", "prix")
	case a.SeuilMin < 0 || a.SeuilMax < 0 || a.SafetyStock < 0 || a.LeadTime < 0:
		return apperror.NewValidation("thresholds cannot be negative").WithDetail("field", "seuil_min")
	case a.SeuilMax > 0 && a.SeuilMin > a.SeuilMax:
		return apperror.NewValidation("seuil_min cannot exceed seuil_max").WithDetail("field", "seuil_min")
	}
	return nil
}

// Input carries the writable fields of an article.
type Input struct {
	SKU              string
	CodeBarres       string
	Libelle          string
	Marque           string
	Famille          string
	SousFamille      string
	Type             string
	Photo            string
	Unite            string
	PackSize         int
	PrixPublic       types.Money
	PrixStandard     types.Money
	CMP              *types.Money
	DernierPrixAchat types.Money
	SeuilMin         int64
	SeuilMax         int64
	SafetyStock      int64
	LeadTime         int
	IsActive         *bool
}

func (in Input) apply(a *Article) {
	a.SKU = in.SKU
	a.CodeBarres = strings.TrimSpace(in.CodeBarres)
	a.Libelle = in.Libelle
	a.Marque = in.Marque
	a.Famille = in.Famille
	a.SousFamille = in.SousFamille
	a.Type = in.Type
	a.Photo = in.Photo
	a.Unite = in.Unite
	a.PackSize = in.PackSize
	a.PrixPublic = in.PrixPublic
	a.PrixStandard = in.PrixStandard
	a.DernierPrixAchat = in.DernierPrixAchat
	a.SeuilMin = in.SeuilMin
	a.SeuilMax = in.SeuilMax
	a.SafetyStock = in.SafetyStock
	a.LeadTime = in.LeadTime
	if in.CMP != nil {
		a.CMP = *in.CMP
	}
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
}

// Filter selects articles.
type Filter struct {
	entity.Page
	Search      string
	Famille     string
	SousFamille string
	Marque      string
	Type        string
	SousSeuil   bool
	ActiveOnly  bool
}

// Detail is an article with its stock rows.
type Detail struct {
	Article
	Stock *stock.Location `json:"stock"`
}
