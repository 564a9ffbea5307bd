package dto

import (
	"autoerp/internal/core/types"
	"autoerp/internal/domain/catalog"
)

type ArticleRequest struct {
	SKU              string       `json:"sku" binding:"required,max=50"`
	CodeBarres       string       `json:"code_barres"`
	Libelle          string       `json:"libelle" binding:"required"`
	Marque           string       `json:"marque"`
	Famille          string       `json:"famille"`
	SousFamille      string       `json:"sous_famille"`
	Type             string       `json:"type" binding:"omitempty,oneof=piece accessoire lubrifiant pneu autre"`
	Photo            string       `json:"photo" binding:"omitempty,url"`
	Unite            string       `json:"unite"`
	PackSize         int          `json:"pack_size" binding:"omitempty,min=1"`
	PrixPublic       types.Money  `json:"prix_public" binding:"gte=0"`
	PrixStandard     types.Money  `json:"prix_standard" binding:"gte=0"`
	CMP              *types.Money `json:"cmp"`
	DernierPrixAchat types.Money  `json:"dernier_prix_achat" binding:"gte=0"`
	SeuilMin         int64        `json:"seuil_min" binding:"gte=0"`
	SeuilMax         int64        `json:"seuil_max" binding:"gte=0"`
	SafetyStock      int64        `json:"safety_stock" binding:"gte=0"`
	LeadTime         int          `json:"lead_time" binding:"gte=0"`
	IsActive         *bool        `json:"is_active"`
}

func (r *ArticleRequest) ToInput() catalog.Input {
	return catalog.Input{
		SKU:              r.SKU,
		CodeBarres:       r.CodeBarres,
		Libelle:          r.Libelle,
		Marque:           r.Marque,
		Famille:          r.Famille,
		SousFamille:      r.SousFamille,
		Type:             r.Type,
		Photo:            r.Photo,
		Unite:            r.Unite,
		PackSize:         r.PackSize,
		PrixPublic:       r.PrixPublic,
		PrixStandard:     r.PrixStandard,
		CMP:              r.CMP,
		DernierPrixAchat: r.DernierPrixAchat,
		SeuilMin:         r.SeuilMin,
		SeuilMax:         r.SeuilMax,
		SafetyStock:      r.SafetyStock,
		LeadTime:         r.LeadTime,
		IsActive:         r.IsActive,
	}
}

type ArticleListQuery struct {
	PageQuery
	Search      string `form:"search"`
	Famille     string `form:"famille"`
	SousFamille string `form:"sous_famille"`
	Marque      string `form:"marque"`
	Type        string `form:"type" binding:"omitempty,oneof=piece accessoire lubrifiant pneu autre"`
	SousSeuil   bool   `form:"sous_seuil"`
	ActiveOnly  bool   `form:"active_only"`
}

func (q *ArticleListQuery) ToFilter() catalog.Filter {
	return catalog.Filter{
		Page:        q.ToPage(),
		Search:      q.Search,
		Famille:     q.Famille,
		SousFamille: q.SousFamille,
		Marque:      q.Marque,
		Type:        q.Type,
		SousSeuil:   q.SousSeuil,
		ActiveOnly:  q.ActiveOnly,
	}
}

// PortalArticleQuery is the public catalog search: active articles only.
type PortalArticleQuery struct {
	PageQuery
	Search      string `form:"search"`
	Famille     string `form:"famille"`
	SousFamille string `form:"sous_famille"`
	Marque      string `form:"marque"`
}

func (q *PortalArticleQuery) ToFilter() catalog.Filter {
	return catalog.Filter{
		Page:        q.ToPage(),
		Search:      q.Search,
		Famille:     q.Famille,
		SousFamille: q.SousFamille,
		Marque:      q.Marque,
		ActiveOnly:  true,
	}
}
