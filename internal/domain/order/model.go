// Package order is the order pipeline: commandes move from brouillon to
// validee, livree and facturee, producing a bon de livraison and a facture.
package order

import (
	"slices"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/numerator"
	"autoerp/internal/core/types"
)

// Commande statuses.
const (
	StatutBrouillon = "brouillon"
	StatutValidee   = "validee"
	StatutLivree    = "livree"
	StatutFacturee  = "facturee"
	StatutAnnulee   = "annulee"
)

// Order sources.
const (
	SourceInterne = "interne"
	SourcePortail = "portail"
)

// Payment kinds recorded at order time.
var encaissementTypes = []string{"especes", "cheque", "virement", "a_credit"}

// Numbering series.
var (
	CommandeNumbering = numerator.MonthlyConfig("CMD")
	BLNumbering       = numerator.MonthlyConfig("BL")
	FactureNumbering  = numerator.MonthlyConfig("FAC")
)

// Commande is a customer order.
type Commande struct {
	entity.Base
	Numero                 string        `db:"numero" json:"numero"`
	ClientID               id.ID         `db:"client_id" json:"client_id"`
	CommercialID           *id.ID        `db:"commercial_id" json:"commercial_id"`
	AgenceID               *id.ID        `db:"agence_id" json:"agence_id"`
	DateCommande           time.Time     `db:"date_commande" json:"date_commande"`
	DateLivraisonSouhaitee *time.Time    `db:"date_livraison_souhaitee" json:"date_livraison_souhaitee"`
	Statut                 string        `db:"statut" json:"statut"`
	MontantHT              types.Money   `db:"montant_ht" json:"montant_ht"`
	MontantTVA             types.Money   `db:"montant_tva" json:"montant_tva"`
	MontantTTC             types.Money   `db:"montant_ttc" json:"montant_ttc"`
	Commentaire            string        `db:"commentaire" json:"commentaire"`
	MotifAnnulation        string        `db:"motif_annulation" json:"motif_annulation,omitempty"`
	EncaissementType       *string       `db:"encaissement_type" json:"encaissement_type"`
	EncaissementMontant    types.Money   `db:"encaissement_montant" json:"encaissement_montant"`
	EncaissementReference  string        `db:"encaissement_reference" json:"encaissement_reference"`
	IsEncaisse             bool          `db:"is_encaisse" json:"is_encaisse"`
	DateEncaissement       *time.Time    `db:"date_encaissement" json:"date_encaissement"`
	StockReserve           bool          `db:"stock_reserve" json:"stock_reserve"`
	BLID                   *id.ID        `db:"bl_id" json:"bl_id"`
	FactureID              *id.ID        `db:"facture_id" json:"facture_id"`
	Source                 string        `db:"source" json:"source"`
	CreatedBy              *id.ID        `db:"created_by" json:"created_by"`
	Lignes                 []Ligne       `db:"-" json:"lignes,omitempty"`
	BL                     *BonLivraison `db:"-" json:"bon_livraison,omitempty"`
	Facture                *Facture      `db:"-" json:"facture,omitempty"`
}

// Resource is the policy view of the commande.
func (c *Commande) Resource() map[string]any {
	return map[string]any{
		"agence_id":     optString(c.AgenceID),
		"commercial_id": optString(c.CommercialID),
		"client_id":     c.ClientID.String(),
	}
}

// RequireStatus fails with INVALID_STATUS unless the commande is in one of allowed.
func (c *Commande) RequireStatus(allowed ...string) error {
	if !slices.Contains(allowed, c.Statut) {
		return apperror.NewInvalidStatus("commande", c.Statut, allowed...)
	}
	return nil
}

// Quantities returns the ordered quantity per article.
func (c *Commande) Quantities() map[id.ID]int64 {
	out := make(map[id.ID]int64, len(c.Lignes))
	for _, l := range c.Lignes {
		out[l.ArticleID] += l.Quantite
	}
	return out
}

// ApplyTotals sets the header amounts from the lines.
func (c *Commande) ApplyTotals() {
	c.MontantHT, c.MontantTVA, c.MontantTTC = Totals(c.Lignes)
}

// Ligne is an order line.
type Ligne struct {
	ID                id.ID       `db:"id" json:"id"`
	CommandeID        id.ID       `db:"commande_id" json:"commande_id"`
	ArticleID         id.ID       `db:"article_id" json:"article_id"`
	Quantite          int64       `db:"quantite" json:"quantite"`
	PrixUnitaire      types.Money `db:"prix_unitaire" json:"prix_unitaire"`
	RemisePourcentage types.Money `db:"remise_pourcentage" json:"remise_pourcentage"`
	RemiseMontant     types.Money `db:"remise_montant" json:"remise_montant"`
	MontantHT         types.Money `db:"montant_ht" json:"montant_ht"`
	MontantTTC        types.Money `db:"montant_ttc" json:"montant_ttc"`
	Commentaire       string      `db:"commentaire" json:"commentaire"`
	SKU               string      `db:"sku" json:"sku,omitempty"`
	Libelle           string      `db:"libelle" json:"libelle,omitempty"`
}

// LigneColumns is the insert column order of Ligne.
var LigneColumns = []string{
	"id", "commande_id", "article_id", "quantite", "prix_unitaire", "remise_pourcentage",
	"remise_montant", "montant_ht", "montant_ttc", "commentaire",
}

// Values returns the row in LigneColumns order.
func (l *Ligne) Values() []any {
	return []any{
		l.ID, l.CommandeID, l.ArticleID, l.Quantite, l.PrixUnitaire, l.RemisePourcentage,
		l.RemiseMontant, l.MontantHT, l.MontantTTC, l.Commentaire,
	}
}

var hundred = types.MustMoney("100")

// Compute fills the amounts of the line:
// remise = pu*q*pct/100, ht = pu*q - remise, ttc = ht*1.2, each rounded to cents.
func (l *Ligne) Compute() error {
	if l.Quantite < 1 {
		return apperror.NewValidation("quantite must be at least 1").WithDetail("field", "quantite")
	}
	if l.PrixUnitaire.IsNegative() {
		return apperror.NewValidation("prix_unitaire cannot be negative").WithDetail("field", "prix_unitaire")
	}
	if l.RemisePourcentage.IsNegative() || l.RemisePourcentage.GreaterThan(hundred) {
		return apperror.NewValidation("remise_pourcentage must be between 0 and 100").WithDetail("field", "remise_pourcentage")
	}
	brut := l.PrixUnitaire.Mul(types.Qty(l.Quantite))
	remise := types.Percent(brut, l.RemisePourcentage)
	ht := brut.Sub(remise)
	l.RemiseMontant = types.Round2(remise)
	l.MontantHT = types.Round2(ht)
	l.MontantTTC = types.Round2(types.WithVAT(ht))
	return nil
}

// Totals returns (ht, tva, ttc) of lines: ht = sum(line ht), tva = ht*0.20, ttc = ht+tva.
func Totals(lines []Ligne) (ht, tva, ttc types.Money) {
	ht = types.Zero()
	for _, l := range lines {
		ht = ht.Add(l.MontantHT)
	}
	ht = types.Round2(ht)
	tva = types.Round2(types.VAT(ht))
	return ht, tva, ht.Add(tva)
}

// BonLivraison is the delivery note of a commande.
type BonLivraison struct {
	ID            id.ID     `db:"id" json:"id"`
	Numero        string    `db:"numero" json:"numero"`
	CommandeID    id.ID     `db:"commande_id" json:"commande_id"`
	DateLivraison time.Time `db:"date_livraison" json:"date_livraison"`
	Statut        string    `db:"statut" json:"statut"`
	Commentaire   string    `db:"commentaire" json:"commentaire"`
	CreatedBy     *id.ID    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Facture statuses.
const (
	FactureBrouillon = "brouillon"
	FactureDeclaree  = "declaree"
	FactureImpayee   = "impayee"
	FacturePayee     = "payee"
)

// Facture is the invoice of a delivered commande.
type Facture struct {
	entity.Base
	Numero         string      `db:"numero" json:"numero"`
	CommandeID     id.ID       `db:"commande_id" json:"commande_id"`
	ClientID       id.ID       `db:"client_id" json:"client_id"`
	CommercialID   *id.ID      `db:"commercial_id" json:"commercial_id"`
	AgenceID       *id.ID      `db:"agence_id" json:"agence_id"`
	DateFacture    time.Time   `db:"date_facture" json:"date_facture"`
	DateEcheance   *time.Time  `db:"date_echeance" json:"date_echeance"`
	MontantHT      types.Money `db:"montant_ht" json:"montant_ht"`
	MontantTVA     types.Money `db:"montant_tva" json:"montant_tva"`
	MontantTTC     types.Money `db:"montant_ttc" json:"montant_ttc"`
	MontantPaye    types.Money `db:"montant_paye" json:"montant_paye"`
	MontantRestant types.Money `db:"montant_restant" json:"montant_restant"`
	Statut         string      `db:"statut" json:"statut"`
	DateDeclaree   *time.Time  `db:"date_declaree" json:"date_declaree"`
	DatePaiement   *time.Time  `db:"date_paiement" json:"date_paiement"`
}

// Resource is the policy view of the facture.
func (f *Facture) Resource() map[string]any {
	return map[string]any{
		"agence_id":     optString(f.AgenceID),
		"commercial_id": optString(f.CommercialID),
	}
}

// RequireStatus fails with INVALID_STATUS unless the facture is in one of allowed.
func (f *Facture) RequireStatus(allowed ...string) error {
	if !slices.Contains(allowed, f.Statut) {
		return apperror.NewInvalidStatus("facture", f.Statut, allowed...)
	}
	return nil
}

// Paiement is a payment received on a facture.
type Paiement struct {
	ID           id.ID       `db:"id" json:"id"`
	FactureID    id.ID       `db:"facture_id" json:"facture_id"`
	Montant      types.Money `db:"montant" json:"montant"`
	Mode         string      `db:"mode" json:"mode"`
	Reference    string      `db:"reference" json:"reference"`
	DatePaiement time.Time   `db:"date_paiement" json:"date_paiement"`
	CreatedBy    *id.ID      `db:"created_by" json:"created_by"`
}

// LigneInput is a requested order line. A nil PrixUnitaire uses the article prix_standard.
type LigneInput struct {
	ArticleID         id.ID
	Quantite          int64
	PrixUnitaire      *types.Money
	RemisePourcentage types.Money
	Commentaire       string
}

// CreateInput creates a commande.
type CreateInput struct {
	ClientID               id.ID
	CommercialID           *id.ID
	AgenceID               *id.ID
	DateLivraisonSouhaitee *time.Time
	Commentaire            string
	EncaissementType       string
	EncaissementMontant    types.Money
	EncaissementReference  string
	Lignes                 []LigneInput
}

// LivrerInput delivers a commande.
type LivrerInput struct {
	DateLivraison *time.Time
	Commentaire   string
}

// PaiementInput records a payment.
type PaiementInput struct {
	Montant   types.Money
	Mode      string
	Reference string
	Date      *time.Time
}

// Filter selects commandes.
type Filter struct {
	entity.Page
	Statut           string
	ClientID         *id.ID
	CommercialID     *id.ID
	AgenceID         *id.ID
	DateDebut        *time.Time
	DateFin          *time.Time
	IsEncaisse       *bool
	Source           string
	ExcludeBrouillon bool
	Search           string
}

// FactureFilter selects factures.
type FactureFilter struct {
	entity.Page
	Statut       string
	ClientID     *id.ID
	CommercialID *id.ID
	AgenceID     *id.ID
	DateDebut    *time.Time
	DateFin      *time.Time
}

// Tracking is the public summary of a commande.
type Tracking struct {
	Numero        string      `json:"numero"`
	Statut        string      `json:"statut"`
	DateCommande  time.Time   `json:"date_commande"`
	MontantHT     types.Money `json:"montant_ht"`
	MontantTVA    types.Money `json:"montant_tva"`
	MontantTTC    types.Money `json:"montant_ttc"`
	Lignes        []Ligne     `json:"lignes"`
	NumeroBL      string      `json:"numero_bl,omitempty"`
	DateLivraison *time.Time  `json:"date_livraison,omitempty"`
	NumeroFacture string      `json:"numero_facture,omitempty"`
}

func optString(v *id.ID) string {
	if v == nil {
		return ""
	}
	return v.String()
}
