// Package hr covers staff administration: employees, attendance, leave,
// expense claims and sales commissions.
package hr

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
)

// Contract kinds.
var contractTypes = []string{"CDI", "CDD", "STAGE", "FREELANCE"}

// Employee is the HR record of a user.
type Employee struct {
	entity.Base
	UserID         id.ID       `db:"user_id" json:"user_id"`
	Matricule      string      `db:"matricule" json:"matricule"`
	DateEmbauche   time.Time   `db:"date_embauche" json:"date_embauche"`
	DateFinContrat *time.Time  `db:"date_fin_contrat" json:"date_fin_contrat"`
	TypeContrat    string      `db:"type_contrat" json:"type_contrat"`
	Poste          string      `db:"poste" json:"poste"`
	Departement    string      `db:"departement" json:"departement"`
	ManagerID      *id.ID      `db:"manager_id" json:"manager_id"`
	SalaireBase    types.Money `db:"salaire_base" json:"salaire_base"`
	SalaireBrut    types.Money `db:"salaire_brut" json:"salaire_brut"`
	IsActive       bool        `db:"is_active" json:"is_active"`
	CreatedBy      *id.ID      `db:"created_by" json:"created_by"`

	// Read from users.
	Nom    string `db:"nom" json:"nom,omitempty"`
	Prenom string `db:"prenom" json:"prenom,omitempty"`
	Email  string `db:"email" json:"email,omitempty"`
}

// Resource is the policy view of the employee.
func (e *Employee) Resource() map[string]any {
	return map[string]any{"user_id": e.UserID.String(), "employee_id": e.ID.String()}
}

func (e *Employee) Validate(ctx context.Context) error {
	e.Matricule = strings.ToUpper(strings.TrimSpace(e.Matricule))
	e.TypeContrat = strings.ToUpper(strings.TrimSpace(e.TypeContrat))
	switch {
	case id.IsNil(e.UserID):
		return apperror.NewValidation("user_id is required").WithDetail("field", "user_id")
	case e.Matricule == "":
		return apperror.NewValidation("matricule is required").WithDetail("field", "matricule")
	case e.DateEmbauche.IsZero():
		return apperror.NewValidation("date_embauche is required").WithDetail("field", "date_embauche")
	case !slices.Contains(contractTypes, e.TypeContrat):
		return apperror.NewValidation("invalid type_contrat").WithDetail("field", "type_contrat").WithDetail("allowed", contractTypes)
	case strings.TrimSpace(e.Poste) == "":
		return apperror.NewValidation("poste is required").WithDetail("field", "poste")
	case strings.TrimSpace(e.Departement) == "":
		return apperror.NewValidation("departement is required").WithDetail("field", "departement")
	case e.SalaireBase.IsNegative() || e.SalaireBrut.IsNegative():
		return apperror.NewValidation("salaries cannot be negative").WithDetail("field", "salaire_base")
	case e.DateFinContrat != nil && e.DateFinContrat.Before(e.DateEmbauche):
		return apperror.NewValidation("date_fin_contrat is before date_embauche").WithDetail("field", "date_fin_contrat")
	case e.ManagerID != nil && *e.ManagerID == e.ID:
		return apperror.NewValidation("an employee cannot be their own manager").WithDetail("field", "manager_id")
	}
	return nil
}

// EmployeeInput creates or updates an employee. Nil fields are left unchanged on update.
type EmployeeInput struct {
	UserID         id.ID
	Matricule      *string
	DateEmbauche   *time.Time
	DateFinContrat *time.Time
	TypeContrat    *string
	Poste          *string
	Departement    *string
	ManagerID      *id.ID
	SalaireBase    *types.Money
	SalaireBrut    *types.Money
	IsActive       *bool
}

func (in EmployeeInput) apply(e *Employee) {
	if in.Matricule != nil {
		e.Matricule = *in.Matricule
	}
	if in.DateEmbauche != nil {
		e.DateEmbauche = Day(*in.DateEmbauche)
	}
	if in.DateFinContrat != nil {
		d := Day(*in.DateFinContrat)
		e.DateFinContrat = &d
	}
	if in.TypeContrat != nil {
		e.TypeContrat = *in.TypeContrat
	}
	if in.Poste != nil {
		e.Poste = strings.TrimSpace(*in.Poste)
	}
	if in.Departement != nil {
		e.Departement = strings.TrimSpace(*in.Departement)
	}
	if in.ManagerID != nil {
		e.ManagerID = in.ManagerID
	}
	if in.SalaireBase != nil {
		e.SalaireBase = *in.SalaireBase
	}
	if in.SalaireBrut != nil {
		e.SalaireBrut = *in.SalaireBrut
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
}

type EmployeeFilter struct {
	entity.Page
	Search      string
	Departement string
	TypeContrat string
	IsActive    *bool
}

// Attendance statuses.
var attendanceStatuses = []string{"present", "absent", "retard", "depart_anticipe", "conge"}

// StandardDay is the number of hours worked before overtime starts.
var StandardDay = types.MustMoney("8")

// Attendance is the presence record of an employee for one day.
type Attendance struct {
	ID                    id.ID       `db:"id" json:"id"`
	EmployeeID            id.ID       `db:"employee_id" json:"employee_id"`
	Date                  time.Time   `db:"date" json:"date"`
	HeureArrivee          *string     `db:"heure_arrivee" json:"heure_arrivee"`
	HeureDepart           *string     `db:"heure_depart" json:"heure_depart"`
	Statut                string      `db:"statut" json:"statut"`
	HeuresTravaillees     types.Money `db:"heures_travaillees" json:"heures_travaillees"`
	HeuresSupplementaires types.Money `db:"heures_supplementaires" json:"heures_supplementaires"`
	Commentaire           string      `db:"commentaire" json:"commentaire"`
	CreatedBy             *id.ID      `db:"created_by" json:"created_by"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
}

var hhmm = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ParseHHMM returns the minutes since midnight of an HH:MM clock time.
func ParseHHMM(s string) (int, error) {
	if !hhmm.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return h*60 + m, nil
}

// ComputeHours fills worked hours and overtime from the arrival and departure
// times. Hours past StandardDay count as overtime.
func (a *Attendance) ComputeHours() error {
	a.HeuresTravaillees, a.HeuresSupplementaires = types.Zero(), types.Zero()
	if a.HeureArrivee == nil || a.HeureDepart == nil {
		return nil
	}
	arrivee, err := ParseHHMM(*a.HeureArrivee)
	if err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", "heure_arrivee")
	}
	depart, err := ParseHHMM(*a.HeureDepart)
	if err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", "heure_depart")
	}
	if depart < arrivee {
		return apperror.NewValidation("heure_depart is before heure_arrivee").WithCode("INVALID_HOURS").WithDetail("field", "heure_depart")
	}
	worked := types.Round2(types.Qty(int64(depart - arrivee)).Div(types.Qty(60)))
	if worked.GreaterThan(StandardDay) {
		a.HeuresSupplementaires = worked.Sub(StandardDay)
		worked = StandardDay
	}
	a.HeuresTravaillees = worked
	return nil
}

type AttendanceInput struct {
	EmployeeID   id.ID
	Date         time.Time
	HeureArrivee *string
	HeureDepart  *string
	Statut       string
	Commentaire  string
}

type AttendanceFilter struct {
	entity.Page
	EmployeeID *id.ID
	DateDebut  *time.Time
	DateFin    *time.Time
	Statut     string
}

// Approval statuses shared by leaves and expenses.
const (
	StatutEnAttente = "en_attente"
	StatutApprouve  = "approuve"
	StatutRejete    = "rejete"
	StatutAnnule    = "annule"
	StatutRembourse = "rembourse"
)

var leaveTypes = []string{
	"conge_annuel", "conge_maladie", "conge_maternite", "conge_paternite", "conge_exceptionnel", "absence_non_justifiee",
}

// Leave is a leave request.
type Leave struct {
	entity.Base
	EmployeeID             id.ID      `db:"employee_id" json:"employee_id"`
	Type                   string     `db:"type" json:"type"`
	DateDebut              time.Time  `db:"date_debut" json:"date_debut"`
	DateFin                time.Time  `db:"date_fin" json:"date_fin"`
	NombreJours            int        `db:"nombre_jours" json:"nombre_jours"`
	Motif                  string     `db:"motif" json:"motif"`
	JustificatifURL        string     `db:"justificatif_url" json:"justificatif_url"`
	Statut                 string     `db:"statut" json:"statut"`
	ApprovedBy             *id.ID     `db:"approved_by" json:"approved_by"`
	ApprovedAt             *time.Time `db:"approved_at" json:"approved_at"`
	CommentaireApprobation string     `db:"commentaire_approbation" json:"commentaire_approbation"`
}

// Days returns the number of calendar days from debut to fin, both included.
func Days(debut, fin time.Time) int {
	return int(Day(fin).Sub(Day(debut)).Hours()/24) + 1
}

type LeaveInput struct {
	EmployeeID      id.ID
	Type            string
	DateDebut       time.Time
	DateFin         time.Time
	Motif           string
	JustificatifURL string
}

type LeaveFilter struct {
	entity.Page
	EmployeeID *id.ID
	Statut     string
	Type       string
}

// Decision approves or rejects a pending request.
type Decision struct {
	Approved    bool
	Commentaire string
}

var expenseCategories = []string{"carburant", "hotel", "panier", "peages", "divers"}

// Expense is an expense claim.
type Expense struct {
	entity.Base
	EmployeeID             id.ID       `db:"employee_id" json:"employee_id"`
	Categorie              string      `db:"categorie" json:"categorie"`
	Montant                types.Money `db:"montant" json:"montant"`
	DateDepense            time.Time   `db:"date_depense" json:"date_depense"`
	Description            string      `db:"description" json:"description"`
	JustificatifURL        string      `db:"justificatif_url" json:"justificatif_url"`
	Statut                 string      `db:"statut" json:"statut"`
	ApprovedBy             *id.ID      `db:"approved_by" json:"approved_by"`
	ApprovedAt             *time.Time  `db:"approved_at" json:"approved_at"`
	CommentaireApprobation string      `db:"commentaire_approbation" json:"commentaire_approbation"`
}

type ExpenseInput struct {
	EmployeeID      id.ID
	Categorie       string
	Montant         types.Money
	DateDepense     time.Time
	Description     string
	JustificatifURL string
}

type ExpenseFilter struct {
	entity.Page
	EmployeeID *id.ID
	Categorie  string
	Statut     string
}

// Commission statuses.
const (
	CommissionCalculee = "calculee"
	CommissionPayee    = "payee"
	CommissionClawback = "clawback"
)

// Commission is the commission of an employee on one facture.
type Commission struct {
	entity.Base
	EmployeeID        id.ID       `db:"employee_id" json:"employee_id"`
	Periode           string      `db:"periode" json:"periode"`
	FactureID         id.ID       `db:"facture_id" json:"facture_id"`
	MontantFacture    types.Money `db:"montant_facture" json:"montant_facture"`
	TauxCommission    types.Money `db:"taux_commission" json:"taux_commission"`
	MontantCommission types.Money `db:"montant_commission" json:"montant_commission"`
	Statut            string      `db:"statut" json:"statut"`
}

// CommissionSource is a declared facture eligible for commission.
type CommissionSource struct {
	FactureID    id.ID       `db:"facture_id"`
	CommercialID id.ID       `db:"commercial_id"`
	MontantTTC   types.Money `db:"montant_ttc"`
}

var (
	tierLow    = types.MustMoney("10000")
	tierHigh   = types.MustMoney("50000")
	rateLow    = types.MustMoney("1")
	rateMedium = types.MustMoney("1.5")
	rateHigh   = types.MustMoney("2")
)

// Rate returns the commission percentage for a facture amount.
func Rate(montantTTC types.Money) types.Money {
	switch {
	case montantTTC.LessThan(tierLow):
		return rateLow
	case montantTTC.LessThan(tierHigh):
		return rateMedium
	default:
		return rateHigh
	}
}

type CommissionFilter struct {
	entity.Page
	EmployeeID *id.ID
	Periode    string
	Statut     string
}

// CalcResult is the outcome of a commission run.
type CalcResult struct {
	Periode     string       `json:"periode"`
	Commissions []Commission `json:"commissions"`
	Count       int          `json:"count"`
}

var periodePattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParsePeriode returns [start, end) of a YYYY-MM period in UTC.
func ParsePeriode(p string) (time.Time, time.Time, error) {
	if !periodePattern.MatchString(p) {
		return time.Time{}, time.Time{}, apperror.NewValidation("periode must be YYYY-MM").WithCode("INVALID_PERIODE").WithDetail("field", "periode")
	}
	start, err := time.Parse("2006-01", p)
	if err != nil {
		return time.Time{}, time.Time{}, apperror.NewValidation("periode must be YYYY-MM").WithCode("INVALID_PERIODE").WithCause(err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidPeriode reports whether p is a YYYY-MM period.
func ValidPeriode(p string) bool { return periodePattern.MatchString(p) }

// ValidHHMM reports whether s is an HH:MM clock time.
func ValidHHMM(s string) bool { return hhmm.MatchString(s) }
