package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/core/types"
	"autoerp/internal/domain/hr"
)

// EmployeeRequest creates an employee record for a user, or patches one:
// absent fields keep their value on update.
type EmployeeRequest struct {
	UserID         id.ID        `json:"user_id"`
	Matricule      *string      `json:"matricule" binding:"omitempty,min=1,max=20"`
	DateEmbauche   *Date        `json:"date_embauche"`
	DateFinContrat *Date        `json:"date_fin_contrat"`
	TypeContrat    *string      `json:"type_contrat" binding:"omitempty,oneof=CDI CDD STAGE FREELANCE"`
	Poste          *string      `json:"poste" binding:"omitempty,min=1"`
	Departement    *string      `json:"departement" binding:"omitempty,min=1"`
	ManagerID      *id.ID       `json:"manager_id"`
	SalaireBase    *types.Money `json:"salaire_base"`
	SalaireBrut    *types.Money `json:"salaire_brut"`
	IsActive       *bool        `json:"is_active"`
}

func (r *EmployeeRequest) ToInput() hr.EmployeeInput {
	return hr.EmployeeInput{
		UserID:         r.UserID,
		Matricule:      r.Matricule,
		DateEmbauche:   r.DateEmbauche.Ptr(),
		DateFinContrat: r.DateFinContrat.Ptr(),
		TypeContrat:    r.TypeContrat,
		Poste:          r.Poste,
		Departement:    r.Departement,
		ManagerID:      r.ManagerID,
		SalaireBase:    r.SalaireBase,
		SalaireBrut:    r.SalaireBrut,
		IsActive:       r.IsActive,
	}
}

type EmployeeListQuery struct {
	PageQuery
	Search      string `form:"search"`
	Departement string `form:"departement"`
	TypeContrat string `form:"type_contrat" binding:"omitempty,oneof=CDI CDD STAGE FREELANCE"`
	IsActive    *bool  `form:"is_active"`
}

func (q *EmployeeListQuery) ToFilter() hr.EmployeeFilter {
	return hr.EmployeeFilter{
		Page:        q.ToPage(),
		Search:      q.Search,
		Departement: q.Departement,
		TypeContrat: q.TypeContrat,
		IsActive:    q.IsActive,
	}
}

type AttendanceRequest struct {
	EmployeeID   id.ID   `json:"employee_id" binding:"required"`
	Date         Date    `json:"date" binding:"required"`
	HeureArrivee *string `json:"heure_arrivee" binding:"omitempty,hhmm"`
	HeureDepart  *string `json:"heure_depart" binding:"omitempty,hhmm"`
	Statut       string  `json:"statut" binding:"required,oneof=present absent retard depart_anticipe conge"`
	Commentaire  string  `json:"commentaire"`
}

func (r *AttendanceRequest) ToInput() hr.AttendanceInput {
	return hr.AttendanceInput{
		EmployeeID:   r.EmployeeID,
		Date:         r.Date.Time,
		HeureArrivee: r.HeureArrivee,
		HeureDepart:  r.HeureDepart,
		Statut:       r.Statut,
		Commentaire:  r.Commentaire,
	}
}

type AttendanceListQuery struct {
	PageQuery
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	DateDebut  string `form:"date_debut" binding:"omitempty,datetime=2006-01-02"`
	DateFin    string `form:"date_fin" binding:"omitempty,datetime=2006-01-02"`
	Statut     string `form:"statut" binding:"omitempty,oneof=present absent retard depart_anticipe conge"`
}

func (q *AttendanceListQuery) ToFilter() hr.AttendanceFilter {
	return hr.AttendanceFilter{
		Page:       q.ToPage(),
		EmployeeID: optID(q.EmployeeID),
		DateDebut:  datePtr(q.DateDebut),
		DateFin:    datePtr(q.DateFin),
		Statut:     q.Statut,
	}
}

type LeaveRequest struct {
	EmployeeID      id.ID  `json:"employee_id" binding:"required"`
	Type            string `json:"type" binding:"required,oneof=conge_annuel conge_maladie conge_maternite conge_paternite conge_exceptionnel absence_non_justifiee"`
	DateDebut       Date   `json:"date_debut" binding:"required"`
	DateFin         Date   `json:"date_fin" binding:"required"`
	Motif           string `json:"motif"`
	JustificatifURL string `json:"justificatif_url" binding:"omitempty,url"`
}

func (r *LeaveRequest) ToInput() hr.LeaveInput {
	return hr.LeaveInput{
		EmployeeID:      r.EmployeeID,
		Type:            r.Type,
		DateDebut:       r.DateDebut.Time,
		DateFin:         r.DateFin.Time,
		Motif:           r.Motif,
		JustificatifURL: r.JustificatifURL,
	}
}

type LeaveListQuery struct {
	PageQuery
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Statut     string `form:"statut" binding:"omitempty,oneof=en_attente approuve rejete annule"`
	Type       string `form:"type"`
}

func (q *LeaveListQuery) ToFilter() hr.LeaveFilter {
	return hr.LeaveFilter{
		Page:       q.ToPage(),
		EmployeeID: optID(q.EmployeeID),
		Statut:     q.Statut,
		Type:       q.Type,
	}
}

// DecisionRequest approves or rejects a pending leave or expense.
type DecisionRequest struct {
	Approved    *bool  `json:"approved" binding:"required"`
	Commentaire string `json:"commentaire"`
}

func (r *DecisionRequest) ToDecision() hr.Decision {
	return hr.Decision{Approved: *r.Approved, Commentaire: r.Commentaire}
}

type ExpenseRequest struct {
	EmployeeID      id.ID       `json:"employee_id" binding:"required"`
	Categorie       string      `json:"categorie" binding:"required,oneof=carburant hotel panier peages divers"`
	Montant         types.Money `json:"montant" binding:"required,gt=0"`
	DateDepense     Date        `json:"date_depense" binding:"required"`
	Description     string      `json:"description"`
	JustificatifURL string      `json:"justificatif_url" binding:"omitempty,url"`
}

func (r *ExpenseRequest) ToInput() hr.ExpenseInput {
	return hr.ExpenseInput{
		EmployeeID:      r.EmployeeID,
		Categorie:       r.Categorie,
		Montant:         r.Montant,
		DateDepense:     r.DateDepense.Time,
		Description:     r.Description,
		JustificatifURL: r.JustificatifURL,
	}
}

type ExpenseListQuery struct {
	PageQuery
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Categorie  string `form:"categorie" binding:"omitempty,oneof=carburant hotel panier peages divers"`
	Statut     string `form:"statut" binding:"omitempty,oneof=en_attente approuve rejete rembourse"`
}

func (q *ExpenseListQuery) ToFilter() hr.ExpenseFilter {
	return hr.ExpenseFilter{
		Page:       q.ToPage(),
		EmployeeID: optID(q.EmployeeID),
		Categorie:  q.Categorie,
		Statut:     q.Statut,
	}
}

// CommissionCalcRequest triggers the calculation for periode. Async hands
// it to the worker instead of computing inline.
type CommissionCalcRequest struct {
	Periode string `json:"periode" binding:"required,periode"`
	Async   bool   `json:"async"`
}

type CommissionListQuery struct {
	PageQuery
	EmployeeID string `form:"employee_id" binding:"omitempty,uuid"`
	Periode    string `form:"periode" binding:"omitempty,periode"`
	Statut     string `form:"statut" binding:"omitempty,oneof=calculee payee clawback"`
}

func (q *CommissionListQuery) ToFilter() hr.CommissionFilter {
	return hr.CommissionFilter{
		Page:       q.ToPage(),
		EmployeeID: optID(q.EmployeeID),
		Periode:    q.Periode,
		Statut:     q.Statut,
	}
}
