package dto

import (
	"autoerp/internal/core/id"
	"autoerp/internal/domain/identity"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LoginResponse is the token pair with the logged-in user.
type LoginResponse struct {
	*identity.TokenPair
	User *identity.User `json:"user"`
}

// UserRequest creates a back-office user.
type UserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Nom       string `json:"nom" binding:"required"`
	Prenom    string `json:"prenom" binding:"required"`
	Telephone string `json:"telephone" binding:"omitempty,phone_ma"`
	Role      string `json:"role" binding:"required,oneof=admin comptable tc commercial rh manager_agence employe"`
	AgenceID  *id.ID `json:"agence_id"`
	IsActive  *bool  `json:"is_active"`
}

func (r *UserRequest) ToInput() identity.CreateUserInput {
	return identity.CreateUserInput{
		Email:     r.Email,
		Password:  r.Password,
		Nom:       r.Nom,
		Prenom:    r.Prenom,
		Telephone: r.Telephone,
		Role:      r.Role,
		AgenceID:  r.AgenceID,
		IsActive:  r.IsActive,
	}
}

// UpdateUserRequest patches a user; absent fields are left unchanged.
// "agence_id": null detaches the user from its agence.
type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	Password  *string `json:"password" binding:"omitempty,min=8"`
	Nom       *string `json:"nom" binding:"omitempty,min=1"`
	Prenom    *string `json:"prenom" binding:"omitempty,min=1"`
	Telephone *string `json:"telephone" binding:"omitempty,phone_ma"`
	Role      *string `json:"role" binding:"omitempty,oneof=admin comptable tc commercial rh manager_agence employe"`
	AgenceID  *id.ID  `json:"agence_id"`
	// Set by the handler when the body holds an explicit null agence_id.
	ClearAgence bool  `json:"-"`
	IsActive    *bool `json:"is_active"`
}

func (r *UpdateUserRequest) ToInput() identity.UpdateUserInput {
	return identity.UpdateUserInput{
		Email:       r.Email,
		Password:    r.Password,
		Nom:         r.Nom,
		Prenom:      r.Prenom,
		Telephone:   r.Telephone,
		Role:        r.Role,
		AgenceID:    r.AgenceID,
		ClearAgence: r.ClearAgence,
		IsActive:    r.IsActive,
	}
}

type UserListQuery struct {
	PageQuery
	Search   string `form:"search"`
	Role     string `form:"role" binding:"omitempty,oneof=admin comptable tc commercial rh manager_agence employe"`
	AgenceID string `form:"agence_id" binding:"omitempty,uuid"`
	IsActive *bool  `form:"is_active"`
}

func (q *UserListQuery) ToFilter() identity.UserFilter {
	return identity.UserFilter{
		Page:     q.ToPage(),
		Search:   q.Search,
		Role:     q.Role,
		AgenceID: optID(q.AgenceID),
		IsActive: q.IsActive,
	}
}

type AgenceRequest struct {
	Nom          string `json:"nom" binding:"required"`
	Code         string `json:"code" binding:"required,max=10"`
	Adresse      string `json:"adresse"`
	Ville        string `json:"ville" binding:"required"`
	Telephone    string `json:"telephone" binding:"omitempty,phone_ma"`
	Email        string `json:"email" binding:"omitempty,email"`
	IsDepot      bool   `json:"is_depot"`
	IsVehicule   bool   `json:"is_vehicule"`
	CommercialID *id.ID `json:"commercial_id"`
	IsActive     *bool  `json:"is_active"`
}

func (r *AgenceRequest) ToInput() identity.AgenceInput {
	return identity.AgenceInput{
		Nom:          r.Nom,
		Code:         r.Code,
		Adresse:      r.Adresse,
		Ville:        r.Ville,
		Telephone:    r.Telephone,
		Email:        r.Email,
		IsDepot:      r.IsDepot,
		IsVehicule:   r.IsVehicule,
		CommercialID: r.CommercialID,
		IsActive:     r.IsActive,
	}
}

type AgenceListQuery struct {
	IsDepot         *bool `form:"is_depot"`
	IsVehicule      *bool `form:"is_vehicule"`
	IncludeInactive bool  `form:"include_inactive"`
}

func (q *AgenceListQuery) ToFilter() identity.AgenceFilter {
	return identity.AgenceFilter{
		IsDepot:         q.IsDepot,
		IsVehicule:      q.IsVehicule,
		IncludeInactive: q.IncludeInactive,
	}
}
