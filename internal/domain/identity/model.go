// Package identity covers back-office users, agences (depots and vehicles)
// and token-based authentication.
package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/domain"
)

// MinPasswordLength applies to every password set through the API.
const MinPasswordLength = 6

// User is a back-office account.
type User struct {
	entity.Base
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Nom          string     `db:"nom" json:"nom"`
	Prenom       string     `db:"prenom" json:"prenom"`
	Telephone    string     `db:"telephone" json:"telephone"`
	Role         string     `db:"role" json:"role"`
	AgenceID     *id.ID     `db:"agence_id" json:"agence_id"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login"`
	CreatedBy    *id.ID     `db:"created_by" json:"created_by,omitempty"`

	Agence *Agence `db:"-" json:"agence,omitempty"`
}

// Validate checks field formats.
func (u *User) Validate(ctx context.Context) error {
	if _, err := mail.ParseAddress(u.Email); err != nil || !strings.Contains(u.Email, "@") {
		return apperror.NewValidation("invalid email").WithDetail("field", "email")
	}
	if strings.TrimSpace(u.Nom) == "" {
		return apperror.NewValidation("nom is required").WithDetail("field", "nom")
	}
	if strings.TrimSpace(u.Prenom) == "" {
		return apperror.NewValidation("prenom is required").WithDetail("field", "prenom")
	}
	if !domain.PhonePattern.MatchString(u.Telephone) {
		return apperror.NewValidation("invalid telephone").WithDetail("field", "telephone")
	}
	if !security.IsValidRole(u.Role) {
		return apperror.NewValidation("invalid role").WithDetail("field", "role").WithDetail("value", u.Role)
	}
	return nil
}

// FullName returns "Prenom Nom".
func (u *User) FullName() string {
	return strings.TrimSpace(u.Prenom + " " + u.Nom)
}

// AgenceIDString returns the agence id or "".
func (u *User) AgenceIDString() string {
	if u.AgenceID == nil {
		return ""
	}
	return u.AgenceID.String()
}

// Agence is a branch. A depot holds stock; a vehicle is a commercial's van loaded through BCG.
type Agence struct {
	entity.Base
	Nom          string `db:"nom" json:"nom"`
	Code         string `db:"code" json:"code"`
	Adresse      string `db:"adresse" json:"adresse"`
	Ville        string `db:"ville" json:"ville"`
	Telephone    string `db:"telephone" json:"telephone"`
	Email        string `db:"email" json:"email,omitempty"`
	IsDepot      bool   `db:"is_depot" json:"is_depot"`
	IsVehicule   bool   `db:"is_vehicule" json:"is_vehicule"`
	CommercialID *id.ID `db:"commercial_id" json:"commercial_id"`
	IsActive     bool   `db:"is_active" json:"is_active"`
}

// Validate checks required fields and the depot/vehicle exclusivity.
func (a *Agence) Validate(ctx context.Context) error {
	if strings.TrimSpace(a.Nom) == "" {
		return apperror.NewValidation("nom is required").WithDetail("field", "nom")
	}
	a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
	if a.Code == "" || len(a.Code) > 10 {
		return apperror.NewValidation("code must be 1 to 10 characters").WithDetail("field", "code")
	}
	if strings.TrimSpace(a.Ville) == "" {
		return apperror.NewValidation("ville is required").WithDetail("field", "ville")
	}
	if a.Email != "" {
		if _, err := mail.ParseAddress(a.Email); err != nil {
			return apperror.NewValidation("invalid email").WithDetail("field", "email")
		}
	}
	if a.IsDepot && a.IsVehicule {
		return apperror.NewValidation("an agence cannot be both depot and vehicule").
			WithCode("INVALID_AGENCE_KIND")
	}
	return nil
}

// RefreshToken is stored hashed; the raw value only leaves the server once.
type RefreshToken struct {
	ID            id.ID      `db:"id"`
	UserID        id.ID      `db:"user_id"`
	TokenHash     string     `db:"token_hash"`
	ExpiresAt     time.Time  `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
	RevokedAt     *time.Time `db:"revoked_at"`
	RevokedReason *string    `db:"revoked_reason"`
}

// IsValid reports whether the token is neither revoked nor expired at now.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// CreateUserInput creates a user.
type CreateUserInput struct {
	Email     string
	Password  string
	Nom       string
	Prenom    string
	Telephone string
	Role      string
	AgenceID  *id.ID
	IsActive  *bool
}

// UpdateUserInput changes the non-nil fields. ClearAgence unsets agence_id.
type UpdateUserInput struct {
	Email       *string
	Password    *string
	Nom         *string
	Prenom      *string
	Telephone   *string
	Role        *string
	AgenceID    *id.ID
	ClearAgence bool
	IsActive    *bool
}

// UserFilter lists users.
type UserFilter struct {
	entity.Page
	Search   string
	Role     string
	AgenceID *id.ID
	IsActive *bool
}

// AgenceFilter lists agences. Only active ones unless IncludeInactive.
type AgenceFilter struct {
	IsDepot         *bool
	IsVehicule      *bool
	IncludeInactive bool
}

// AgenceInput creates or replaces an agence.
type AgenceInput struct {
	Nom          string
	Code         string
	Adresse      string
	Ville        string
	Telephone    string
	Email        string
	IsDepot      bool
	IsVehicule   bool
	CommercialID *id.ID
	IsActive     *bool
}
