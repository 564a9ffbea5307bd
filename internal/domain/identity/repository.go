package identity

import (
	"context"
	"time"

	"autoerp/internal/core/id"
)

// UserRepository stores users. Get methods return a USER_NOT_FOUND AppError.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, userID id.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	SetLastLogin(ctx context.Context, userID id.ID, at time.Time) error
}

// AgenceRepository stores agences. GetByID returns an AGENCE_NOT_FOUND AppError.
type AgenceRepository interface {
	Create(ctx context.Context, a *Agence) error
	GetByID(ctx context.Context, agenceID id.ID) (*Agence, error)
	Update(ctx context.Context, a *Agence) error
	List(ctx context.Context, f AgenceFilter) ([]Agence, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// TokenRepository stores hashed refresh tokens.
type TokenRepository interface {
	Save(ctx context.Context, t *RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)
	Revoke(ctx context.Context, tokenID id.ID, reason string) error
	RevokeAllForUser(ctx context.Context, userID id.ID, reason string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
