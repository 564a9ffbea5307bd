package auth_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/identity"
	"autoerp/internal/infrastructure/storage/postgres"
)

// TokenRepo implements identity.TokenRepository.
type TokenRepo struct {
	table *postgres.Table[identity.RefreshToken]
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{table: postgres.NewTable[identity.RefreshToken]("refresh_tokens", "token")}
}

// Save stores a refresh token.
func (r *TokenRepo) Save(ctx context.Context, t *identity.RefreshToken) error {
	return r.table.Insert(ctx, t)
}

// GetByHash retrieves a refresh token by hash.
func (r *TokenRepo) GetByHash(ctx context.Context, hash string) (*identity.RefreshToken, error) {
	return r.table.GetBy(ctx, squirrel.Eq{"token_hash": hash}, "")
}

func (r *TokenRepo) Revoke(ctx context.Context, tokenID id.ID, reason string) error {
	_, err := postgres.Exec(ctx, postgres.Builder.Update("refresh_tokens").
		Set("revoked_at", squirrel.Expr("now()")).
		Set("revoked_reason", reason).
		Where(squirrel.Eq{"id": tokenID, "revoked_at": nil}))
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes all tokens of a user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID id.ID, reason string) error {
	_, err := postgres.Exec(ctx, postgres.Builder.Update("refresh_tokens").
		Set("revoked_at", squirrel.Expr("now()")).
		Set("revoked_reason", reason).
		Where(squirrel.Eq{"user_id": userID, "revoked_at": nil}))
	if err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens expired before the cutoff and those revoked a week earlier.
func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := postgres.Exec(ctx, postgres.Builder.Delete("refresh_tokens").Where(squirrel.Or{
		squirrel.Lt{"expires_at": before},
		squirrel.Lt{"revoked_at": before.Add(-7 * 24 * time.Hour)},
	}))
	if err != nil {
		return 0, fmt.Errorf("cleanup tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ identity.TokenRepository = (*TokenRepo)(nil)
