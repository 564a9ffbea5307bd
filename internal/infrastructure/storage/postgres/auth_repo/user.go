// Package auth_repo stores users, agences and refresh tokens.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package auth_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/identity"
	"autoerp/internal/infrastructure/storage/postgres"
)

// UserRepo implements identity.UserRepository.
type UserRepo struct {
	table *postgres.Table[identity.User]
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		table: postgres.NewTable[identity.User]("users", "user").WithDuplicates(postgres.Duplicates{
			"users_email_key": func() *apperror.AppError {
				return apperror.NewDuplicate("user", "email", "").WithCode("DUPLICATE_EMAIL")
			},
		}),
	}
}

func (r *UserRepo) Create(ctx context.Context, u *identity.User) error {
	return r.table.Insert(ctx, u)
}

func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*identity.User, error) {
	return r.table.GetByID(ctx, userID, false)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.table.GetBy(ctx, squirrel.Expr("lower(email) = lower(?)", email), email)
}

func (r *UserRepo) Update(ctx context.Context, u *identity.User) error {
	return r.table.Update(ctx, u.ID, u, "created_by", "last_login")
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.table.Exists(ctx, squirrel.Expr("lower(email) = lower(?)", strings.TrimSpace(email)))
}

func (r *UserRepo) List(ctx context.Context, f identity.UserFilter) ([]identity.User, int64, error) {
	q := r.table.Select()
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "nom", "prenom", "email"))
	}
	if f.Role != "" {
		q = q.Where(squirrel.Eq{"role": f.Role})
	}
	if f.AgenceID != nil {
		q = q.Where(squirrel.Eq{"agence_id": *f.AgenceID})
	}
	if f.IsActive != nil {
		q = q.Where(squirrel.Eq{"is_active": *f.IsActive})
	}
	return postgres.Paginate[identity.User](ctx, q, f.Page, "nom", "prenom")
}

func (r *UserRepo) SetLastLogin(ctx context.Context, userID id.ID, at time.Time) error {
	_, err := postgres.Exec(ctx, postgres.Builder.Update("users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": userID}))
	if err != nil {
		return fmt.Errorf("set last login: %w", err)
	}
	return nil
}

var _ identity.UserRepository = (*UserRepo)(nil)
