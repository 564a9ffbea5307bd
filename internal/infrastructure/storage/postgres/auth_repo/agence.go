package auth_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/identity"
	"autoerp/internal/infrastructure/storage/postgres"
)

// AgenceRepo implements identity.AgenceRepository.
type AgenceRepo struct {
	table *postgres.Table[identity.Agence]
}

func NewAgenceRepo() *AgenceRepo {
	return &AgenceRepo{
		table: postgres.NewTable[identity.Agence]("agences", "agence").WithDuplicates(postgres.Duplicates{
			"agences_code_key": func() *apperror.AppError {
				return apperror.NewDuplicate("agence", "code", "").WithCode("DUPLICATE_CODE")
			},
		}),
	}
}

func (r *AgenceRepo) Create(ctx context.Context, a *identity.Agence) error {
	return r.table.Insert(ctx, a)
}

func (r *AgenceRepo) GetByID(ctx context.Context, agenceID id.ID) (*identity.Agence, error) {
	return r.table.GetByID(ctx, agenceID, false)
}

func (r *AgenceRepo) Update(ctx context.Context, a *identity.Agence) error {
	return r.table.Update(ctx, a.ID, a)
}

func (r *AgenceRepo) List(ctx context.Context, f identity.AgenceFilter) ([]identity.Agence, error) {
	q := r.table.Select().OrderBy("nom")
	if !f.IncludeInactive {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if f.IsDepot != nil {
		q = q.Where(squirrel.Eq{"is_depot": *f.IsDepot})
	}
	if f.IsVehicule != nil {
		q = q.Where(squirrel.Eq{"is_vehicule": *f.IsVehicule})
	}
	return postgres.SelectAll[identity.Agence](ctx, q)
}

func (r *AgenceRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return r.table.Exists(ctx, squirrel.Eq{"code": code})
}

var _ identity.AgenceRepository = (*AgenceRepo)(nil)
