package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/client"
	"autoerp/internal/infrastructure/storage/postgres"
)

// ClientRepo implements client.Repository.
type ClientRepo struct {
	table *postgres.Table[client.Client]
}

func NewClientRepo() *ClientRepo {
	return &ClientRepo{
		table: postgres.NewTable[client.Client]("clients", "client").WithDuplicates(postgres.Duplicates{
			"clients_telephone_key": func() *apperror.AppError {
				return apperror.NewDuplicate("client", "telephone", "").WithCode("DUPLICATE_PHONE")
			},
		}),
	}
}

func (r *ClientRepo) Create(ctx context.Context, c *client.Client) error {
	return r.table.Insert(ctx, c)
}

func (r *ClientRepo) GetByID(ctx context.Context, clientID id.ID) (*client.Client, error) {
	return r.table.GetByID(ctx, clientID, false)
}

func (r *ClientRepo) GetByTelephone(ctx context.Context, telephone string) (*client.Client, error) {
	return r.table.GetBy(ctx, squirrel.Eq{"telephone": telephone}, telephone)
}

func (r *ClientRepo) Update(ctx context.Context, c *client.Client) error {
	return r.table.Update(ctx, c.ID, c)
}

func (r *ClientRepo) ExistsByTelephone(ctx context.Context, telephone string, exclude *id.ID) (bool, error) {
	where := squirrel.And{squirrel.Eq{"telephone": telephone}}
	if exclude != nil {
		where = append(where, squirrel.NotEq{"id": *exclude})
	}
	return r.table.Exists(ctx, where)
}

func (r *ClientRepo) List(ctx context.Context, f client.Filter) ([]client.Client, int64, error) {
	return postgres.Paginate[client.Client](ctx, r.listQuery(f), f.Page, "created_at DESC")
}

func (r *ClientRepo) listQuery(f client.Filter) squirrel.SelectBuilder {
	q := r.table.Select()
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "nom", "prenom", "raison_sociale", "telephone", "ville"))
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"type": f.Type})
	}
	if f.IsProspect != nil {
		q = q.Where(squirrel.Eq{"is_prospect": *f.IsProspect})
	}
	if f.IsActive != nil {
		q = q.Where(squirrel.Eq{"is_active": *f.IsActive})
	}
	if f.CommercialID != nil {
		q = q.Where(squirrel.Eq{"commercial_id": *f.CommercialID})
	}
	if f.AgenceID != nil {
		q = q.Where(squirrel.Eq{"agence_id": *f.AgenceID})
	}
	return q
}

var _ client.Repository = (*ClientRepo)(nil)
