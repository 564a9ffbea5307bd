// Package catalog_repo stores articles and clients.
// In Database-per-Tenant architecture, TxManager is obtained from context per-request.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/infrastructure/storage/postgres"
)

// ArticleRepo implements catalog.Repository.
type ArticleRepo struct {
	table *postgres.Table[catalog.Article]
}

func NewArticleRepo() *ArticleRepo {
	return &ArticleRepo{
		table: postgres.NewTable[catalog.Article]("articles", "article").WithDuplicates(postgres.Duplicates{
			"articles_sku_key": func() *apperror.AppError {
				return apperror.NewDuplicate("article", "sku", "").WithCode("DUPLICATE_SKU")
			},
		}),
	}
}

func (r *ArticleRepo) Create(ctx context.Context, a *catalog.Article) error {
	return r.table.Insert(ctx, a)
}

func (r *ArticleRepo) GetByID(ctx context.Context, articleID id.ID) (*catalog.Article, error) {
	return r.table.GetByID(ctx, articleID, false)
}

func (r *ArticleRepo) GetByIDs(ctx context.Context, articleIDs []id.ID) ([]catalog.Article, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}
	return postgres.SelectAll[catalog.Article](ctx, r.table.Select().Where(squirrel.Eq{"id": articleIDs}))
}

func (r *ArticleRepo) Update(ctx context.Context, a *catalog.Article) error {
	return r.table.Update(ctx, a.ID, a)
}

func (r *ArticleRepo) ExistsBySKU(ctx context.Context, sku string, exclude *id.ID) (bool, error) {
	where := squirrel.And{squirrel.Eq{"sku": sku}}
	if exclude != nil {
		where = append(where, squirrel.NotEq{"id": *exclude})
	}
	return r.table.Exists(ctx, where)
}

func (r *ArticleRepo) List(ctx context.Context, f catalog.Filter) ([]catalog.Article, int64, error) {
	return postgres.Paginate[catalog.Article](ctx, r.listQuery(f), f.Page, "libelle", "sku")
}

// listQuery applies f. SousSeuil keeps articles whose total available
// quantity across agences is at or below seuil_min.
func (r *ArticleRepo) listQuery(f catalog.Filter) squirrel.SelectBuilder {
	q := r.table.Select()
	if f.Search != "" {
		q = q.Where(postgres.Search(f.Search, "sku", "libelle", "marque", "code_barres"))
	}
	if f.Famille != "" {
		q = q.Where(squirrel.Eq{"famille": catalog.NormalizeLabel(f.Famille)})
	}
	if f.SousFamille != "" {
		q = q.Where(squirrel.Eq{"sous_famille": catalog.NormalizeLabel(f.SousFamille)})
	}
	if f.Marque != "" {
		q = q.Where(squirrel.ILike{"marque": f.Marque})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"type": f.Type})
	}
	if f.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if f.SousSeuil {
		q = q.Where(squirrel.Expr(
			"seuil_min > 0 AND (SELECT COALESCE(SUM(s.quantite), 0) FROM stocks s WHERE s.article_id = articles.id) <= seuil_min"))
	}
	return q
}

func (r *ArticleRepo) Familles(ctx context.Context) ([]string, error) {
	return r.labels(ctx, "famille", squirrel.Eq{"is_active": true})
}

func (r *ArticleRepo) SousFamilles(ctx context.Context, famille string) ([]string, error) {
	where := squirrel.And{squirrel.Eq{"is_active": true}}
	if famille != "" {
		where = append(where, squirrel.Eq{"famille": famille})
	}
	return r.labels(ctx, "sous_famille", where)
}

func (r *ArticleRepo) labels(ctx context.Context, col string, where squirrel.Sqlizer) ([]string, error) {
	q := postgres.Builder.Select("DISTINCT " + col).From("articles").
		Where(where).
		Where(squirrel.NotEq{col: ""}).
		OrderBy(col)
	labels, err := postgres.SelectAll[string](ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", col, err)
	}
	return labels, nil
}

var _ catalog.Repository = (*ArticleRepo)(nil)
