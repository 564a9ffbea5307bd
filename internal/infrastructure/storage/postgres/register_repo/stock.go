// Package register_repo stores the stock ledger: balances and movements.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/stock"
	"autoerp/internal/infrastructure/storage/postgres"
)

const (
	stocksTable    = "stocks"
	movementsTable = "mouvements_stock"
)

var stockColumns = postgres.ExtractDBColumns[stock.Stock]()

// StockRepo implements stock.Repository.
type StockRepo struct{}

func NewStockRepo() *StockRepo {
	return &StockRepo{}
}

func keyArrays(keys []stock.Key) (articles, agences []string) {
	articles = make([]string, len(keys))
	agences = make([]string, len(keys))
	for i, k := range keys {
		articles[i] = k.ArticleID.String()
		agences[i] = k.AgenceID.String()
	}
	return articles, agences
}

const ensureSQL = `
	INSERT INTO stocks (article_id, agence_id, quantite, quantite_reservee, valeur_stock, updated_at)
	SELECT k.article_id, k.agence_id, 0, 0, 0, now()
	FROM unnest($1::uuid[], $2::uuid[]) AS k(article_id, agence_id)
	ORDER BY k.article_id, k.agence_id
	ON CONFLICT (article_id, agence_id) DO NOTHING`

func lockQuery(keys []stock.Key) squirrel.SelectBuilder {
	articles, agences := keyArrays(keys)
	return postgres.Builder.Select(stockColumns...).From(stocksTable).
		Where("(article_id, agence_id) IN (SELECT * FROM unnest(?::uuid[], ?::uuid[]))", articles, agences).
		OrderBy("article_id", "agence_id").
		Suffix("FOR UPDATE")
}

// EnsureStocks creates the missing rows of keys at zero. A concurrent
// insert of the same key makes it wait until that transaction ends.
func (r *StockRepo) EnsureStocks(ctx context.Context, keys []stock.Key) error {
	if len(keys) == 0 {
		return nil
	}
	articles, agences := keyArrays(keys)
	if _, err := postgres.QuerierFrom(ctx).Exec(ctx, ensureSQL, articles, agences); err != nil {
		return postgres.TranslateError(fmt.Errorf("ensure stocks: %w", err), nil)
	}
	return nil
}

// LockStocks selects the rows FOR UPDATE in (article_id, agence_id) order,
// the same order every writer uses, so two documents never deadlock.
func (r *StockRepo) LockStocks(ctx context.Context, keys []stock.Key) ([]stock.Stock, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := postgres.SelectAll[stock.Stock](ctx, lockQuery(keys))
	if err != nil {
		return nil, fmt.Errorf("lock stocks: %w", err)
	}
	return rows, nil
}

// SaveStocks writes balance rows locked by LockStocks.
func (r *StockRepo) SaveStocks(ctx context.Context, rows []stock.Stock) error {
	if len(rows) == 0 {
		return nil
	}
	q := postgres.Builder.Insert(stocksTable).Columns(stockColumns...)
	for i := range rows {
		s := &rows[i]
		q = q.Values(s.ArticleID, s.AgenceID, s.Quantite, s.QuantiteReservee, s.ValeurStock, s.LastMovement, s.UpdatedAt)
	}
	q = q.Suffix(`ON CONFLICT (article_id, agence_id) DO UPDATE SET
		quantite = EXCLUDED.quantite,
		quantite_reservee = EXCLUDED.quantite_reservee,
		valeur_stock = EXCLUDED.valeur_stock,
		last_movement = EXCLUDED.last_movement,
		updated_at = EXCLUDED.updated_at`)
	if _, err := postgres.Exec(ctx, q); err != nil {
		return postgres.TranslateError(fmt.Errorf("save stocks: %w", err), nil)
	}
	return nil
}

// InsertMovements appends ledger rows, with COPY inside a transaction.
func (r *StockRepo) InsertMovements(ctx context.Context, movements []stock.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	txm := postgres.MustGetTxManager(ctx)
	if txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(movements))
		for i := range movements {
			rows = append(rows, movements[i].Values())
		}
		if _, err := txm.CopyFromSlice(ctx, movementsTable, stock.MovementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := postgres.Builder.Insert(movementsTable).Columns(stock.MovementColumns...)
	for i := range movements {
		q = q.Values(movements[i].Values()...)
	}
	if _, err := postgres.Exec(ctx, q); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

func (r *StockRepo) Articles(ctx context.Context, articleIDs []id.ID) (map[id.ID]stock.ArticleInfo, error) {
	out := make(map[id.ID]stock.ArticleInfo, len(articleIDs))
	if len(articleIDs) == 0 {
		return out, nil
	}
	rows, err := postgres.SelectAll[stock.ArticleInfo](ctx, postgres.Builder.
		Select("id", "libelle", "cmp").From("articles").
		Where(squirrel.Eq{"id": articleIDs}))
	if err != nil {
		return nil, fmt.Errorf("load articles: %w", err)
	}
	for _, a := range rows {
		out[a.ID] = a
	}
	return out, nil
}

// InitArticle creates a zero row in every active depot that lacks one.
func (r *StockRepo) InitArticle(ctx context.Context, articleID id.ID) (int64, error) {
	tag, err := postgres.QuerierFrom(ctx).Exec(ctx, `
		INSERT INTO stocks (article_id, agence_id, quantite, quantite_reservee, valeur_stock, updated_at)
		SELECT $1, a.id, 0, 0, 0, now()
		FROM agences a
		WHERE a.is_depot AND a.is_active
		ON CONFLICT (article_id, agence_id) DO NOTHING`, articleID)
	if err != nil {
		return 0, fmt.Errorf("init article stock: %w", err)
	}
	return tag.RowsAffected(), nil
}

func viewSelect() squirrel.SelectBuilder {
	return postgres.Builder.Select(
		"s.article_id", "s.agence_id", "s.quantite", "s.quantite_reservee", "s.valeur_stock",
		"s.last_movement", "s.updated_at",
		"a.sku", "a.libelle", "a.seuil_min",
		"g.nom AS agence_nom", "g.code AS agence_code",
	).From("stocks s").
		Join("articles a ON a.id = s.article_id").
		Join("agences g ON g.id = s.agence_id")
}

func (r *StockRepo) ByArticle(ctx context.Context, articleID id.ID) ([]stock.StockView, error) {
	return postgres.SelectAll[stock.StockView](ctx, viewSelect().
		Where(squirrel.Eq{"s.article_id": articleID}).
		OrderBy("g.nom"))
}

// BelowThreshold lists rows at or below the article seuil_min.
func (r *StockRepo) BelowThreshold(ctx context.Context, agenceID *id.ID) ([]stock.StockView, error) {
	q := viewSelect().
		Where("a.is_active AND a.seuil_min > 0 AND s.quantite <= a.seuil_min").
		OrderBy("g.nom", "a.sku")
	if agenceID != nil {
		q = q.Where(squirrel.Eq{"s.agence_id": *agenceID})
	}
	return postgres.SelectAll[stock.StockView](ctx, q)
}

func (r *StockRepo) ListMovements(ctx context.Context, f stock.MovementFilter) ([]stock.Movement, int64, error) {
	return postgres.Paginate[stock.Movement](ctx, movementQuery(f), f.Page, "created_at DESC", "id")
}

func movementQuery(f stock.MovementFilter) squirrel.SelectBuilder {
	q := postgres.Builder.Select(stock.MovementColumns...).From(movementsTable)
	if f.ArticleID != nil {
		q = q.Where(squirrel.Eq{"article_id": *f.ArticleID})
	}
	if f.AgenceID != nil {
		q = q.Where(squirrel.Eq{"agence_id": *f.AgenceID})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"type": f.Type})
	}
	if f.Reference != "" {
		q = q.Where(squirrel.Eq{"reference": f.Reference})
	}
	if f.DateDebut != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.DateDebut})
	}
	if f.DateFin != nil {
		q = q.Where(squirrel.Lt{"created_at": f.DateFin.AddDate(0, 0, 1)})
	}
	return q
}

func (r *StockRepo) HasMovements(ctx context.Context, articleID id.ID) (bool, error) {
	var exists bool
	err := postgres.QuerierFrom(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM mouvements_stock WHERE article_id = $1)`, articleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check movements: %w", err)
	}
	return exists, nil
}

var _ stock.Repository = (*StockRepo)(nil)
