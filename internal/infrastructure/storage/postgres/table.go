package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
)

// Builder is the squirrel builder with PostgreSQL placeholders.
var Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Table provides the common statements of a table whose rows map to T
// through "db" tags. The TxManager always comes from ctx.
type Table[T any] struct {
	Name    string
	Columns []string
	// Entity is the name used in NOT_FOUND codes.
	Entity string
	Dups   Duplicates
}

// NewTable lists the columns of T, minus the joined ones that are not stored.
func NewTable[T any](name, entityName string, joined ...string) *Table[T] {
	return &Table[T]{
		Name:    name,
		Columns: Without(ExtractDBColumns[T](), joined...),
		Entity:  entityName,
	}
}

// WithDuplicates sets the unique constraint mapping used on writes.
func (t *Table[T]) WithDuplicates(d Duplicates) *Table[T] {
	t.Dups = d
	return t
}

// QuerierFrom returns the transaction in ctx or the tenant pool.
func QuerierFrom(ctx context.Context) Querier {
	return MustGetTxManager(ctx).GetQuerier(ctx)
}

// Insert stores v.
func (t *Table[T]) Insert(ctx context.Context, v *T) error {
	data := StructToMap(v)
	q := Builder.Insert(t.Name).SetMap(pick(data, t.Columns))
	_, err := Exec(ctx, q)
	if err != nil {
		return TranslateError(fmt.Errorf("insert %s: %w", t.Name, err), t.Dups)
	}
	return nil
}

// Update writes every column of v except the immutable ones, by id.
func (t *Table[T]) Update(ctx context.Context, rowID id.ID, v *T, immutable ...string) error {
	data := StructToMap(v)
	cols := Without(t.Columns, append(immutable, "id", "created_at")...)
	q := Builder.Update(t.Name).SetMap(pick(data, cols)).Where(squirrel.Eq{"id": rowID})
	tag, err := Exec(ctx, q)
	if err != nil {
		return TranslateError(fmt.Errorf("update %s: %w", t.Name, err), t.Dups)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(t.Entity, rowID.String())
	}
	return nil
}

// Select returns the base SELECT of the table.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return Builder.Select(t.Columns...).From(t.Name)
}

// GetBy loads the single row matching where.
func (t *Table[T]) GetBy(ctx context.Context, where squirrel.Sqlizer, key string) (*T, error) {
	return GetOne[T](ctx, t.Select().Where(where).Limit(1), t.Entity, key)
}

// GetByID loads the row by id, optionally locking it.
func (t *Table[T]) GetByID(ctx context.Context, rowID id.ID, forUpdate bool) (*T, error) {
	q := t.Select().Where(squirrel.Eq{"id": rowID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return GetOne[T](ctx, q, t.Entity, rowID.String())
}

// Exists reports whether a row matches where.
func (t *Table[T]) Exists(ctx context.Context, where squirrel.Sqlizer) (bool, error) {
	sub, args, err := Builder.Select("1").From(t.Name).Where(where).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var exists bool
	if err := QuerierFrom(ctx).QueryRow(ctx, "SELECT EXISTS ("+sub+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists in %s: %w", t.Name, err)
	}
	return exists, nil
}

// GetOne scans the first row of q into a new T; no row gives an
// <ENTITY>_NOT_FOUND error.
func GetOne[T any](ctx context.Context, q squirrel.Sqlizer, entityName, key string) (*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var dst T
	if err := pgxscan.Get(ctx, QuerierFrom(ctx), &dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entityName, key)
		}
		return nil, fmt.Errorf("get %s: %w", entityName, err)
	}
	return &dst, nil
}

// SelectAll scans every row of q.
func SelectAll[T any](ctx context.Context, q squirrel.Sqlizer) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []T
	if err := pgxscan.Select(ctx, QuerierFrom(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	return out, nil
}

// Paginate counts the rows of q, then loads one page ordered by orderBy.
func Paginate[T any](ctx context.Context, q squirrel.SelectBuilder, p entity.Page, orderBy ...string) ([]T, int64, error) {
	countSQL, countArgs, err := Builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := QuerierFrom(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	p = p.Normalize()
	items, err := SelectAll[T](ctx, q.OrderBy(orderBy...).Limit(uint64(p.Limit)).Offset(uint64(p.Offset())))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Exec runs a write statement.
func Exec(ctx context.Context, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build statement: %w", err)
	}
	return QuerierFrom(ctx).Exec(ctx, sql, args...)
}

// Search is an ILIKE on any of cols.
func Search(term string, cols ...string) squirrel.Or {
	pattern := "%" + term + "%"
	or := make(squirrel.Or, 0, len(cols))
	for _, c := range cols {
		or = append(or, squirrel.ILike{c: pattern})
	}
	return or
}

func pick(data map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := data[c]; ok {
			out[c] = v
		}
	}
	return out
}
