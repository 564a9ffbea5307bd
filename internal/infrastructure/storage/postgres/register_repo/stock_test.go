package register_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/stock"
)

func TestStockColumns_MatchSaveOrder(t *testing.T) {
	assert.Equal(t, []string{
		"article_id", "agence_id", "quantite", "quantite_reservee", "valeur_stock", "last_movement", "updated_at",
	}, stockColumns)
}

func TestMovementQuery(t *testing.T) {
	article := id.New()
	fin := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	sql, args, err := movementQuery(stock.MovementFilter{ArticleID: &article, Type: stock.TypeVente, DateFin: &fin}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM mouvements_stock WHERE article_id = $1 AND type = $2 AND created_at < $3")
	assert.Equal(t, []any{article.String(), stock.TypeVente, fin.AddDate(0, 0, 1)}, args)
}

func TestEnsureThenLock_SameKeys(t *testing.T) {
	a, b := id.New(), id.New()
	depot, camion := id.New(), id.New()
	keys := []stock.Key{{ArticleID: a, AgenceID: depot}, {ArticleID: b, AgenceID: camion}}

	articles, agences := keyArrays(keys)
	assert.Equal(t, []string{a.String(), b.String()}, articles)
	assert.Equal(t, []string{depot.String(), camion.String()}, agences)

	assert.Contains(t, ensureSQL, "FROM unnest($1::uuid[], $2::uuid[])")
	assert.Contains(t, ensureSQL, "ORDER BY k.article_id, k.agence_id")
	assert.Contains(t, ensureSQL, "ON CONFLICT (article_id, agence_id) DO NOTHING")

	sql, args, err := lockQuery(keys).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stocks WHERE (article_id, agence_id) IN (SELECT * FROM unnest($1::uuid[], $2::uuid[]))")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY article_id, agence_id FOR UPDATE"))
	assert.Equal(t, []any{articles, agences}, args)
}
