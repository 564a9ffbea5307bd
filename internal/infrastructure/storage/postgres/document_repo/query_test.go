package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/order"
)

func TestOrderListQuery(t *testing.T) {
	repo := NewOrderRepo()
	client := id.New()
	debut := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	fin := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.listQuery(order.Filter{
		ClientID:         &client,
		ExcludeBrouillon: true,
		DateDebut:        &debut,
		DateFin:          &fin,
	}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM commandes WHERE statut <> $1 AND client_id = $2 AND date_commande >= $3 AND date_commande < $4")
	assert.Equal(t, []any{order.StatutBrouillon, client.String(), debut, fin.AddDate(0, 0, 1)}, args)
}

func TestOrderListQuery_Search(t *testing.T) {
	sql, args, err := NewOrderRepo().listQuery(order.Filter{Search: "atlas"}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "(numero ILIKE $1 OR client_id IN (SELECT id FROM clients WHERE nom ILIKE $2 OR raison_sociale ILIKE $3))")
	assert.Len(t, args, 3)
}

func TestCommandeColumns_ExcludeJoinedFields(t *testing.T) {
	cols := NewOrderRepo().commandes.Columns
	assert.Contains(t, cols, "numero")
	assert.NotContains(t, cols, "lignes")
	assert.NotContains(t, cols, "-")
}
