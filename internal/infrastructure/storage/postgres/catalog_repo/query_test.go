package catalog_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
)

func TestArticleListQuery(t *testing.T) {
	repo := NewArticleRepo()

	tests := []struct {
		name     string
		filter   catalog.Filter
		contains []string
		args     []any
	}{
		{
			name:     "search",
			filter:   catalog.Filter{Search: "plaq"},
			contains: []string{"(sku ILIKE $1 OR libelle ILIKE $2 OR marque ILIKE $3 OR code_barres ILIKE $4)"},
			args:     []any{"%plaq%", "%plaq%", "%plaq%", "%plaq%"},
		},
		{
			name:     "famille is normalized",
			filter:   catalog.Filter{Famille: "  freinage ", ActiveOnly: true},
			contains: []string{"famille = $1", "is_active = $2"},
			args:     []any{"Freinage", true},
		},
		{
			name:     "below threshold",
			filter:   catalog.Filter{SousSeuil: true},
			contains: []string{"SUM(s.quantite)", "<= seuil_min"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := repo.listQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, "FROM articles")
			for _, c := range tt.contains {
				assert.Contains(t, sql, c)
			}
			if tt.args != nil {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestClientListQuery(t *testing.T) {
	commercial := id.New()
	active := true
	sql, args, err := NewClientRepo().listQuery(client.Filter{IsActive: &active, CommercialID: &commercial}).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT "+strings.Join(NewClientRepo().table.Columns, ", ")+" FROM clients WHERE is_active = $1 AND commercial_id = $2",
		sql)
	assert.Equal(t, []any{true, commercial.String()}, args)
}
