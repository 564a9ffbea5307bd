package hr_repo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertReturnsQualifiedColumns(t *testing.T) {
	r := NewCommissionRepo()
	got := joinColumns(r.table.Columns)
	assert.True(t, strings.HasPrefix(got, "commissions.id, commissions.created_at"))
	assert.Contains(t, got, "commissions.montant_commission")
	assert.Contains(t, upsertSuffix, "WHERE commissions.statut <> 'payee'")
}

func TestEmployeeColumns_SkipJoinedUser(t *testing.T) {
	cols := NewEmployeeRepo().table.Columns
	assert.Contains(t, cols, "matricule")
	for _, joined := range []string{"nom", "prenom", "email"} {
		assert.NotContains(t, cols, joined)
	}
}
