package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/id"
)

func TestDiff(t *testing.T) {
	changes := Diff(
		map[string]any{"statut": "brouillon", "montant": 10, "old": true},
		map[string]any{"statut": "validee", "montant": 10, "new": "x"},
	)

	assert.Len(t, changes, 3)
	assert.Equal(t, map[string]any{"old": "brouillon", "new": "validee"}, changes["statut"])
	assert.Equal(t, map[string]any{"old": nil, "new": "x"}, changes["new"])
	assert.Equal(t, map[string]any{"old": true, "new": nil}, changes["old"])
}

func TestFill(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "u-1"})
	e := Transition("commande", id.New(), ActionValidate, "brouillon", "validee")
	Fill(ctx, &e)

	assert.False(t, id.IsNil(e.ID))
	assert.Equal(t, "u-1", e.UserID)
	assert.False(t, e.CreatedAt.IsZero())
}
