package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
)

func userCtx(role, userID, agenceID string) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID, Role: role, AgenceID: agenceID})
}

func TestDefaultPolicy_Compiles(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, []string{"*"}, p.Capabilities("admin"))
	assert.Contains(t, p.Capabilities("comptable"), "factures:write")
	assert.Empty(t, p.Capabilities("unknown"))
}

func TestPolicy_Allows(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		role string
		cap  Capability
		want bool
	}{
		{"admin", CapUsersManage, true},
		{"comptable", CapFacturesWrite, true},
		{"comptable", CapCommandesCreate, false},
		{"commercial", CapCommandesCreate, true},
		{"commercial", CapStockTransfer, false},
		{"rh", CapRHApprove, true},
		{"employe", CapArticlesRead, true},
		{"employe", CapClientsRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.cap), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allows(&appctx.UserContext{Role: tt.role}, tt.cap))
		})
	}
	assert.False(t, p.Allows(nil, CapArticlesRead))
}

func TestPolicy_AuthorizeCondition(t *testing.T) {
	p := DefaultPolicy()

	ctx := userCtx("manager_agence", "u-1", "ag-1")
	require.NoError(t, p.Authorize(ctx, CapCommandesValidate, map[string]any{"agence_id": "ag-1"}))

	err := p.Authorize(ctx, CapCommandesValidate, map[string]any{"agence_id": "ag-2"})
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	// missing key denies
	err = p.Authorize(ctx, CapCommandesValidate, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	commercial := userCtx("commercial", "u-7", "ag-1")
	require.NoError(t, p.Authorize(commercial, CapClientsWrite, map[string]any{"commercial_id": "u-7"}))
	assert.Error(t, p.Authorize(commercial, CapClientsWrite, map[string]any{"commercial_id": "u-8"}))
	assert.True(t, p.IsConditional("commercial", CapClientsWrite))
	assert.False(t, p.IsConditional("tc", CapClientsWrite))
}

func TestPolicy_AuthorizeAdminAndAnonymous(t *testing.T) {
	p := DefaultPolicy()
	assert.NoError(t, p.Authorize(userCtx("admin", "a", ""), CapBCGWrite, nil))

	err := p.Authorize(context.Background(), CapBCGRead, nil)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))
}

func TestPolicy_AgenceScope(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, "", p.AgenceScope(userCtx("admin", "a", "ag-1")))
	assert.Equal(t, "", p.AgenceScope(userCtx("comptable", "c", "ag-1")))
	assert.Equal(t, "ag-1", p.AgenceScope(userCtx("tc", "t", "ag-1")))
}

func TestNewPolicy_RejectsBadCondition(t *testing.T) {
	_, err := NewPolicy(map[Role][]Grant{RoleTC: {{Capability: CapClientsRead, Condition: "resource.x +"}}})
	assert.Error(t, err)

	_, err = NewPolicy(map[Role][]Grant{RoleTC: {{Capability: CapClientsRead, Condition: `"not bool"`}}})
	assert.Error(t, err)
}
