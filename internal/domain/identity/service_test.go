package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
	"autoerp/internal/core/tx"
)

type fixture struct {
	svc     *Service
	users   *memUsers
	agences *memAgences
	tokens  *memTokens
	jwt     *JWTService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:   newMemUsers(),
		agences: newMemAgences(),
		tokens:  newMemTokens(),
		jwt:     NewJWTService(DefaultJWTConfig("test-secret")),
	}
	cfg := DefaultServiceConfig()
	cfg.BcryptCost = bcrypt.MinCost
	f.svc = NewService(f.users, f.agences, f.tokens, tx.Nop{}, f.jwt, security.DefaultPolicy(), cfg)
	return f
}

func adminCtx() context.Context {
	ctx := tenant.WithTenant(context.Background(), &tenant.Tenant{ID: "tenant-1"})
	return appctx.WithUser(ctx, &appctx.UserContext{UserID: id.New().String(), Role: "admin"})
}

func validInput() CreateUserInput {
	return CreateUserInput{
		Email:     "Karim@Pieces.ma",
		Password:  "secret1",
		Nom:       "Alami",
		Prenom:    "Karim",
		Telephone: "0612345678",
		Role:      "commercial",
	}
}

func TestService_CreateUserAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	depot, err := f.svc.CreateAgence(ctx, AgenceInput{Nom: "Depot Casa", Code: "cas", Ville: "Casablanca", IsDepot: true})
	require.NoError(t, err)
	assert.Equal(t, "CAS", depot.Code)

	in := validInput()
	in.AgenceID = &depot.ID
	user, err := f.svc.CreateUser(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "karim@pieces.ma", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	pair, logged, err := f.svc.Login(ctx, "karim@pieces.ma", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotNil(t, logged.LastLogin)
	require.NotNil(t, logged.Agence)
	assert.Equal(t, "Depot Casa", logged.Agence.Nom)

	claims, err := f.jwt.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, depot.ID.String(), claims.AgenceID)
	assert.Contains(t, claims.Capabilities, string(security.CapCommandesCreate))
}

func TestService_CreateUserErrors(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	_, err := f.svc.CreateUser(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.CreateUser(ctx, validInput())
	assert.True(t, apperror.HasCode(err, "DUPLICATE_EMAIL"))
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))

	short := validInput()
	short.Email = "other@pieces.ma"
	short.Password = "123"
	_, err = f.svc.CreateUser(ctx, short)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	badRole := validInput()
	badRole.Email = "x@pieces.ma"
	badRole.Role = "superuser"
	_, err = f.svc.CreateUser(ctx, badRole)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	badPhone := validInput()
	badPhone.Email = "y@pieces.ma"
	badPhone.Telephone = "12345"
	_, err = f.svc.CreateUser(ctx, badPhone)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	missingAgence := validInput()
	missingAgence.Email = "z@pieces.ma"
	ghost := id.New()
	missingAgence.AgenceID = &ghost
	_, err = f.svc.CreateUser(ctx, missingAgence)
	assert.True(t, apperror.HasCode(err, "AGENCE_NOT_FOUND"))
}

func TestService_LoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	inactive := false
	in := validInput()
	in.IsActive = &inactive
	_, err := f.svc.CreateUser(ctx, in)
	require.NoError(t, err)

	_, _, err = f.svc.Login(ctx, "karim@pieces.ma", "wrong-pass")
	assert.True(t, apperror.HasCode(err, "INVALID_CREDENTIALS"))

	_, _, err = f.svc.Login(ctx, "nobody@pieces.ma", "secret1")
	assert.True(t, apperror.HasCode(err, "INVALID_CREDENTIALS"))

	_, _, err = f.svc.Login(ctx, "karim@pieces.ma", "secret1")
	assert.True(t, apperror.HasCode(err, "USER_INACTIVE"))
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))
}

func TestService_RefreshRotatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	user, err := f.svc.CreateUser(ctx, validInput())
	require.NoError(t, err)

	pair, _, err := f.svc.Login(ctx, "karim@pieces.ma", "secret1")
	require.NoError(t, err)

	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.Equal(t, 1, f.tokens.active(user.ID))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.True(t, apperror.HasCode(err, "INVALID_REFRESH_TOKEN"))

	_, err = f.svc.Refresh(ctx, "")
	assert.True(t, apperror.HasCode(err, "REFRESH_TOKEN_REQUIRED"))

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = f.svc.Refresh(ctx, next.RefreshToken)
	assert.True(t, apperror.HasCode(err, "INVALID_REFRESH_TOKEN"))
}

func TestService_LogoutRevokesAll(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	user, err := f.svc.CreateUser(ctx, validInput())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, _, err := f.svc.Login(ctx, "karim@pieces.ma", "secret1")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.tokens.active(user.ID))

	require.NoError(t, f.svc.Logout(ctx, user.ID))
	assert.Equal(t, 0, f.tokens.active(user.ID))
}

func TestService_RegisterRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: "tc"})

	_, err := f.svc.Register(ctx, validInput())
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))

	_, err = f.svc.Register(adminCtx(), validInput())
	assert.NoError(t, err)
}

func TestService_DeactivateUser(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	user, err := f.svc.CreateUser(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeactivateUser(ctx, user.ID))
	got, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	self := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: user.ID.String(), Role: "admin"})
	err = f.svc.DeactivateUser(self, user.ID)
	assert.True(t, apperror.HasCode(err, "CANNOT_DEACTIVATE_SELF"))
}

func TestService_UpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	user, err := f.svc.CreateUser(ctx, validInput())
	require.NoError(t, err)
	other := validInput()
	other.Email = "other@pieces.ma"
	_, err = f.svc.CreateUser(ctx, other)
	require.NoError(t, err)

	role := "tc"
	nom := "  Bennani "
	updated, err := f.svc.UpdateUser(ctx, user.ID, UpdateUserInput{Role: &role, Nom: &nom})
	require.NoError(t, err)
	assert.Equal(t, "tc", updated.Role)
	assert.Equal(t, "Bennani", updated.Nom)

	taken := "other@pieces.ma"
	_, err = f.svc.UpdateUser(ctx, user.ID, UpdateUserInput{Email: &taken})
	assert.True(t, apperror.HasCode(err, "DUPLICATE_EMAIL"))
}

func TestService_GetUserOwnProfileOnly(t *testing.T) {
	f := newFixture(t)
	user, err := f.svc.CreateUser(adminCtx(), validInput())
	require.NoError(t, err)

	own := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: user.ID.String(), Role: "commercial"})
	_, err = f.svc.GetUser(own, user.ID)
	assert.NoError(t, err)

	stranger := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: "commercial"})
	_, err = f.svc.GetUser(stranger, user.ID)
	assert.True(t, apperror.HasCode(err, "INSUFFICIENT_PERMISSIONS"))
}

func TestService_ListUsersScopedToAgence(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()
	a1, err := f.svc.CreateAgence(ctx, AgenceInput{Nom: "A1", Code: "A1", Ville: "Rabat", IsDepot: true})
	require.NoError(t, err)
	a2, err := f.svc.CreateAgence(ctx, AgenceInput{Nom: "A2", Code: "A2", Ville: "Fes", IsDepot: true})
	require.NoError(t, err)

	for i, ag := range []*Agence{a1, a2, a2} {
		in := validInput()
		in.Email = []string{"a@x.ma", "b@x.ma", "c@x.ma"}[i]
		in.AgenceID = &ag.ID
		_, err := f.svc.CreateUser(ctx, in)
		require.NoError(t, err)
	}

	all, err := f.svc.ListUsers(ctx, UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Pagination.Total)

	manager := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: id.New().String(), Role: "manager_agence", AgenceID: a2.ID.String()})
	scoped, err := f.svc.ListUsers(manager, UserFilter{Page: entity.Page{Page: 1, Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), scoped.Pagination.Total)
	assert.Equal(t, 1, scoped.Pagination.Pages)
}

func TestService_Agences(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	_, err := f.svc.CreateAgence(ctx, AgenceInput{Nom: "Both", Code: "BT", Ville: "Casa", IsDepot: true, IsVehicule: true})
	assert.True(t, apperror.HasCode(err, "INVALID_AGENCE_KIND"))

	v, err := f.svc.CreateAgence(ctx, AgenceInput{Nom: "Van 1", Code: "VAN1", Ville: "Casa", IsVehicule: true})
	require.NoError(t, err)
	_, err = f.svc.CreateAgence(ctx, AgenceInput{Nom: "Depot", Code: "DEP", Ville: "Casa", IsDepot: true})
	require.NoError(t, err)

	_, err = f.svc.CreateAgence(ctx, AgenceInput{Nom: "Dup", Code: "van1", Ville: "Casa"})
	assert.True(t, apperror.HasCode(err, "DUPLICATE_CODE"))

	yes := true
	vans, err := f.svc.ListAgences(ctx, AgenceFilter{IsVehicule: &yes})
	require.NoError(t, err)
	require.Len(t, vans, 1)
	assert.Equal(t, v.ID, vans[0].ID)

	updated, err := f.svc.UpdateAgence(ctx, v.ID, AgenceInput{Nom: "Van Nord", Code: "VAN1", Ville: "Tanger", IsVehicule: true})
	require.NoError(t, err)
	assert.Equal(t, "Tanger", updated.Ville)
}
