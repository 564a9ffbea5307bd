package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tx"
)

type memRepo struct {
	rows map[id.ID]Client
}

func newMemRepo() *memRepo { return &memRepo{rows: map[id.ID]Client{}} }

func (m *memRepo) Create(_ context.Context, c *Client) error {
	m.rows[c.ID] = *c
	return nil
}

func (m *memRepo) GetByID(_ context.Context, clientID id.ID) (*Client, error) {
	c, ok := m.rows[clientID]
	if !ok {
		return nil, apperror.NewNotFound("client", clientID)
	}
	return &c, nil
}

func (m *memRepo) GetByTelephone(_ context.Context, tel string) (*Client, error) {
	for _, c := range m.rows {
		if c.Telephone == tel {
			return &c, nil
		}
	}
	return nil, apperror.NewNotFound("client", tel)
}

func (m *memRepo) Update(ctx context.Context, c *Client) error { return m.Create(ctx, c) }

func (m *memRepo) ExistsByTelephone(_ context.Context, tel string, exclude *id.ID) (bool, error) {
	for _, c := range m.rows {
		if c.Telephone == tel && (exclude == nil || c.ID != *exclude) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Client, int64, error) {
	var out []Client
	for _, c := range m.rows {
		if f.CommercialID != nil && (c.CommercialID == nil || *c.CommercialID != *f.CommercialID) {
			continue
		}
		if f.IsProspect != nil && c.IsProspect != *f.IsProspect {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func newService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, security.DefaultPolicy(), tx.Nop{}), repo
}

func userCtx(role string, userID id.ID) context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{UserID: userID.String(), Role: role})
}

func garage() Input {
	return Input{
		Type:           TypeEntreprise,
		RaisonSociale:  "Garage Atlas",
		Telephone:      "0522 11 22 33",
		Ville:          "Casablanca",
		TypeEntreprise: "sarl",
	}
}

func TestService_Create(t *testing.T) {
	svc, _ := newService()
	ctx := userCtx("tc", id.New())

	c, err := svc.Create(ctx, garage())
	require.NoError(t, err)
	assert.Equal(t, "0522112233", c.Telephone)
	assert.Equal(t, "SARL", c.TypeEntreprise)
	assert.True(t, c.IsActive)
	assert.Equal(t, "Garage Atlas", c.DisplayName())

	_, err = svc.Create(ctx, garage())
	assert.True(t, apperror.HasCode(err, "DUPLICATE_PHONE"))
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := newService()
	ctx := userCtx("tc", id.New())

	tests := []struct {
		name string
		in   Input
	}{
		{"particulier without prenom", Input{Type: TypeParticulier, Nom: "Alami", Telephone: "0612345678"}},
		{"entreprise without raison sociale", Input{Type: TypeEntreprise, Telephone: "0612345678"}},
		{"unknown type", Input{Type: "autre", Nom: "x", Telephone: "0612345678"}},
		{"bad phone", Input{Type: TypeParticulier, Nom: "A", Prenom: "B", Telephone: "12"}},
		{"bad legal form", Input{Type: TypeEntreprise, RaisonSociale: "X", TypeEntreprise: "GmbH", Telephone: "0612345678"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.Equal(t, 400, apperror.GetHTTPStatus(err))
		})
	}
}

func TestService_CommercialOwnsClients(t *testing.T) {
	svc, _ := newService()
	alice, bob := id.New(), id.New()

	c, err := svc.Create(userCtx("commercial", alice), garage())
	require.NoError(t, err)
	require.NotNil(t, c.CommercialID)
	assert.Equal(t, alice, *c.CommercialID)

	other := garage()
	other.Telephone = "0600000001"
	_, err = svc.Create(userCtx("commercial", bob), other)
	require.NoError(t, err)

	list, err := svc.List(userCtx("commercial", alice), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Pagination.Total)

	all, err := svc.List(userCtx("tc", id.New()), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Pagination.Total)

	upd := garage()
	upd.RaisonSociale = "Garage Atlas Nord"
	_, err = svc.Update(userCtx("commercial", bob), c.ID, upd)
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))

	updated, err := svc.Update(userCtx("commercial", alice), c.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, "Garage Atlas Nord", updated.RaisonSociale)
}

func TestService_ProspectConversion(t *testing.T) {
	svc, repo := newService()
	ctx := userCtx("tc", id.New())

	p, err := svc.CreateProspect(context.Background(), Input{Type: TypeParticulier, Nom: "Idrissi", Prenom: "Sara", Telephone: "+212612345678"})
	require.NoError(t, err)
	assert.True(t, p.IsProspect)
	assert.False(t, p.IsActive)

	c, err := svc.ConvertToClient(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, c.IsProspect)
	assert.True(t, repo.rows[p.ID].IsActive)

	_, err = svc.ConvertToClient(ctx, p.ID)
	assert.True(t, apperror.HasCode(err, "ALREADY_CLIENT"))
	assert.Equal(t, 422, apperror.GetHTTPStatus(err))
}

func TestService_Deactivate(t *testing.T) {
	svc, repo := newService()
	ctx := userCtx("tc", id.New())
	c, err := svc.Create(ctx, garage())
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, c.ID))
	assert.False(t, repo.rows[c.ID].IsActive)

	err = svc.Deactivate(ctx, id.New())
	assert.True(t, apperror.HasCode(err, "CLIENT_NOT_FOUND"))
}
