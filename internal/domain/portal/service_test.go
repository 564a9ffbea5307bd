package portal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/core/tenant"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
	"autoerp/internal/domain/portal"
	"autoerp/pkg/logger"
)

type memOTP struct {
	mu        sync.Mutex
	rows      map[string]portal.OTP
	deleteErr error
}

func (m *memOTP) Put(_ context.Context, key string, otp portal.OTP, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = otp
	return nil
}

func (m *memOTP) Get(_ context.Context, key string) (*portal.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.rows[key]
	if !ok {
		return nil, portal.ErrNotFound
	}
	return &otp, nil
}

func (m *memOTP) Fail(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	otp, ok := m.rows[key]
	if !ok {
		return 0, portal.ErrNotFound
	}
	otp.Attempts++
	m.rows[key] = otp
	return otp.Attempts, nil
}

func (m *memOTP) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.rows, key)
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]portal.Session
}

func (m *memSessions) Create(_ context.Context, s *portal.Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.Token] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, token string) (*portal.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[token]
	if !ok {
		return nil, portal.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, token)
	return nil
}

type fakeClients struct {
	byPhone map[string]*client.Client
}

func (f *fakeClients) GetByTelephone(_ context.Context, telephone string) (*client.Client, error) {
	c, ok := f.byPhone[telephone]
	if !ok {
		return nil, apperror.NewNotFound("client", telephone)
	}
	return c, nil
}

func (f *fakeClients) CreateProspect(_ context.Context, in client.Input) (*client.Client, error) {
	if _, ok := f.byPhone[in.Telephone]; ok {
		return nil, apperror.NewDuplicate("client", "telephone", in.Telephone).WithCode("DUPLICATE_PHONE")
	}
	c := &client.Client{Base: entity.NewBase(), Nom: in.Nom, Telephone: in.Telephone, IsProspect: true}
	f.byPhone[in.Telephone] = c
	return c, nil
}

type fakeCatalog struct {
	articles []catalog.Article
	lastList catalog.Filter
}

func (f *fakeCatalog) List(_ context.Context, flt catalog.Filter) (entity.List[catalog.Article], error) {
	f.lastList = flt
	return entity.NewList(f.articles, int64(len(f.articles)), flt.Page.Normalize()), nil
}

func (f *fakeCatalog) GetMany(_ context.Context, ids []id.ID) ([]catalog.Article, error) {
	var out []catalog.Article
	for _, a := range f.articles {
		for _, want := range ids {
			if a.ID == want {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) Familles(context.Context) ([]string, error) { return []string{"Freinage"}, nil }

func (f *fakeCatalog) SousFamilles(context.Context, string) ([]string, error) {
	return []string{"Plaquettes"}, nil
}

type fakeOrders struct {
	created []id.ID
}

func (f *fakeOrders) CreatePortal(_ context.Context, clientID id.ID, _ []order.LigneInput) (*order.Commande, error) {
	f.created = append(f.created, clientID)
	return &order.Commande{Base: entity.NewBase(), ClientID: clientID, Statut: order.StatutBrouillon, Source: order.SourcePortail}, nil
}

func (f *fakeOrders) ForClient(_ context.Context, clientID id.ID, page entity.Page) (entity.List[order.Commande], error) {
	return entity.NewList([]order.Commande{{ClientID: clientID}}, 1, page.Normalize()), nil
}

func (f *fakeOrders) Track(_ context.Context, numero string) (*order.Tracking, error) {
	return &order.Tracking{Numero: numero}, nil
}

type fixture struct {
	svc      *portal.Service
	otps     *memOTP
	sessions *memSessions
	clients  *fakeClients
	catalog  *fakeCatalog
	orders   *fakeOrders
	atlas    *client.Client
}

func newFixture(cfg portal.Config) *fixture {
	f := &fixture{
		otps:     &memOTP{rows: map[string]portal.OTP{}},
		sessions: &memSessions{rows: map[string]portal.Session{}},
		clients:  &fakeClients{byPhone: map[string]*client.Client{}},
		catalog:  &fakeCatalog{},
		orders:   &fakeOrders{},
	}
	f.atlas = &client.Client{Base: entity.NewBase(), RaisonSociale: "Garage Atlas", Telephone: "0612345678", IsActive: true}
	f.clients.byPhone[f.atlas.Telephone] = f.atlas
	f.clients.byPhone["0699999999"] = &client.Client{Base: entity.NewBase(), Telephone: "0699999999", IsProspect: true}
	f.svc = portal.NewService(f.clients, f.catalog, f.orders, f.otps, f.sessions, cfg)
	return f
}

func tenantCtx(tenantID string) context.Context {
	return tenant.WithTenant(context.Background(), &tenant.Tenant{ID: tenantID})
}

func devConfig() portal.Config {
	cfg := portal.DefaultConfig()
	cfg.ExposeCode = true
	return cfg
}

func TestOTPLogin(t *testing.T) {
	f := newFixture(devConfig())
	ctx := tenantCtx("t1")

	req, err := f.svc.RequestOTP(ctx, "06 12 34 56 78")
	require.NoError(t, err)
	assert.Len(t, req.Code, 6)
	assert.Equal(t, 300, req.ExpiresIn)

	_, _, err = f.svc.VerifyOTP(ctx, "0612345678", "000000x")
	assert.True(t, apperror.HasCode(err, "INVALID_OTP"))
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))

	sess, c, err := f.svc.VerifyOTP(ctx, "0612345678", req.Code)
	require.NoError(t, err)
	assert.Equal(t, f.atlas.ID, c.ID)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "t1", sess.TenantID)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), sess.ExpiresAt, time.Minute)

	_, _, err = f.svc.VerifyOTP(ctx, "0612345678", req.Code)
	assert.True(t, apperror.HasCode(err, "INVALID_OTP"), "codes are single use")

	got, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, f.atlas.ID, got.ClientID)

	_, err = f.svc.Authenticate(tenantCtx("t2"), sess.Token)
	assert.True(t, apperror.HasCode(err, "INVALID_SESSION"))

	require.NoError(t, f.svc.Logout(ctx, got))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.Equal(t, 401, apperror.GetHTTPStatus(err))
}

func TestRequestOTP_Rejections(t *testing.T) {
	f := newFixture(portal.DefaultConfig())
	ctx := tenantCtx("t1")

	_, err := f.svc.RequestOTP(ctx, "12345")
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))

	_, err = f.svc.RequestOTP(ctx, "0600000000")
	assert.Equal(t, 404, apperror.GetHTTPStatus(err))

	_, err = f.svc.RequestOTP(ctx, "0699999999")
	assert.Equal(t, 404, apperror.GetHTTPStatus(err), "inactive prospects cannot log in")

	req, err := f.svc.RequestOTP(ctx, "0612345678")
	require.NoError(t, err)
	assert.Empty(t, req.Code, "code is only exposed in development")
}

func TestVerifyOTP_BurnsAfterMaxAttempts(t *testing.T) {
	f := newFixture(devConfig())
	ctx := tenantCtx("t1")
	req, err := f.svc.RequestOTP(ctx, "0612345678")
	require.NoError(t, err)

	wrong := "999999"
	if req.Code == wrong {
		wrong = "888888"
	}
	for range 5 {
		_, _, err = f.svc.VerifyOTP(ctx, "0612345678", wrong)
		require.True(t, apperror.HasCode(err, "INVALID_OTP"))
	}
	_, _, err = f.svc.VerifyOTP(ctx, "0612345678", req.Code)
	assert.True(t, apperror.HasCode(err, "INVALID_OTP"))
	assert.Empty(t, f.otps.rows)
}

func TestCheckout(t *testing.T) {
	f := newFixture(devConfig())
	sess := &portal.Session{Token: "tok", ClientID: f.atlas.ID}
	ctx := tenantCtx("t1")

	c, err := f.svc.Checkout(ctx, sess, f.atlas.ID, []order.LigneInput{{ArticleID: id.New(), Quantite: 1}})
	require.NoError(t, err)
	assert.Equal(t, order.SourcePortail, c.Source)

	_, err = f.svc.Checkout(ctx, sess, id.New(), nil)
	assert.Equal(t, 403, apperror.GetHTTPStatus(err))
	assert.Len(t, f.orders.created, 1)

	list, err := f.svc.MyOrders(ctx, sess, entity.Page{})
	require.NoError(t, err)
	assert.Equal(t, f.atlas.ID, list.Items[0].ClientID)
}

func TestRegister(t *testing.T) {
	f := newFixture(devConfig())
	ctx := tenantCtx("t1")
	commercial := id.New()

	c, err := f.svc.Register(ctx, client.Input{Nom: "Idrissi", Telephone: "0611111111", CommercialID: &commercial})
	require.NoError(t, err)
	assert.True(t, c.IsProspect)
	assert.False(t, c.IsActive)
	assert.Nil(t, c.CommercialID)

	_, err = f.svc.Register(ctx, client.Input{Nom: "Idrissi", Telephone: "0611111111"})
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))
}

func TestCatalog_ActiveOnly(t *testing.T) {
	f := newFixture(devConfig())
	active := catalog.Article{Base: entity.NewBase(), SKU: "A", IsActive: true}
	hidden := catalog.Article{Base: entity.NewBase(), SKU: "B"}
	f.catalog.articles = []catalog.Article{active, hidden}
	ctx := tenantCtx("t1")

	_, err := f.svc.Articles(ctx, catalog.Filter{Search: "plaq", SousSeuil: true})
	require.NoError(t, err)
	assert.True(t, f.catalog.lastList.ActiveOnly)
	assert.False(t, f.catalog.lastList.SousSeuil)

	a, err := f.svc.Article(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", a.SKU)

	_, err = f.svc.Article(ctx, hidden.ID)
	assert.Equal(t, 404, apperror.GetHTTPStatus(err))
}

func TestVerifyOTP_BurnFailureIsReported(t *testing.T) {
	f := newFixture(devConfig())
	ctx := tenantCtx("t1")
	req, err := f.svc.RequestOTP(ctx, "0612345678")
	require.NoError(t, err)

	wrong := "999999"
	if req.Code == wrong {
		wrong = "888888"
	}
	for range 4 {
		_, _, err = f.svc.VerifyOTP(ctx, "0612345678", wrong)
		require.True(t, apperror.HasCode(err, "INVALID_OTP"))
	}

	f.otps.deleteErr = errors.New("redis: connection refused")
	_, _, err = f.svc.VerifyOTP(ctx, "0612345678", wrong)
	require.Error(t, err)
	assert.False(t, apperror.HasCode(err, "INVALID_OTP"))
	assert.ErrorIs(t, err, f.otps.deleteErr)

	_, _, err = f.svc.VerifyOTP(ctx, "0612345678", req.Code)
	assert.Error(t, err, "an exhausted code never opens a session")
	assert.Empty(t, f.sessions.rows)
}

func TestRequestOTP_CodeOnlyAtDebugLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(tenantCtx("t1"), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	f := newFixture(portal.DefaultConfig())

	_, err := f.svc.RequestOTP(ctx, "0612345678")
	require.NoError(t, err)

	for _, e := range logs.All() {
		_, hasCode := e.ContextMap()["code"]
		if e.Level > zapcore.DebugLevel {
			assert.False(t, hasCode, "%q must not carry the code", e.Message)
		}
	}
	debug := logs.FilterMessage("portal otp code").All()
	require.Len(t, debug, 1)
	assert.Equal(t, zapcore.DebugLevel, debug[0].Level)
	assert.Len(t, debug[0].ContextMap()["code"], 6)
}
