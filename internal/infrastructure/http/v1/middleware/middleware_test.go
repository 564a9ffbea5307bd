package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/id"
	"autoerp/internal/core/security"
	"autoerp/internal/domain/portal"
	"autoerp/internal/infrastructure/storage/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Details map[string]any `json:"details"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(mw...)
	return r
}

func withUser(user *appctx.UserContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandler(t *testing.T) {
	r := newEngine()
	r.GET("/stock", func(c *gin.Context) {
		_ = c.Error(apperror.NewInsufficientStock("a1", "ag1", 5, 2))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("connection reset"))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/stock", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeInsufficientStock, body.Code)
	assert.NotEmpty(t, body.Error)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body = decodeError(t, w)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestRecovery(t *testing.T) {
	r := newEngine(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, decodeError(t, w).Code)
}

type fakeValidator struct {
	user *appctx.UserContext
}

func (v fakeValidator) ValidateToken(token string) (*appctx.UserContext, error) {
	if token != "good" {
		return nil, errors.New("bad signature")
	}
	return v.user, nil
}

func TestAuth(t *testing.T) {
	user := &appctx.UserContext{UserID: id.New().String(), TenantID: "t1", Role: string(security.RoleTC)}
	r := newEngine(Auth(fakeValidator{user: user}))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, appctx.GetUserID(c.Request.Context()))
	})

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, apperror.CodeUnauthorized},
		{"not bearer", "Basic Zm9v", http.StatusUnauthorized, apperror.CodeUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.UserID, w.Body.String())
}

func TestRequireCapability(t *testing.T) {
	policy := security.DefaultPolicy()

	tests := []struct {
		name   string
		user   *appctx.UserContext
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"employe cannot validate", &appctx.UserContext{Role: string(security.RoleEmploye)}, http.StatusForbidden},
		{"tc validates", &appctx.UserContext{Role: string(security.RoleTC), AgenceID: "a1"}, http.StatusOK},
		{"admin holds everything", &appctx.UserContext{Role: string(security.RoleAdmin)}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine()
			handlers := []gin.HandlerFunc{}
			if tt.user != nil {
				handlers = append(handlers, withUser(tt.user))
			}
			handlers = append(handlers, RequireCapability(policy, security.CapCommandesValidate),
				func(c *gin.Context) { c.Status(http.StatusOK) })
			r.PUT("/commandes/:id/valider", handlers...)

			w := serve(r, httptest.NewRequest(http.MethodPut, "/commandes/x/valider", nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				assert.Equal(t, string(security.CapCommandesValidate), decodeError(t, w).Details["required_capability"])
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newEngine(withUser(&appctx.UserContext{Role: string(security.RoleManagerAgence)}))
	r.POST("/register", RequireRole(security.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := serve(r, httptest.NewRequest(http.MethodPost, "/register", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(2, time.Minute))
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, apperror.CodeRateLimited, body.Code)
	assert.EqualValues(t, 60, body.Details["retry_after_seconds"])

	// Another client keeps its own budget.
	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	r := newEngine(RateLimit(0, time.Minute))
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/ping", nil)).Code)
	}
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://erp.example.ma"}))
	r.GET("/api/articles", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/articles", nil)
	req.Header.Set("Origin", "https://erp.example.ma")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://erp.example.ma", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), TenantHeader)

	req = httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	r := newEngine(CORS([]string{"*"}))
	r.GET("/api/articles", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := serve(r, req)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestTrace(t *testing.T) {
	r := newEngine(Trace())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := serve(r, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

type fakeIdempotency struct {
	replay    *postgres.IdempotencyReplay
	acquired  []string
	completed map[string]int
	failed    map[string]int
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{completed: map[string]int{}, failed: map[string]int{}}
}

func (f *fakeIdempotency) AcquireKey(_ context.Context, key, _, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	f.acquired = append(f.acquired, key+"|"+operation+"|"+requestHash)
	if f.replay != nil {
		return f.replay, nil
	}
	if key == "busy" {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return nil, nil
}

func (f *fakeIdempotency) CompleteKey(_ context.Context, key string, status int, _ string, _ any) error {
	f.completed[key] = status
	return nil
}

func (f *fakeIdempotency) FailKey(_ context.Context, key string, status int, _ string, _ any) error {
	f.failed[key] = status
	return nil
}

func TestIdempotency(t *testing.T) {
	store := newFakeIdempotency()
	r := newEngine(Idempotency(store))
	r.POST("/commandes", func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		if strings.Contains(string(body), "fail") {
			_ = c.Error(apperror.NewValidation("lignes required"))
			return
		}
		key := c.GetString(KeyIdempotencyKey)
		if s, ok := c.Get(KeyIdempotencyStore); ok {
			_ = s.(IdempotencyFinisher).CompleteKey(c.Request.Context(), key, http.StatusCreated, "application/json", nil)
		}
		c.String(http.StatusCreated, string(body))
	})

	t.Run("without header", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodPost, "/commandes", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Empty(t, store.acquired)
	})

	t.Run("body survives hashing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/commandes", strings.NewReader(`{"a":1}`))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		w := serve(r, req)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, `{"a":1}`, w.Body.String())
		assert.Equal(t, http.StatusCreated, store.completed["k1"])
		require.Len(t, store.acquired, 1)
		assert.Contains(t, store.acquired[0], "POST /commandes")
	})

	t.Run("failure releases the key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/commandes", strings.NewReader(`fail`))
		req.Header.Set(HeaderIdempotencyKey, "k2")
		w := serve(r, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, http.StatusBadRequest, store.failed["k2"])
	})

	t.Run("in flight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/commandes", strings.NewReader(`{}`))
		req.Header.Set(HeaderIdempotencyKey, "busy")
		w := serve(r, req)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, apperror.CodeIdempotency, decodeError(t, w).Code)
	})

	t.Run("replay", func(t *testing.T) {
		store.replay = &postgres.IdempotencyReplay{StatusCode: http.StatusCreated, ContentType: "application/json", Body: []byte(`{"id":"x"}`)}
		defer func() { store.replay = nil }()

		req := httptest.NewRequest(http.MethodPost, "/commandes", strings.NewReader(`{"a":1}`))
		req.Header.Set(HeaderIdempotencyKey, "k1")
		w := serve(r, req)
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))
		assert.JSONEq(t, `{"id":"x"}`, w.Body.String())
	})
}

type fakePortalAuth struct {
	sessions map[string]*portal.Session
}

func (f fakePortalAuth) Authenticate(_ context.Context, token string) (*portal.Session, error) {
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, apperror.NewUnauthorized("portal session required")
}

func TestPortalSession(t *testing.T) {
	clientID := id.New()
	auth := fakePortalAuth{sessions: map[string]*portal.Session{
		"tok": {Token: "tok", ClientID: clientID, Telephone: "0612345678"},
	}}
	r := newEngine(PortalSession(auth))
	r.GET("/portal/me", func(c *gin.Context) {
		pc := appctx.GetPortalClient(c.Request.Context())
		require.NotNil(t, pc)
		require.NotNil(t, GetPortalSession(c))
		c.String(http.StatusOK, pc.ClientID)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/portal/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/portal/me", nil)
	req.AddCookie(&http.Cookie{Name: PortalCookie, Value: "tok"})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, clientID.String(), w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/portal/me", nil)
	req.Header.Set(HeaderPortalSession, "tok")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)
}

func TestSecureHeaders(t *testing.T) {
	r := newEngine(SecureHeaders(true))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
