package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/security"
	"autoerp/pkg/logger"
)

func testRouter() http.Handler {
	return NewRouter(RouterConfig{
		Logger:       logger.NewNop(),
		Policy:       security.DefaultPolicy(),
		Version:      "test",
		CORSOrigins:  []string{"*"},
		RateLimit:    Limit{Requests: 100, Window: time.Minute},
		OTPRateLimit: Limit{Requests: 5, Window: time.Minute},
	})
}

func TestNewRouter_Routes(t *testing.T) {
	r := NewRouter(RouterConfig{Logger: logger.NewNop(), Policy: security.DefaultPolicy()})

	registered := make(map[string]bool)
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"POST /api/auth/login",
		"POST /api/auth/register",
		"GET /api/users",
		"POST /api/users/agences",
		"POST /api/clients/:id/convert-to-client",
		"GET /api/articles/:id/mouvements",
		"GET /api/stock/where",
		"POST /api/stock/transferts",
		"POST /api/stock/bcg/:id/retour",
		"PUT /api/commandes/:id/valider",
		"PUT /api/commandes/:id/livrer",
		"PUT /api/commandes/:id/facturer",
		"PUT /api/commandes/:id/annuler",
		"POST /api/factures/:id/paiements",
		"GET /api/rhep/employees/me",
		"PUT /api/rhep/leaves/:id/approve",
		"POST /api/rhep/commissions/calc",
		"POST /api/portal/otp/request",
		"POST /api/portal/checkout",
		"GET /api/portal/tracking/:numero",
		"POST /api/upload/logo",
		"GET /api/upload/logo",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestNewRouter_Health(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNewRouter_TenantRequired(t *testing.T) {
	w := httptest.NewRecorder()
	testRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/commandes", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "TENANT_REQUIRED", body.Code)
}
