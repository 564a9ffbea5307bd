package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/tenant"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// TenantStats reports the open tenant pools.
type TenantStats interface {
	Stats() tenant.Stats
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks  map[string]Check
	tenants TenantStats
	version string
}

func NewHealthHandler(version string, tenants TenantStats, checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, tenants: tenants, version: version}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

// Ready handles GET /ready: every dependency must answer within two seconds.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = "unhealthy: " + err.Error()
			continue
		}
		results[name] = "healthy"
	}

	body := gin.H{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "error"
	}
	if h.tenants != nil {
		body["tenants"] = h.tenants.Stats()
	}
	c.JSON(status, body)
}
