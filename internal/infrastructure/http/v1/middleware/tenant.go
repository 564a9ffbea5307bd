package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/tenant"
	"autoerp/internal/infrastructure/storage/postgres"
	"autoerp/pkg/logger"
)

// TenantHeader carries the tenant id on every /api request.
const TenantHeader = "X-Tenant-ID"

// TenantDB resolves X-Tenant-ID to the tenant's pool and puts the pool,
// a TxManager and the tenant into the request context. Must run before
// anything that touches the database.
func TenantDB(manager *tenant.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			_ = c.Error(apperror.NewValidation("tenant is required").
				WithCode("TENANT_REQUIRED").
				WithDetail("header", TenantHeader))
			c.Abort()
			return
		}
		tenantUUID, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Error(apperror.NewValidation("invalid tenant id").
				WithDetail("header", TenantHeader).
				WithDetail("value", raw))
			c.Abort()
			return
		}
		tenantID := tenantUUID.String()

		mp, err := manager.GetPool(ctx, tenantID)
		if err != nil {
			logger.Warn(ctx, "tenant pool error", "tenant_id", tenantID, "error", err)
			_ = c.Error(tenantError(tenantID, err))
			c.Abort()
			return
		}

		// Counted so that eviction waits for in-flight requests.
		mp.AcquireRef()
		defer mp.ReleaseRef()

		c.Request = c.Request.WithContext(postgres.WithTenantPool(ctx, mp))
		c.Set("tenant_id", tenantID)

		c.Next()
	}
}

func tenantError(tenantID string, err error) error {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		return apperror.NewNotFound("tenant", tenantID)
	case errors.Is(err, tenant.ErrTenantNotActive):
		return apperror.NewForbidden("tenant is not active").
			WithCode("TENANT_INACTIVE").
			WithDetail("tenant_id", tenantID)
	case errors.Is(err, tenant.ErrMaxPoolLimit):
		appErr := apperror.NewInternal(err)
		appErr.HTTPStatus = http.StatusServiceUnavailable
		appErr.Message = "service temporarily unavailable"
		return appErr.WithDetail("tenant_id", tenantID)
	default:
		return apperror.NewInternal(err).WithDetail("tenant_id", tenantID)
	}
}
