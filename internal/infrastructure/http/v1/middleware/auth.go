package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/security"
	"autoerp/internal/core/tenant"
)

// JWTValidator validates access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth validates the bearer token and puts the user into the request context.
// A token issued for another tenant than X-Tenant-ID is rejected.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			_ = c.Error(apperror.NewUnauthorized("missing or malformed authorization header"))
			c.Abort()
			return
		}

		user, err := validator.ValidateToken(token)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCode("INVALID_TOKEN"))
			c.Abort()
			return
		}

		resolved := tenant.GetTenantID(c.Request.Context())
		if resolved != "" && user.TenantID != resolved {
			_ = c.Error(apperror.NewForbidden("tenant mismatch").
				WithCode("TENANT_MISMATCH").
				WithDetail("header_tenant_id", resolved).
				WithDetail("token_tenant_id", user.TenantID))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", user.UserID)
		c.Next()
	}
}

// RequireCapability lets the request through when the policy grants
// capability to the user's role. Row-level conditions are checked later by
// the service against the loaded resource.
func RequireCapability(policy *security.Policy, capability security.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		if !policy.Allows(user, capability) {
			_ = c.Error(apperror.NewForbidden("insufficient permissions").
				WithDetail("required_capability", string(capability)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole restricts a route to the given roles.
func RequireRole(roles ...security.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		for _, r := range roles {
			if user.Role == string(r) {
				c.Next()
				return
			}
		}
		_ = c.Error(apperror.NewForbidden("insufficient permissions").WithDetail("required_roles", roles))
		c.Abort()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
