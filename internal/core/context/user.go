// Package context carries request-scoped identity and tracing values.
package context

import (
	"context"
	"slices"
)

// UserContext is the authenticated back-office user of a request.
type UserContext struct {
	UserID       string
	TenantID     string
	Email        string
	Role         string
	AgenceID     string
	Capabilities []string
}

// IsAdmin reports whether the user holds the admin role.
func (u *UserContext) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

// Can reports whether the capability list of the token grants capability.
func (u *UserContext) Can(capability string) bool {
	if u == nil {
		return false
	}
	return u.IsAdmin() || slices.Contains(u.Capabilities, capability)
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// HasRole checks the role of the current user.
func HasRole(ctx context.Context, roles ...string) bool {
	u := GetUser(ctx)
	return u != nil && slices.Contains(roles, u.Role)
}

// PortalClient is the reseller authenticated through the portal OTP flow.
type PortalClient struct {
	ClientID  string
	Telephone string
	SessionID string
}

type portalClientKey struct{}

// WithPortalClient adds the portal session owner to context.
func WithPortalClient(ctx context.Context, pc *PortalClient) context.Context {
	return context.WithValue(ctx, portalClientKey{}, pc)
}

// GetPortalClient returns the portal session owner or nil.
func GetPortalClient(ctx context.Context) *PortalClient {
	if v, ok := ctx.Value(portalClientKey{}).(*PortalClient); ok {
		return v
	}
	return nil
}
