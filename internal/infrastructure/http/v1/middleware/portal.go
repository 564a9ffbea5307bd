package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	appctx "autoerp/internal/core/context"
	"autoerp/internal/domain/portal"
)

const (
	PortalCookie        = "portal_session"
	HeaderPortalSession = "X-Portal-Session"
	KeyPortalSession    = "portal_session"
)

// PortalAuthenticator resolves portal session tokens.
type PortalAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*portal.Session, error)
}

// PortalSession requires a portal session from the portal_session cookie or
// the X-Portal-Session header.
func PortalSession(auth PortalAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(PortalCookie)
		if err != nil || token == "" {
			token = c.GetHeader(HeaderPortalSession)
		}

		sess, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		ctx := appctx.WithPortalClient(c.Request.Context(), &appctx.PortalClient{
			ClientID:  sess.ClientID.String(),
			Telephone: sess.Telephone,
			SessionID: sess.Token,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(KeyPortalSession, sess)
		c.Next()
	}
}

// GetPortalSession returns the session set by PortalSession.
func GetPortalSession(c *gin.Context) *portal.Session {
	if v, ok := c.Get(KeyPortalSession); ok {
		if s, ok := v.(*portal.Session); ok {
			return s
		}
	}
	return nil
}
