package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"autoerp/internal/core/apperror"
)

type passedKey struct{}

// RateLimit limits requests per client IP within window using httprate.
// The limiter writes the X-RateLimit headers; a rejected request is
// rendered by ErrorHandler as a 429. Extra key funcs narrow the bucket.
func RateLimit(requests int, window time.Duration, keyFuncs ...httprate.KeyFunc) gin.HandlerFunc {
	if requests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	keys := append([]httprate.KeyFunc{httprate.KeyByIP}, keyFuncs...)

	pass := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		if passed, ok := r.Context().Value(passedKey{}).(*bool); ok {
			*passed = true
		}
	})
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(keys...),
		httprate.WithLimitHandler(func(http.ResponseWriter, *http.Request) {}),
	)(pass)

	return func(c *gin.Context) {
		passed := false
		r := c.Request.WithContext(context.WithValue(c.Request.Context(), passedKey{}, &passed))
		limiter.ServeHTTP(c.Writer, r)
		if !passed {
			_ = c.Error(apperror.NewRateLimited("too many requests, try again later").
				WithDetail("retry_after_seconds", int(window.Seconds())))
			c.Abort()
			return
		}
		c.Next()
	}
}
