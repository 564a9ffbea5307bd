package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	"autoerp/pkg/logger"
)

// Keys shared with handlers through the gin context.
const (
	KeyIdempotencyKey   = "idempotency_key"
	KeyIdempotencyStore = "idempotency_store"
)

// IdempotencyFinisher records the outcome of an idempotent request.
type IdempotencyFinisher interface {
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// ErrorHandler renders the last gin error as {error, code, details}.
// Internal causes are logged and never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err).WithDetail("request_id", c.GetString("request_id"))
		} else if appErr.HTTPStatus >= http.StatusInternalServerError {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		} else if appErr.Err != nil {
			logger.Warn(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}

		failIdempotency(c, status, appErr)
		c.JSON(status, appErr)
	}
}

func failIdempotency(c *gin.Context, status int, body any) {
	key := c.GetString(KeyIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(KeyIdempotencyStore)
	if !ok {
		return
	}
	if s, ok := store.(IdempotencyFinisher); ok && s != nil {
		if err := s.FailKey(c.Request.Context(), key, status, "application/json", body); err != nil {
			logger.Warn(c.Request.Context(), "idempotency fail not recorded", "key", key, "error", err)
		}
	}
}
