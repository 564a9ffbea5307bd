// Package handlers holds the gin handlers of the API. Handlers bind and
// validate the request, call one service method and render the result;
// errors go through c.Error to middleware.ErrorHandler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/id"
	"autoerp/internal/infrastructure/http/v1/dto"
	"autoerp/internal/infrastructure/http/v1/middleware"
	"autoerp/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates the JSON body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, dto.BindError(err))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, dto.BindError(err))
		return false
	}
	return true
}

// ParamID parses the :id path parameter.
func (h *BaseHandler) ParamID(c *gin.Context) (id.ID, bool) {
	return h.ParamUUID(c, "id")
}

func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id").WithDetail("param", name).WithDetail("value", c.Param(name)))
		return id.ID{}, false
	}
	return v, true
}

// Error registers err on the gin context and aborts. The response itself is
// written by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// CompleteIdempotency stores the response under the request's idempotency
// key so that a retry replays it.
func (h *BaseHandler) CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	key := c.GetString(middleware.KeyIdempotencyKey)
	if key == "" {
		return
	}
	store, ok := c.Get(middleware.KeyIdempotencyStore)
	if !ok {
		return
	}
	if s, ok := store.(middleware.IdempotencyFinisher); ok {
		if err := s.CompleteKey(c.Request.Context(), key, statusCode, contentType, response); err != nil {
			logger.Warn(c.Request.Context(), "idempotency completion not recorded", "key", key, "error", err)
		}
	}
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusCreated, "application/json", data)
	c.JSON(http.StatusCreated, data)
}

func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.CompleteIdempotency(c, http.StatusOK, "application/json", data)
	c.JSON(http.StatusOK, data)
}

// NoContent replays as a 204 with an empty body.
func (h *BaseHandler) NoContent(c *gin.Context) {
	h.CompleteIdempotency(c, http.StatusNoContent, "", nil)
	c.Status(http.StatusNoContent)
}

func (h *BaseHandler) Message(c *gin.Context, message string) {
	h.OK(c, dto.MessageResponse{Message: message})
}
