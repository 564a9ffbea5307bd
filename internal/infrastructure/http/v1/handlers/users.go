package handlers

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"

	"autoerp/internal/infrastructure/http/v1/dto"
)

// UserHandler serves /api/users and the agences under it.
type UserHandler struct {
	*BaseHandler
	service IdentityService
}

func NewUserHandler(base *BaseHandler, service IdentityService) *UserHandler {
	return &UserHandler{BaseHandler: base, service: service}
}

// List handles GET /users
func (h *UserHandler) List(c *gin.Context) {
	var q dto.UserListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListUsers(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Get handles GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := h.ParamID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, user)
}

// Create handles POST /users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.UserRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.service.CreateUser(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, user)
}

// Update handles PUT /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := h.ParamID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, dto.BindError(err))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req dto.UpdateUserRequest
	if !h.BindJSON(c, &req) {
		return
	}
	req.ClearAgence = explicitNull(body, "agence_id")

	user, err := h.service.UpdateUser(c.Request.Context(), userID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, user)
}

// Delete handles DELETE /users/:id; users are deactivated, never removed.
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.service.DeactivateUser(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "user deactivated")
}

// ListAgences handles GET /users/agences/list
func (h *UserHandler) ListAgences(c *gin.Context) {
	var q dto.AgenceListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	agences, err := h.service.ListAgences(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, agences)
}

// GetAgence handles GET /users/agences/:id
func (h *UserHandler) GetAgence(c *gin.Context) {
	agenceID, ok := h.ParamID(c)
	if !ok {
		return
	}
	a, err := h.service.GetAgence(c.Request.Context(), agenceID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// CreateAgence handles POST /users/agences
func (h *UserHandler) CreateAgence(c *gin.Context) {
	var req dto.AgenceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.CreateAgence(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// UpdateAgence handles PUT /users/agences/:id
func (h *UserHandler) UpdateAgence(c *gin.Context) {
	agenceID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.AgenceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.UpdateAgence(c.Request.Context(), agenceID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// explicitNull reports whether the JSON object body sets field to null.
func explicitNull(body []byte, field string) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return false
	}
	v, ok := raw[field]
	return ok && bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
