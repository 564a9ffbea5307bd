package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	appctx "autoerp/internal/core/context"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/identity"
	"autoerp/internal/infrastructure/http/v1/dto"
)

// IdentityService is the identity service as seen by the HTTP layer.
type IdentityService interface {
	Login(ctx context.Context, email, password string) (*identity.TokenPair, *identity.User, error)
	Refresh(ctx context.Context, rawToken string) (*identity.TokenPair, error)
	Logout(ctx context.Context, userID id.ID) error
	Me(ctx context.Context) (*identity.User, error)
	Register(ctx context.Context, in identity.CreateUserInput) (*identity.User, error)

	ListUsers(ctx context.Context, f identity.UserFilter) (entity.List[identity.User], error)
	GetUser(ctx context.Context, userID id.ID) (*identity.User, error)
	CreateUser(ctx context.Context, in identity.CreateUserInput) (*identity.User, error)
	UpdateUser(ctx context.Context, userID id.ID, in identity.UpdateUserInput) (*identity.User, error)
	DeactivateUser(ctx context.Context, userID id.ID) error

	ListAgences(ctx context.Context, f identity.AgenceFilter) ([]identity.Agence, error)
	GetAgence(ctx context.Context, agenceID id.ID) (*identity.Agence, error)
	CreateAgence(ctx context.Context, in identity.AgenceInput) (*identity.Agence, error)
	UpdateAgence(ctx context.Context, agenceID id.ID, in identity.AgenceInput) (*identity.Agence, error)
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	*BaseHandler
	service IdentityService
}

func NewAuthHandler(base *BaseHandler, service IdentityService) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, user, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{TokenPair: tokens, User: user})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, tokens)
}

// Logout handles POST /auth/logout; it revokes every refresh token of the user.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("authentication required"))
		return
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "logged out")
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, user)
}

// Register handles POST /auth/register (admin only).
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.UserRequest
	if !h.BindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
