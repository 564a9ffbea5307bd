package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/apperror"
	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/client"
	"autoerp/internal/domain/order"
	"autoerp/internal/domain/portal"
	"autoerp/internal/infrastructure/http/v1/dto"
	"autoerp/internal/infrastructure/http/v1/middleware"
)

type PortalService interface {
	RequestOTP(ctx context.Context, telephone string) (*portal.OTPRequest, error)
	VerifyOTP(ctx context.Context, telephone, code string) (*portal.Session, *client.Client, error)
	Logout(ctx context.Context, sess *portal.Session) error
	Register(ctx context.Context, in client.Input) (*client.Client, error)
	Checkout(ctx context.Context, sess *portal.Session, clientID id.ID, items []order.LigneInput) (*order.Commande, error)
	MyOrders(ctx context.Context, sess *portal.Session, page entity.Page) (entity.List[order.Commande], error)
	Track(ctx context.Context, numero string) (*order.Tracking, error)
	Articles(ctx context.Context, f catalog.Filter) (entity.List[catalog.Article], error)
	Article(ctx context.Context, articleID id.ID) (*catalog.Article, error)
	Familles(ctx context.Context) ([]string, error)
	SousFamilles(ctx context.Context, famille string) ([]string, error)
}

// PortalHandler serves the public /api/portal surface.
type PortalHandler struct {
	*BaseHandler
	service      PortalService
	secureCookie bool
}

func NewPortalHandler(base *BaseHandler, service PortalService, secureCookie bool) *PortalHandler {
	return &PortalHandler{BaseHandler: base, service: service, secureCookie: secureCookie}
}

// Familles handles GET /portal/catalog/familles
func (h *PortalHandler) Familles(c *gin.Context) {
	res, err := h.service.Familles(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// SousFamilles handles GET /portal/catalog/sous-familles?famille=
func (h *PortalHandler) SousFamilles(c *gin.Context) {
	var q dto.SousFamilleQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.SousFamilles(c.Request.Context(), q.Famille)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Articles handles GET /portal/catalog/articles
func (h *PortalHandler) Articles(c *gin.Context) {
	var q dto.PortalArticleQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.Articles(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Article handles GET /portal/catalog/articles/:id
func (h *PortalHandler) Article(c *gin.Context) {
	articleID, ok := h.ParamID(c)
	if !ok {
		return
	}
	a, err := h.service.Article(c.Request.Context(), articleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// RequestOTP handles POST /portal/otp/request
func (h *PortalHandler) RequestOTP(c *gin.Context) {
	var req dto.OTPRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.service.RequestOTP(c.Request.Context(), req.Telephone)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// VerifyOTP handles POST /portal/otp/verify and opens the session.
func (h *PortalHandler) VerifyOTP(c *gin.Context) {
	var req dto.OTPVerifyRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sess, cl, err := h.service.VerifyOTP(c.Request.Context(), req.Telephone, req.Code)
	if err != nil {
		h.Error(c, err)
		return
	}

	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.PortalCookie, sess.Token, maxAge, "/api/portal", "", h.secureCookie, true)
	h.OK(c, dto.SessionResponse{
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt.Format(time.RFC3339),
		Client:       cl,
	})
}

// Register handles POST /portal/register
func (h *PortalHandler) Register(c *gin.Context) {
	var req dto.PortalRegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cl, err := h.service.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cl)
}

// Tracking handles GET /portal/tracking/:numero
func (h *PortalHandler) Tracking(c *gin.Context) {
	numero := c.Param("numero")
	if numero == "" {
		h.Error(c, apperror.NewValidation("numero is required"))
		return
	}
	t, err := h.service.Track(c.Request.Context(), numero)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// Checkout handles POST /portal/checkout (session required).
func (h *PortalHandler) Checkout(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	var req dto.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := h.service.Checkout(c.Request.Context(), sess, req.ClientID, req.ToItems())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cmd)
}

// MyOrders handles GET /portal/clients/me/commandes (session required).
func (h *PortalHandler) MyOrders(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	var q dto.PageQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.MyOrders(c.Request.Context(), sess, q.ToPage())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Logout handles POST /portal/logout (session required).
func (h *PortalHandler) Logout(c *gin.Context) {
	sess := h.session(c)
	if sess == nil {
		return
	}
	if err := h.service.Logout(c.Request.Context(), sess); err != nil {
		h.Error(c, err)
		return
	}
	c.SetCookie(middleware.PortalCookie, "", -1, "/api/portal", "", h.secureCookie, true)
	h.Message(c, "logged out")
}

func (h *PortalHandler) session(c *gin.Context) *portal.Session {
	sess := middleware.GetPortalSession(c)
	if sess == nil {
		h.Error(c, apperror.NewUnauthorized("portal session required").WithCode("SESSION_REQUIRED"))
	}
	return sess
}
