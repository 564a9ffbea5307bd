package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/catalog"
	"autoerp/internal/domain/stock"
	"autoerp/internal/infrastructure/http/v1/dto"
)

type CatalogService interface {
	List(ctx context.Context, f catalog.Filter) (entity.List[catalog.Article], error)
	Get(ctx context.Context, articleID id.ID) (*catalog.Detail, error)
	Create(ctx context.Context, in catalog.Input) (*catalog.Article, error)
	Update(ctx context.Context, articleID id.ID, in catalog.Input) (*catalog.Article, error)
	Delete(ctx context.Context, articleID id.ID) error
	Familles(ctx context.Context) ([]string, error)
	SousFamilles(ctx context.Context, famille string) ([]string, error)
	Movements(ctx context.Context, articleID id.ID, f stock.MovementFilter) (entity.List[stock.Movement], error)
}

// ArticleHandler serves /api/articles.
type ArticleHandler struct {
	*BaseHandler
	service CatalogService
}

func NewArticleHandler(base *BaseHandler, service CatalogService) *ArticleHandler {
	return &ArticleHandler{BaseHandler: base, service: service}
}

// List handles GET /articles
func (h *ArticleHandler) List(c *gin.Context) {
	var q dto.ArticleListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Get handles GET /articles/:id; the detail carries the stock per agence.
func (h *ArticleHandler) Get(c *gin.Context) {
	articleID, ok := h.ParamID(c)
	if !ok {
		return
	}
	d, err := h.service.Get(c.Request.Context(), articleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, d)
}

// Movements handles GET /articles/:id/mouvements
func (h *ArticleHandler) Movements(c *gin.Context) {
	articleID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.Movements(c.Request.Context(), articleID, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Create handles POST /articles
func (h *ArticleHandler) Create(c *gin.Context) {
	var req dto.ArticleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, a)
}

// Update handles PUT /articles/:id
func (h *ArticleHandler) Update(c *gin.Context) {
	articleID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.ArticleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	a, err := h.service.Update(c.Request.Context(), articleID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, a)
}

// Delete handles DELETE /articles/:id; only articles that never moved
// can be deleted and they are deactivated.
func (h *ArticleHandler) Delete(c *gin.Context) {
	articleID, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), articleID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "article deactivated")
}

// Familles handles GET /articles/familles/list
func (h *ArticleHandler) Familles(c *gin.Context) {
	res, err := h.service.Familles(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// SousFamilles handles GET /articles/sous-familles/list?famille=
func (h *ArticleHandler) SousFamilles(c *gin.Context) {
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
