package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/bcg"
	"autoerp/internal/domain/stock"
	"autoerp/internal/infrastructure/http/v1/dto"
)

type StockService interface {
	Transfer(ctx context.Context, in stock.TransferInput) (*stock.TransferResult, error)
	AdjustInventory(ctx context.Context, agenceID id.ID, items []stock.InventoryItem) (*stock.InventoryResult, error)
	Where(ctx context.Context, articleID id.ID) (*stock.Location, error)
	BelowThreshold(ctx context.Context, agenceID *id.ID) ([]stock.StockView, error)
	Movements(ctx context.Context, f stock.MovementFilter) (entity.List[stock.Movement], error)
}

type BCGService interface {
	Create(ctx context.Context, in bcg.CreateInput) (*bcg.BCG, error)
	Retour(ctx context.Context, bcgID id.ID, in bcg.RetourInput) (*bcg.BCG, error)
	List(ctx context.Context, f bcg.Filter) (entity.List[bcg.BCG], error)
	Get(ctx context.Context, bcgID id.ID) (*bcg.BCG, error)
}

// StockHandler serves /api/stock, BCG included.
type StockHandler struct {
	*BaseHandler
	stock StockService
	bcg   BCGService
}

func NewStockHandler(base *BaseHandler, stockService StockService, bcgService BCGService) *StockHandler {
	return &StockHandler{BaseHandler: base, stock: stockService, bcg: bcgService}
}

// Where handles GET /stock/where?article_id=
func (h *StockHandler) Where(c *gin.Context) {
	var q dto.WhereQuery
	if !h.BindQuery(c, &q) {
		return
	}
	articleID, _ := id.Parse(q.ArticleID)
	loc, err := h.stock.Where(c.Request.Context(), articleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// Seuils handles GET /stock/seuils?agence_id=
func (h *StockHandler) Seuils(c *gin.Context) {
	var q dto.SeuilQuery
	if !h.BindQuery(c, &q) {
		return
	}
	rows, err := h.stock.BelowThreshold(c.Request.Context(), q.Agence())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, rows)
}

// Movements handles GET /stock/mouvements
func (h *StockHandler) Movements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.stock.Movements(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// Transfer handles POST /stock/transferts
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.stock.Transfer(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Inventory handles POST /stock/inventaires
func (h *StockHandler) Inventory(c *gin.Context) {
	var req dto.InventoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	res, err := h.stock.AdjustInventory(c.Request.Context(), req.AgenceID, req.ToItems())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// ListBCG handles GET /stock/bcg
func (h *StockHandler) ListBCG(c *gin.Context) {
	var q dto.BCGListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.bcg.List(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// GetBCG handles GET /stock/bcg/:id
func (h *StockHandler) GetBCG(c *gin.Context) {
	bcgID, ok := h.ParamID(c)
	if !ok {
		return
	}
	b, err := h.bcg.Get(c.Request.Context(), bcgID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}

// CreateBCG handles POST /stock/bcg
func (h *StockHandler) CreateBCG(c *gin.Context) {
	var req dto.BCGRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.bcg.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, b)
}

// RetourBCG handles POST /stock/bcg/:id/retour
func (h *StockHandler) RetourBCG(c *gin.Context) {
	bcgID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.RetourRequest
	if !h.BindJSON(c, &req) {
		return
	}
	b, err := h.bcg.Retour(c.Request.Context(), bcgID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, b)
}
