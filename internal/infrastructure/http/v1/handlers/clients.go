package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/client"
	"autoerp/internal/infrastructure/http/v1/dto"
)

type ClientService interface {
	List(ctx context.Context, f client.Filter) (entity.List[client.Client], error)
	Get(ctx context.Context, clientID id.ID) (*client.Client, error)
	Create(ctx context.Context, in client.Input) (*client.Client, error)
	Update(ctx context.Context, clientID id.ID, in client.Input) (*client.Client, error)
	ConvertToClient(ctx context.Context, clientID id.ID) (*client.Client, error)
	Deactivate(ctx context.Context, clientID id.ID) error
}

// ClientHandler serves /api/clients.
type ClientHandler struct {
	*BaseHandler
	service ClientService
}

func NewClientHandler(base *BaseHandler, service ClientService) *ClientHandler {
	return &ClientHandler{BaseHandler: base, service: service}
}

// List handles GET /clients
func (h *ClientHandler) List(c *gin.Context) {
	var q dto.ClientListQuery
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

// Get handles GET /clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	clientID, ok := h.ParamID(c)
	if !ok {
		return
	}
	cl, err := h.service.Get(c.Request.Context(), clientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cl)
}

// Create handles POST /clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req dto.ClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cl, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cl)
}

// Update handles PUT /clients/:id
func (h *ClientHandler) Update(c *gin.Context) {
	clientID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.ClientRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cl, err := h.service.Update(c.Request.Context(), clientID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cl)
}

// Convert handles POST /clients/:id/convert-to-client
func (h *ClientHandler) Convert(c *gin.Context) {
	clientID, ok := h.ParamID(c)
	if !ok {
		return
	}
	cl, err := h.service.ConvertToClient(c.Request.Context(), clientID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cl)
}

// Delete handles DELETE /clients/:id (soft delete).
func (h *ClientHandler) Delete(c *gin.Context) {
	clientID, ok := h.ParamID(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), clientID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "client deactivated")
}
