package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"autoerp/internal/core/entity"
	"autoerp/internal/core/id"
	"autoerp/internal/domain/order"
	"autoerp/internal/infrastructure/http/v1/dto"
)

type OrderService interface {
	Create(ctx context.Context, in order.CreateInput) (*order.Commande, error)
	Valider(ctx context.Context, commandeID id.ID) (*order.Commande, error)
	Livrer(ctx context.Context, commandeID id.ID, in order.LivrerInput) (*order.Commande, error)
	Facturer(ctx context.Context, commandeID id.ID) (*order.Commande, error)
	Annuler(ctx context.Context, commandeID id.ID, motif string) (*order.Commande, error)
	List(ctx context.Context, f order.Filter) (entity.List[order.Commande], error)
	Get(ctx context.Context, commandeID id.ID) (*order.Commande, error)

	Declarer(ctx context.Context, factureID id.ID) (*order.Facture, error)
	MarquerImpayee(ctx context.Context, factureID id.ID) (*order.Facture, error)
	EnregistrerPaiement(ctx context.Context, factureID id.ID, in order.PaiementInput) (*order.Facture, error)
	ListFactures(ctx context.Context, f order.FactureFilter) (entity.List[order.Facture], error)
	GetFacture(ctx context.Context, factureID id.ID) (*order.FactureDetail, error)
}

// CommandeHandler serves /api/commandes and /api/factures.
type CommandeHandler struct {
	*BaseHandler
	service OrderService
}

func NewCommandeHandler(base *BaseHandler, service OrderService) *CommandeHandler {
	return &CommandeHandler{BaseHandler: base, service: service}
}

// List handles GET /commandes
func (h *CommandeHandler) List(c *gin.Context) {
	var q dto.CommandeListQuery
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

// Get handles GET /commandes/:id
func (h *CommandeHandler) Get(c *gin.Context) {
	commandeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	cmd, err := h.service.Get(c.Request.Context(), commandeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cmd)
}

// Create handles POST /commandes
func (h *CommandeHandler) Create(c *gin.Context) {
	var req dto.CommandeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := h.service.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, cmd)
}

// Valider handles PUT /commandes/:id/valider
func (h *CommandeHandler) Valider(c *gin.Context) {
	h.transition(c, h.service.Valider)
}

// Facturer handles PUT /commandes/:id/facturer
func (h *CommandeHandler) Facturer(c *gin.Context) {
	h.transition(c, h.service.Facturer)
}

// Livrer handles PUT /commandes/:id/livrer
func (h *CommandeHandler) Livrer(c *gin.Context) {
	commandeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.LivrerRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	cmd, err := h.service.Livrer(c.Request.Context(), commandeID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cmd)
}

// Annuler handles PUT /commandes/:id/annuler
func (h *CommandeHandler) Annuler(c *gin.Context) {
	commandeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.AnnulerRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := h.service.Annuler(c.Request.Context(), commandeID, req.Motif)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cmd)
}

func (h *CommandeHandler) transition(c *gin.Context, fn func(context.Context, id.ID) (*order.Commande, error)) {
	commandeID, ok := h.ParamID(c)
	if !ok {
		return
	}
	cmd, err := fn(c.Request.Context(), commandeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cmd)
}

// ListFactures handles GET /factures
func (h *CommandeHandler) ListFactures(c *gin.Context) {
	var q dto.FactureListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	res, err := h.service.ListFactures(c.Request.Context(), q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// GetFacture handles GET /factures/:id
func (h *CommandeHandler) GetFacture(c *gin.Context) {
	factureID, ok := h.ParamID(c)
	if !ok {
		return
	}
	f, err := h.service.GetFacture(c.Request.Context(), factureID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

// Declarer handles PUT /factures/:id/declarer
func (h *CommandeHandler) Declarer(c *gin.Context) {
	h.factureTransition(c, h.service.Declarer)
}

// MarquerImpayee handles PUT /factures/:id/impayee
func (h *CommandeHandler) MarquerImpayee(c *gin.Context) {
	h.factureTransition(c, h.service.MarquerImpayee)
}

// Paiement handles POST /factures/:id/paiements
func (h *CommandeHandler) Paiement(c *gin.Context) {
	factureID, ok := h.ParamID(c)
	if !ok {
		return
	}
	var req dto.PaiementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	f, err := h.service.EnregistrerPaiement(c.Request.Context(), factureID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, f)
}

func (h *CommandeHandler) factureTransition(c *gin.Context, fn func(context.Context, id.ID) (*order.Facture, error)) {
	factureID, ok := h.ParamID(c)
	if !ok {
		return
	}
	f, err := fn(c.Request.Context(), factureID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}
