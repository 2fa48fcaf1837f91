package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	"github.com/healthbudget/backend/internal/domain/budget"
)

// TemplateService is the execution template surface the handler depends on
type TemplateService interface {
	Get(ctx context.Context, programID uuid.UUID) (*budgetapp.TemplateResponse, error)
	Put(ctx context.Context, programID uuid.UUID, nodes []budget.TemplateNode) (*budgetapp.TemplateResponse, error)
}

// TemplateHandler handles per-program execution template endpoints
type TemplateHandler struct {
	BaseHandler
	service TemplateService
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(service TemplateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// Get handles GET /programs/:id/execution-template.
// Programs without a stored template get the default ledger.
func (h *TemplateHandler) Get(c *gin.Context) {
	programID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tpl, err := h.service.Get(c.Request.Context(), programID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tpl)
}

// Put handles PUT /programs/:id/execution-template
func (h *TemplateHandler) Put(c *gin.Context) {
	programID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req budgetapp.PutTemplateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	tpl, err := h.service.Put(c.Request.Context(), programID, req.ToNodes())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tpl)
}
