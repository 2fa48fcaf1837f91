package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// ExecutionService is the execution use-case surface the handler depends on
type ExecutionService interface {
	CreateFromPlan(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error)
	GetTree(ctx context.Context, id uuid.UUID) (*budgetapp.ExecutionResponse, error)
	GetBalance(ctx context.Context, id uuid.UUID) (*budgetapp.BalanceResponse, error)
	List(ctx context.Context, req budgetapp.ListRequest) (shared.Paginated[budgetapp.ExecutionResponse], error)
	UpdateLeaf(ctx context.Context, executionID, itemID uuid.UUID, req budgetapp.UpdateLeafRequest) (*budgetapp.LeafUpdateResponse, error)
	Submit(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error)
	Approve(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error)
	Reject(ctx context.Context, executionID, actor uuid.UUID, req budgetapp.RejectRequest) (*budgetapp.ExecutionResponse, error)
}

// ExecutionHandler handles execution ledger endpoints
type ExecutionHandler struct {
	BaseHandler
	service ExecutionService
}

// NewExecutionHandler creates a new ExecutionHandler
func NewExecutionHandler(service ExecutionService) *ExecutionHandler {
	return &ExecutionHandler{service: service}
}

// CreateFromPlan handles POST /plans/:id/execution
func (h *ExecutionHandler) CreateFromPlan(c *gin.Context) {
	planID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	execution, err := h.service.CreateFromPlan(c.Request.Context(), planID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, execution)
}

// List handles GET /executions
func (h *ExecutionHandler) List(c *gin.Context) {
	var req budgetapp.ListRequest
	if !h.bindQuery(c, &req) {
		return
	}

	result, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page(c, result)
}

// GetTree handles GET /executions/:id
func (h *ExecutionHandler) GetTree(c *gin.Context) {
	executionID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	execution, err := h.service.GetTree(c.Request.Context(), executionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, execution)
}

// GetBalance handles GET /executions/:id/balance
func (h *ExecutionHandler) GetBalance(c *gin.Context) {
	executionID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	balance, err := h.service.GetBalance(c.Request.Context(), executionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// UpdateLeaf handles PUT /executions/:id/items/:itemId
func (h *ExecutionHandler) UpdateLeaf(c *gin.Context) {
	executionID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	itemID, err := pathID(c, "itemId")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req budgetapp.UpdateLeafRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.UpdateLeaf(c.Request.Context(), executionID, itemID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Submit handles POST /executions/:id/submit
func (h *ExecutionHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /executions/:id/approve
func (h *ExecutionHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Reject handles POST /executions/:id/reject
func (h *ExecutionHandler) Reject(c *gin.Context) {
	var req budgetapp.RejectRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error) {
		return h.service.Reject(ctx, executionID, actor, req)
	})
}

func (h *ExecutionHandler) transition(c *gin.Context, fn func(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error)) {
	executionID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	actor, err := actorID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	execution, err := fn(c.Request.Context(), executionID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, execution)
}
