package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// PlanService is the plan use-case surface the handler depends on
type PlanService interface {
	Create(ctx context.Context, req budgetapp.CreatePlanRequest) (*budgetapp.PlanResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*budgetapp.PlanResponse, error)
	List(ctx context.Context, req budgetapp.ListRequest) (shared.Paginated[budgetapp.PlanResponse], error)
	AddActivity(ctx context.Context, planID uuid.UUID, req budgetapp.ActivityRequest) (*budgetapp.PlanResponse, error)
	UpdateActivity(ctx context.Context, planID, activityID uuid.UUID, req budgetapp.ActivityRequest) (*budgetapp.PlanResponse, error)
	RemoveActivity(ctx context.Context, planID, activityID uuid.UUID) (*budgetapp.PlanResponse, error)
	Submit(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error)
	Approve(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error)
	Reject(ctx context.Context, planID, actor uuid.UUID, req budgetapp.RejectRequest) (*budgetapp.PlanResponse, error)
	Delete(ctx context.Context, planID, actor uuid.UUID) error
}

// PlanHandler handles plan endpoints
type PlanHandler struct {
	BaseHandler
	service PlanService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(service PlanService) *PlanHandler {
	return &PlanHandler{service: service}
}

// Create handles POST /plans
func (h *PlanHandler) Create(c *gin.Context) {
	var req budgetapp.CreatePlanRequest
	if !h.bindJSON(c, &req) {
		return
	}

	plan, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}

// List handles GET /plans
func (h *PlanHandler) List(c *gin.Context) {
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

// Get handles GET /plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	planID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	plan, err := h.service.GetByID(c.Request.Context(), planID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Delete handles DELETE /plans/:id
func (h *PlanHandler) Delete(c *gin.Context) {
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

	if err := h.service.Delete(c.Request.Context(), planID, actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// AddActivity handles POST /plans/:id/activities
func (h *PlanHandler) AddActivity(c *gin.Context) {
	planID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req budgetapp.ActivityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	plan, err := h.service.AddActivity(c.Request.Context(), planID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, plan)
}

// UpdateActivity handles PUT /plans/:id/activities/:activityId
func (h *PlanHandler) UpdateActivity(c *gin.Context) {
	planID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	activityID, err := pathID(c, "activityId")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var req budgetapp.ActivityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	plan, err := h.service.UpdateActivity(c.Request.Context(), planID, activityID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// RemoveActivity handles DELETE /plans/:id/activities/:activityId
func (h *PlanHandler) RemoveActivity(c *gin.Context) {
	planID, err := pathID(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	activityID, err := pathID(c, "activityId")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	plan, err := h.service.RemoveActivity(c.Request.Context(), planID, activityID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}

// Submit handles POST /plans/:id/submit
func (h *PlanHandler) Submit(c *gin.Context) {
	h.transition(c, h.service.Submit)
}

// Approve handles POST /plans/:id/approve
func (h *PlanHandler) Approve(c *gin.Context) {
	h.transition(c, h.service.Approve)
}

// Reject handles POST /plans/:id/reject.
// The body is optional; an empty body rejects without a comment.
func (h *PlanHandler) Reject(c *gin.Context) {
	var req budgetapp.RejectRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error) {
		return h.service.Reject(ctx, planID, actor, req)
	})
}

func (h *PlanHandler) transition(c *gin.Context, fn func(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error)) {
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

	plan, err := fn(c.Request.Context(), planID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, plan)
}
