package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/reference"
)

// ReferenceService is the read-only directory surface the handler depends on
type ReferenceService interface {
	ListFacilities(ctx context.Context, districtID *uuid.UUID) ([]reference.Facility, error)
	ListPrograms(ctx context.Context) ([]reference.Program, error)
	ListFiscalYears(ctx context.Context) ([]reference.FiscalYear, error)
}

// ReferenceHandler serves facilities, programs and fiscal years
type ReferenceHandler struct {
	BaseHandler
	service ReferenceService
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(service ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: service}
}

type facilityQuery struct {
	DistrictID string `form:"district_id" binding:"omitempty,uuid"`
}

// ListFacilities handles GET /reference/facilities?district_id=
func (h *ReferenceHandler) ListFacilities(c *gin.Context) {
	var q facilityQuery
	if !h.bindQuery(c, &q) {
		return
	}
	var districtID *uuid.UUID
	if q.DistrictID != "" {
		id := uuid.MustParse(q.DistrictID)
		districtID = &id
	}

	facilities, err := h.service.ListFacilities(c.Request.Context(), districtID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nonNil(facilities))
}

// ListPrograms handles GET /reference/programs
func (h *ReferenceHandler) ListPrograms(c *gin.Context) {
	programs, err := h.service.ListPrograms(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nonNil(programs))
}

// ListFiscalYears handles GET /reference/fiscal-years
func (h *ReferenceHandler) ListFiscalYears(c *gin.Context) {
	years, err := h.service.ListFiscalYears(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, nonNil(years))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
