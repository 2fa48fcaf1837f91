package budget

import (
	"context"

	"github.com/google/uuid"
)

// PlanContext is the reference metadata a Plan copies at creation time
type PlanContext struct {
	FacilityID     uuid.UUID
	ProgramID      uuid.UUID
	FiscalYearID   uuid.UUID
	FacilityName   string
	FacilityType   string
	DistrictName   string
	ProvinceName   string
	ProgramName    string
	FiscalYearName string
}

// ReferenceDirectory resolves facility, program and fiscal year ids into display metadata.
// Ids are trusted; an unknown id surfaces as a not-found error.
type ReferenceDirectory interface {
	ResolvePlanContext(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (PlanContext, error)
}
