package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// ListFilter narrows plan and execution listings
type ListFilter struct {
	shared.Filter
	FacilityID   *uuid.UUID
	ProgramID    *uuid.UUID
	FiscalYearID *uuid.UUID
	Status       *WorkflowStatus
}

// PlanRepository persists Plan aggregates together with their activities
type PlanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	FindAll(ctx context.Context, filter ListFilter) ([]Plan, int64, error)
	ExistsForTuple(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (bool, error)
	// Save inserts a new plan; a duplicate facility/program/fiscal year tuple is a conflict
	Save(ctx context.Context, plan *Plan) error
	// SaveWithLock writes the plan and its activities in one transaction,
	// failing with a concurrency conflict if the stored version moved
	SaveWithLock(ctx context.Context, plan *Plan) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionRepository persists Execution aggregates together with their item tree
type ExecutionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Execution, error)
	FindByPlanID(ctx context.Context, planID uuid.UUID) (*Execution, error)
	FindAll(ctx context.Context, filter ListFilter) ([]Execution, int64, error)
	ExistsByPlanID(ctx context.Context, planID uuid.UUID) (bool, error)
	// Save inserts a new execution with its full tree; a second execution for the same plan is a conflict
	Save(ctx context.Context, execution *Execution) error
	// SaveWithLock writes item values and balance fields in one transaction
	SaveWithLock(ctx context.Context, execution *Execution) error
}

// TemplateRepository stores per-program execution templates
type TemplateRepository interface {
	FindByProgramID(ctx context.Context, programID uuid.UUID) (*ExecutionTemplate, error)
	Save(ctx context.Context, template *ExecutionTemplate) error
}
