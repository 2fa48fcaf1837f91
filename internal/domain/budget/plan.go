package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type names used in events and lock keys
const (
	AggregateTypePlan      = "Plan"
	AggregateTypeExecution = "Execution"
)

// Plan is the budgeted set of quarterly activities for one facility, program and fiscal year.
// TotalBudget is derived from Activities and is never set by callers.
type Plan struct {
	shared.BaseAggregateRoot
	FacilityID     uuid.UUID
	ProgramID      uuid.UUID
	FiscalYearID   uuid.UUID
	FacilityName   string
	FacilityType   string
	DistrictName   string
	ProvinceName   string
	ProgramName    string
	FiscalYearName string
	Workflow
	TotalBudget decimal.Decimal
	Activities  []PlanActivity
}

// NewPlan creates a draft Plan with metadata copied from the reference context
func NewPlan(ref PlanContext) (*Plan, error) {
	if ref.FacilityID == uuid.Nil {
		return nil, shared.NewValidationError("facility id cannot be empty")
	}
	if ref.ProgramID == uuid.Nil {
		return nil, shared.NewValidationError("program id cannot be empty")
	}
	if ref.FiscalYearID == uuid.Nil {
		return nil, shared.NewValidationError("fiscal year id cannot be empty")
	}

	p := &Plan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FacilityID:        ref.FacilityID,
		ProgramID:         ref.ProgramID,
		FiscalYearID:      ref.FiscalYearID,
		FacilityName:      ref.FacilityName,
		FacilityType:      ref.FacilityType,
		DistrictName:      ref.DistrictName,
		ProvinceName:      ref.ProvinceName,
		ProgramName:       ref.ProgramName,
		FiscalYearName:    ref.FiscalYearName,
		Workflow:          newWorkflow(),
		TotalBudget:       decimal.Zero,
		Activities:        make([]PlanActivity, 0),
	}
	p.AddDomainEvent(NewPlanCreatedEvent(p))
	return p, nil
}

// AddActivity appends a budgeted activity and recomputes the plan total
func (p *Plan) AddActivity(in ActivityInput) (*PlanActivity, error) {
	if err := p.requireEditable("plan"); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	activity := newPlanActivity(p.ID, in, p.nextSortOrder())
	p.Activities = append(p.Activities, *activity)
	p.recalculateTotals()
	p.Touch()

	added := &p.Activities[len(p.Activities)-1]
	p.AddDomainEvent(NewPlanActivityAddedEvent(p, added))
	return added, nil
}

// UpdateActivity replaces the editable fields of an existing activity
func (p *Plan) UpdateActivity(activityID uuid.UUID, in ActivityInput) (*PlanActivity, error) {
	if err := p.requireEditable("plan"); err != nil {
		return nil, err
	}
	idx := p.activityIndex(activityID)
	if idx < 0 {
		return nil, shared.NewNotFoundError("plan activity not found")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	activity := &p.Activities[idx]
	activity.apply(in)
	activity.UpdatedAt = time.Now()
	p.recalculateTotals()
	p.Touch()

	p.AddDomainEvent(NewPlanActivityUpdatedEvent(p, activity))
	return activity, nil
}

// RemoveActivity deletes an activity and recomputes the plan total
func (p *Plan) RemoveActivity(activityID uuid.UUID) error {
	if err := p.requireEditable("plan"); err != nil {
		return err
	}
	idx := p.activityIndex(activityID)
	if idx < 0 {
		return shared.NewNotFoundError("plan activity not found")
	}

	p.Activities = append(p.Activities[:idx], p.Activities[idx+1:]...)
	p.recalculateTotals()
	p.Touch()

	p.AddDomainEvent(NewPlanActivityRemovedEvent(p, activityID))
	return nil
}

// GetActivity returns an activity by id
func (p *Plan) GetActivity(activityID uuid.UUID) *PlanActivity {
	idx := p.activityIndex(activityID)
	if idx < 0 {
		return nil
	}
	return &p.Activities[idx]
}

// Submit moves a draft plan to submitted
func (p *Plan) Submit(actor uuid.UUID) error {
	if err := p.submit("plan", actor, time.Now()); err != nil {
		return err
	}
	p.Touch()
	p.AddDomainEvent(NewPlanSubmittedEvent(p))
	return nil
}

// Approve approves a submitted plan
func (p *Plan) Approve(actor uuid.UUID) error {
	if err := p.approve("plan", actor, time.Now()); err != nil {
		return err
	}
	p.Touch()
	p.AddDomainEvent(NewPlanApprovedEvent(p))
	return nil
}

// Reject rejects a submitted plan
func (p *Plan) Reject(actor uuid.UUID, comment string) error {
	if err := p.reject("plan", actor, comment, time.Now()); err != nil {
		return err
	}
	p.Touch()
	p.AddDomainEvent(NewPlanRejectedEvent(p))
	return nil
}

// MarkDeleted checks the plan may be deleted and records the deletion event.
// Only draft and rejected plans can be deleted.
func (p *Plan) MarkDeleted(actor uuid.UUID) error {
	if p.Status != StatusDraft && p.Status != StatusRejected {
		return shared.NewInvalidStateError("only draft or rejected plans can be deleted")
	}
	p.AddDomainEvent(NewPlanDeletedEvent(p, actor))
	return nil
}

// Context returns the reference metadata captured on the plan
func (p *Plan) Context() PlanContext {
	return PlanContext{
		FacilityID:     p.FacilityID,
		ProgramID:      p.ProgramID,
		FiscalYearID:   p.FiscalYearID,
		FacilityName:   p.FacilityName,
		FacilityType:   p.FacilityType,
		DistrictName:   p.DistrictName,
		ProvinceName:   p.ProvinceName,
		ProgramName:    p.ProgramName,
		FiscalYearName: p.FiscalYearName,
	}
}

// RecalculateTotals recomputes every derived total from the current activities.
// Calling it repeatedly without intervening writes yields identical totals.
func (p *Plan) RecalculateTotals() {
	p.recalculateTotals()
}

func (p *Plan) recalculateTotals() {
	total := decimal.Zero
	for i := range p.Activities {
		p.Activities[i].recalculateTotal()
		total = total.Add(p.Activities[i].TotalBudget)
	}
	p.TotalBudget = total
}

func (p *Plan) activityIndex(id uuid.UUID) int {
	for i := range p.Activities {
		if p.Activities[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Plan) nextSortOrder() int {
	max := 0
	for i := range p.Activities {
		if p.Activities[i].SortOrder > max {
			max = p.Activities[i].SortOrder
		}
	}
	return max + 1
}
