package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Plan event type names
const (
	EventTypePlanCreated         = "PlanCreated"
	EventTypePlanActivityAdded   = "PlanActivityAdded"
	EventTypePlanActivityUpdated = "PlanActivityUpdated"
	EventTypePlanActivityRemoved = "PlanActivityRemoved"
	EventTypePlanSubmitted       = "PlanSubmitted"
	EventTypePlanApproved        = "PlanApproved"
	EventTypePlanRejected        = "PlanRejected"
	EventTypePlanDeleted         = "PlanDeleted"
)

// PlanCreatedEvent is raised when a new plan is created
type PlanCreatedEvent struct {
	shared.BaseDomainEvent
	PlanID       uuid.UUID `json:"plan_id"`
	FacilityID   uuid.UUID `json:"facility_id"`
	ProgramID    uuid.UUID `json:"program_id"`
	FiscalYearID uuid.UUID `json:"fiscal_year_id"`
	FacilityName string    `json:"facility_name"`
}

// EventType returns the event type name
func (e *PlanCreatedEvent) EventType() string {
	return EventTypePlanCreated
}

// NewPlanCreatedEvent creates a new PlanCreatedEvent
func NewPlanCreatedEvent(p *Plan) *PlanCreatedEvent {
	return &PlanCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePlanCreated, AggregateTypePlan, p.ID),
		PlanID:          p.ID,
		FacilityID:      p.FacilityID,
		ProgramID:       p.ProgramID,
		FiscalYearID:    p.FiscalYearID,
		FacilityName:    p.FacilityName,
	}
}

// PlanActivityChangedEvent carries an activity change together with the recomputed plan total
type PlanActivityChangedEvent struct {
	shared.BaseDomainEvent
	PlanID              uuid.UUID       `json:"plan_id"`
	ActivityID          uuid.UUID       `json:"activity_id"`
	ActivityTotalBudget decimal.Decimal `json:"activity_total_budget"`
	PlanTotalBudget     decimal.Decimal `json:"plan_total_budget"`
}

// EventType returns the event type name
func (e *PlanActivityChangedEvent) EventType() string {
	return e.Type
}

func newPlanActivityChangedEvent(eventType string, p *Plan, activityID uuid.UUID, activityTotal decimal.Decimal) *PlanActivityChangedEvent {
	return &PlanActivityChangedEvent{
		BaseDomainEvent:     shared.NewBaseDomainEvent(eventType, AggregateTypePlan, p.ID),
		PlanID:              p.ID,
		ActivityID:          activityID,
		ActivityTotalBudget: activityTotal,
		PlanTotalBudget:     p.TotalBudget,
	}
}

// NewPlanActivityAddedEvent creates a PlanActivityAdded event
func NewPlanActivityAddedEvent(p *Plan, a *PlanActivity) *PlanActivityChangedEvent {
	return newPlanActivityChangedEvent(EventTypePlanActivityAdded, p, a.ID, a.TotalBudget)
}

// NewPlanActivityUpdatedEvent creates a PlanActivityUpdated event
func NewPlanActivityUpdatedEvent(p *Plan, a *PlanActivity) *PlanActivityChangedEvent {
	return newPlanActivityChangedEvent(EventTypePlanActivityUpdated, p, a.ID, a.TotalBudget)
}

// NewPlanActivityRemovedEvent creates a PlanActivityRemoved event
func NewPlanActivityRemovedEvent(p *Plan, activityID uuid.UUID) *PlanActivityChangedEvent {
	return newPlanActivityChangedEvent(EventTypePlanActivityRemoved, p, activityID, decimal.Zero)
}

// PlanStatusChangedEvent is raised on every workflow transition of a plan
type PlanStatusChangedEvent struct {
	shared.BaseDomainEvent
	PlanID      uuid.UUID       `json:"plan_id"`
	Status      WorkflowStatus  `json:"status"`
	ActorID     uuid.UUID       `json:"actor_id"`
	At          time.Time       `json:"at"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	Comment     string          `json:"comment,omitempty"`
}

// EventType returns the event type name
func (e *PlanStatusChangedEvent) EventType() string {
	return e.Type
}

func newPlanStatusChangedEvent(eventType string, p *Plan, actor *uuid.UUID, at *time.Time) *PlanStatusChangedEvent {
	ev := &PlanStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePlan, p.ID),
		PlanID:          p.ID,
		Status:          p.Status,
		At:              time.Now(),
		TotalBudget:     p.TotalBudget,
	}
	if actor != nil {
		ev.ActorID = *actor
	}
	if at != nil {
		ev.At = *at
	}
	return ev
}

// NewPlanSubmittedEvent creates a PlanSubmitted event
func NewPlanSubmittedEvent(p *Plan) *PlanStatusChangedEvent {
	return newPlanStatusChangedEvent(EventTypePlanSubmitted, p, p.SubmittedBy, p.SubmittedAt)
}

// NewPlanApprovedEvent creates a PlanApproved event
func NewPlanApprovedEvent(p *Plan) *PlanStatusChangedEvent {
	return newPlanStatusChangedEvent(EventTypePlanApproved, p, p.ApprovedBy, p.ApprovedAt)
}

// NewPlanRejectedEvent creates a PlanRejected event
func NewPlanRejectedEvent(p *Plan) *PlanStatusChangedEvent {
	ev := newPlanStatusChangedEvent(EventTypePlanRejected, p, p.RejectedBy, p.RejectedAt)
	ev.Comment = p.RejectionComment
	return ev
}

// NewPlanDeletedEvent creates a PlanDeleted event
func NewPlanDeletedEvent(p *Plan, actor uuid.UUID) *PlanStatusChangedEvent {
	return newPlanStatusChangedEvent(EventTypePlanDeleted, p, &actor, nil)
}
