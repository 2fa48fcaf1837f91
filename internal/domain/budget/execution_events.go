package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Execution event type names
const (
	EventTypeExecutionCreated     = "ExecutionCreated"
	EventTypeExecutionLeafUpdated = "ExecutionLeafUpdated"
	EventTypeExecutionSubmitted   = "ExecutionSubmitted"
	EventTypeExecutionApproved    = "ExecutionApproved"
	EventTypeExecutionRejected    = "ExecutionRejected"
)

// ExecutionCreatedEvent is raised when an execution is created from an approved plan
type ExecutionCreatedEvent struct {
	shared.BaseDomainEvent
	ExecutionID uuid.UUID `json:"execution_id"`
	PlanID      uuid.UUID `json:"plan_id"`
	ItemCount   int       `json:"item_count"`
}

// EventType returns the event type name
func (e *ExecutionCreatedEvent) EventType() string {
	return EventTypeExecutionCreated
}

// NewExecutionCreatedEvent creates a new ExecutionCreatedEvent
func NewExecutionCreatedEvent(e *Execution) *ExecutionCreatedEvent {
	return &ExecutionCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExecutionCreated, AggregateTypeExecution, e.ID),
		ExecutionID:     e.ID,
		PlanID:          e.PlanID,
		ItemCount:       len(e.Items),
	}
}

// ExecutionLeafUpdatedEvent carries a leaf change and the recomputed balance
type ExecutionLeafUpdatedEvent struct {
	shared.BaseDomainEvent
	ExecutionID       uuid.UUID       `json:"execution_id"`
	ItemID            uuid.UUID       `json:"item_id"`
	ItemCode          string          `json:"item_code"`
	Q1                decimal.Decimal `json:"q1"`
	Q2                decimal.Decimal `json:"q2"`
	Q3                decimal.Decimal `json:"q3"`
	Q4                decimal.Decimal `json:"q4"`
	TotalReceipts     decimal.Decimal `json:"total_receipts"`
	TotalExpenditures decimal.Decimal `json:"total_expenditures"`
	BalanceDifference decimal.Decimal `json:"balance_difference"`
	IsBalanced        bool            `json:"is_balanced"`
}

// EventType returns the event type name
func (e *ExecutionLeafUpdatedEvent) EventType() string {
	return EventTypeExecutionLeafUpdated
}

// NewExecutionLeafUpdatedEvent creates a new ExecutionLeafUpdatedEvent
func NewExecutionLeafUpdatedEvent(e *Execution, item *ExecutionItem) *ExecutionLeafUpdatedEvent {
	return &ExecutionLeafUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeExecutionLeafUpdated, AggregateTypeExecution, e.ID),
		ExecutionID:       e.ID,
		ItemID:            item.ID,
		ItemCode:          item.ItemCode,
		Q1:                item.Values.Get(valueobject.Q1),
		Q2:                item.Values.Get(valueobject.Q2),
		Q3:                item.Values.Get(valueobject.Q3),
		Q4:                item.Values.Get(valueobject.Q4),
		TotalReceipts:     e.TotalReceipts,
		TotalExpenditures: e.TotalExpenditures,
		BalanceDifference: e.BalanceDifference,
		IsBalanced:        e.IsBalanced,
	}
}

// ExecutionStatusChangedEvent is raised on every workflow transition of an execution
type ExecutionStatusChangedEvent struct {
	shared.BaseDomainEvent
	ExecutionID       uuid.UUID       `json:"execution_id"`
	PlanID            uuid.UUID       `json:"plan_id"`
	Status            WorkflowStatus  `json:"status"`
	ActorID           uuid.UUID       `json:"actor_id"`
	At                time.Time       `json:"at"`
	BalanceDifference decimal.Decimal `json:"balance_difference"`
	Comment           string          `json:"comment,omitempty"`
}

// EventType returns the event type name
func (e *ExecutionStatusChangedEvent) EventType() string {
	return e.Type
}

func newExecutionStatusChangedEvent(eventType string, e *Execution, actor *uuid.UUID, at *time.Time) *ExecutionStatusChangedEvent {
	ev := &ExecutionStatusChangedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(eventType, AggregateTypeExecution, e.ID),
		ExecutionID:       e.ID,
		PlanID:            e.PlanID,
		Status:            e.Status,
		At:                time.Now(),
		BalanceDifference: e.BalanceDifference,
	}
	if actor != nil {
		ev.ActorID = *actor
	}
	if at != nil {
		ev.At = *at
	}
	return ev
}

// NewExecutionSubmittedEvent creates an ExecutionSubmitted event
func NewExecutionSubmittedEvent(e *Execution) *ExecutionStatusChangedEvent {
	return newExecutionStatusChangedEvent(EventTypeExecutionSubmitted, e, e.SubmittedBy, e.SubmittedAt)
}

// NewExecutionApprovedEvent creates an ExecutionApproved event
func NewExecutionApprovedEvent(e *Execution) *ExecutionStatusChangedEvent {
	return newExecutionStatusChangedEvent(EventTypeExecutionApproved, e, e.ApprovedBy, e.ApprovedAt)
}

// NewExecutionRejectedEvent creates an ExecutionRejected event
func NewExecutionRejectedEvent(e *Execution) *ExecutionStatusChangedEvent {
	ev := newExecutionStatusChangedEvent(EventTypeExecutionRejected, e, e.RejectedBy, e.RejectedAt)
	ev.Comment = e.RejectionComment
	return ev
}
