package event

import (
	"github.com/healthbudget/backend/internal/domain/budget"
)

// RegisterBudgetEvents registers every plan and execution change fact with the serializer
func RegisterBudgetEvents(s *EventSerializer) {
	s.Register(budget.EventTypePlanCreated, &budget.PlanCreatedEvent{})
	for _, t := range []string{
		budget.EventTypePlanActivityAdded,
		budget.EventTypePlanActivityUpdated,
		budget.EventTypePlanActivityRemoved,
	} {
		s.Register(t, &budget.PlanActivityChangedEvent{})
	}
	for _, t := range []string{
		budget.EventTypePlanSubmitted,
		budget.EventTypePlanApproved,
		budget.EventTypePlanRejected,
		budget.EventTypePlanDeleted,
	} {
		s.Register(t, &budget.PlanStatusChangedEvent{})
	}

	s.Register(budget.EventTypeExecutionCreated, &budget.ExecutionCreatedEvent{})
	s.Register(budget.EventTypeExecutionLeafUpdated, &budget.ExecutionLeafUpdatedEvent{})
	for _, t := range []string{
		budget.EventTypeExecutionSubmitted,
		budget.EventTypeExecutionApproved,
		budget.EventTypeExecutionRejected,
	} {
		s.Register(t, &budget.ExecutionStatusChangedEvent{})
	}
}
