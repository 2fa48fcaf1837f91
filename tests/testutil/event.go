package testutil

import (
	"context"
	"sync"

	"github.com/healthbudget/backend/internal/domain/shared"
)

// EventRecorder is a bus subscriber that keeps every event it is handed.
// Subscribe it with explicit types; it declares none of its own.
type EventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	fail   error
}

// NewEventRecorder returns an empty recorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// EventTypes returns nil, so Subscribe must name the types
func (r *EventRecorder) EventTypes() []string { return nil }

// Handle records event and returns the error set by FailWith
func (r *EventRecorder) Handle(_ context.Context, event shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.fail
}

// FailWith makes later Handle calls return err; nil restores success
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	r.fail = err
	r.mu.Unlock()
}

// Types lists the recorded event types in arrival order
func (r *EventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.EventType()
	}
	return types
}

// Count is the number of events recorded so far
func (r *EventRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// ForAggregate returns the recorded events raised by one plan or execution
func (r *EventRecorder) ForAggregate(id string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, ev := range r.events {
		if ev.AggregateID().String() == id {
			out = append(out, ev)
		}
	}
	return out
}
