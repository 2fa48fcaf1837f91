package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEvent implements DomainEvent for testing
type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Plan", uuid.New()),
		Data:            "test data",
	}
}

// recordingHandler implements EventHandler for testing
type recordingHandler struct {
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
	mu         sync.Mutex
}

func newRecordingHandler(eventTypes ...string) *recordingHandler {
	return &recordingHandler{eventTypes: eventTypes}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *recordingHandler) got() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.handled...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	t.Run("delivers to typed subscriber", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newRecordingHandler("PlanCreated")
		bus.Subscribe(h)

		ev := newTestEvent("PlanCreated")
		require.NoError(t, bus.Publish(context.Background(), ev))

		require.Len(t, h.got(), 1)
		assert.Equal(t, ev, h.got()[0])
	})

	t.Run("delivers several events in order", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newRecordingHandler()
		bus.Subscribe(h)

		first, second := newTestEvent("PlanActivityAdded"), newTestEvent("PlanSubmitted")
		require.NoError(t, bus.Publish(context.Background(), first, second))

		got := h.got()
		require.Len(t, got, 2)
		assert.Equal(t, first.EventID(), got[0].EventID())
		assert.Equal(t, second.EventID(), got[1].EventID())
	})

	t.Run("skips subscribers of other types", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := newRecordingHandler("ExecutionCreated")
		bus.Subscribe(h)

		require.NoError(t, bus.Publish(context.Background(), newTestEvent("PlanCreated")))
		assert.Empty(t, h.got())
	})

	t.Run("handler error does not stop other handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := newRecordingHandler("PlanApproved")
		failing.err = errors.New("downstream down")
		ok := newRecordingHandler("PlanApproved")
		bus.Subscribe(failing)
		bus.Subscribe(ok)

		require.NoError(t, bus.Publish(context.Background(), newTestEvent("PlanApproved")))
		assert.Len(t, failing.got(), 1)
		assert.Len(t, ok.got(), 1)
	})

	t.Run("handler panic is contained", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := newRecordingHandler()
		panicking.panicWith = "boom"
		after := newRecordingHandler()
		bus.Subscribe(panicking)
		bus.Subscribe(after)

		assert.NotPanics(t, func() {
			_ = bus.Publish(context.Background(), newTestEvent("PlanRejected"))
		})
		assert.Len(t, after.got(), 1)
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newRecordingHandler("PlanCreated")
	bus.Subscribe(h)

	_ = bus.Publish(context.Background(), newTestEvent("PlanCreated"))
	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), newTestEvent("PlanCreated"))

	assert.Len(t, h.got(), 1)
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newRecordingHandler()
	bus.Subscribe(h)

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("PlanCreated")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.Stop(ctx))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("PlanDeleted")))
	assert.Len(t, h.got(), 1, "events after stop are dropped")

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("PlanDeleted")))
	assert.Len(t, h.got(), 2)
}

func TestInMemoryEventBus_StopWaitsForInflight(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	entered := make(chan struct{})
	release := make(chan struct{})
	bus.Subscribe(&blockingHandler{entered: entered, release: release})

	go func() { _ = bus.Publish(context.Background(), newTestEvent("PlanCreated")) }()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Stop(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, bus.Stop(context.Background()))
}

type blockingHandler struct {
	entered chan struct{}
	release chan struct{}
}

func (h *blockingHandler) Handle(ctx context.Context, _ shared.DomainEvent) error {
	close(h.entered)
	<-h.release
	return nil
}

func (h *blockingHandler) EventTypes() []string { return nil }
