package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEventHandler is a mock implementation of shared.EventHandler
type MockEventHandler struct {
	mock.Mock
}

func (m *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventHandler) EventTypes() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

func TestIdempotentHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery reaches the wrapped handler", func(t *testing.T) {
		store := cache.NewMemoryIdempotencyStore()
		defer store.Close()
		next := new(MockEventHandler)
		ev := newTestEvent("PlanCreated")
		next.On("Handle", mock.Anything, ev).Return(nil).Once()

		h := NewIdempotentHandler(next, store, zap.NewNop())
		require.NoError(t, h.Handle(ctx, ev))

		next.AssertExpectations(t)
		assert.Equal(t, DedupStats{Delivered: 1}, h.Stats())
	})

	t.Run("redelivered event id is skipped", func(t *testing.T) {
		store := cache.NewMemoryIdempotencyStore()
		defer store.Close()
		next := new(MockEventHandler)
		ev := newTestEvent("ExecutionLeafUpdated")
		next.On("Handle", mock.Anything, ev).Return(nil).Once()

		h := NewIdempotentHandler(next, store, zap.NewNop())
		require.NoError(t, h.Handle(ctx, ev))
		require.NoError(t, h.Handle(ctx, ev))
		require.NoError(t, h.Handle(ctx, ev))

		next.AssertNumberOfCalls(t, "Handle", 1)
		assert.Equal(t, DedupStats{Delivered: 1, Duplicates: 2}, h.Stats())
	})

	t.Run("handler failure is returned and counted", func(t *testing.T) {
		store := cache.NewMemoryIdempotencyStore()
		defer store.Close()
		next := new(MockEventHandler)
		ev := newTestEvent("PlanApproved")
		next.On("Handle", mock.Anything, ev).Return(errors.New("broker down"))

		h := NewIdempotentHandler(next, store, zap.NewNop())
		err := h.Handle(ctx, ev)

		require.Error(t, err)
		assert.Equal(t, int64(1), h.Stats().Failed)
		processed, _ := store.IsProcessed(ctx, ev.EventID().String())
		assert.True(t, processed)
	})

	t.Run("store failure still delivers", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		next := new(MockEventHandler)
		ev := newTestEvent("PlanSubmitted")
		store.On("MarkProcessed", mock.Anything, ev.EventID().String(), 24*time.Hour).
			Return(false, errors.New("redis: connection refused"))
		next.On("Handle", mock.Anything, ev).Return(nil)

		h := NewIdempotentHandler(next, store, zap.NewNop())
		require.NoError(t, h.Handle(ctx, ev))

		next.AssertExpectations(t)
		store.AssertExpectations(t)
	})

	t.Run("disabled deduplication bypasses the store", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		next := new(MockEventHandler)
		ev := newTestEvent("PlanSubmitted")
		next.On("Handle", mock.Anything, ev).Return(nil).Twice()

		h := NewIdempotentHandler(next, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}))
		require.NoError(t, h.Handle(ctx, ev))
		require.NoError(t, h.Handle(ctx, ev))

		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
		next.AssertExpectations(t)
	})

	t.Run("custom ttl is passed to the store", func(t *testing.T) {
		store := new(MockIdempotencyStore)
		next := new(MockEventHandler)
		ev := newTestEvent("PlanSubmitted")
		store.On("MarkProcessed", mock.Anything, ev.EventID().String(), time.Hour).Return(true, nil)
		next.On("Handle", mock.Anything, ev).Return(nil)

		h := NewIdempotentHandler(next, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: true, TTL: time.Hour}))
		require.NoError(t, h.Handle(ctx, ev))

		store.AssertExpectations(t)
	})
}

func TestIdempotentHandler_EventTypes(t *testing.T) {
	next := new(MockEventHandler)
	next.On("EventTypes").Return([]string{"PlanCreated"})

	store := cache.NewMemoryIdempotencyStore()
	defer store.Close()

	h := NewIdempotentHandler(next, store, zap.NewNop())
	assert.Equal(t, []string{"PlanCreated"}, h.EventTypes())
}
