package event

import (
	"context"
	"sync/atomic"

	"github.com/healthbudget/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DedupStats is a snapshot of an IdempotentHandler's counters
type DedupStats struct {
	Delivered  int64 `json:"delivered"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// IdempotentHandler passes each event id to the wrapped handler at most once per TTL
type IdempotentHandler struct {
	next   shared.EventHandler
	store  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger

	delivered  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the default TTL and enabled flag
func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = cfg
	}
}

// NewIdempotentHandler wraps next with deduplication backed by store
func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		next:   next,
		store:  store,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Handle skips events whose id was already recorded.
// A store failure does not block delivery; a duplicate send is preferred over a lost fact.
func (h *IdempotentHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.next.Handle(ctx, ev)
	}

	id := ev.EventID().String()
	fresh, err := h.store.MarkProcessed(ctx, id, h.config.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency store unavailable, delivering anyway",
			zap.String("event_id", id),
			zap.String("event_type", ev.EventType()),
			zap.Error(err),
		)
	case !fresh:
		h.duplicates.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", id),
			zap.String("event_type", ev.EventType()),
		)
		return nil
	}

	if err := h.next.Handle(ctx, ev); err != nil {
		// the record stays until TTL so a failing fact is not retried in a tight loop
		h.failed.Add(1)
		return err
	}
	h.delivered.Add(1)
	return nil
}

// Stats returns the current counters
func (h *IdempotentHandler) Stats() DedupStats {
	return DedupStats{
		Delivered:  h.delivered.Load(),
		Duplicates: h.duplicates.Load(),
		Failed:     h.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
