// Package budget holds the application services for plans, executions and
// execution templates.
//
// Every write follows the same sequence: take the aggregate lock, load,
// mutate, persist with the version check, then publish the aggregate's
// events once the lock is released.
package budget

import (
	"context"
	"time"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/lock"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Metrics receives business measurements from the services.
// *telemetry.BudgetMetrics satisfies it.
type Metrics interface {
	RecordPlanCreated(ctx context.Context, programID string)
	RecordExecutionCreated(ctx context.Context, programID string)
	RecordTransition(ctx context.Context, aggregate, transition string)
	RecordLeafUpdate(ctx context.Context)
	RecordRejection(ctx context.Context, aggregate, code string)
	RecordLockWait(ctx context.Context, aggregate, outcome string, d time.Duration)
	RecordOperation(ctx context.Context, operation string, d time.Duration, failed bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordPlanCreated(context.Context, string) {}
func (nopMetrics) RecordExecutionCreated(context.Context, string) {}
func (nopMetrics) RecordTransition(context.Context, string, string) {}
func (nopMetrics) RecordLeafUpdate(context.Context) {}
func (nopMetrics) RecordRejection(context.Context, string, string) {}
func (nopMetrics) RecordLockWait(context.Context, string, string, time.Duration) {}
func (nopMetrics) RecordOperation(context.Context, string, time.Duration, bool) {}

// Runtime bundles the cross-cutting collaborators of the budget services.
// Zero values fall back to an in-process locker and no-op metrics.
type Runtime struct {
	Locker    lock.Locker
	Publisher shared.EventPublisher
	Metrics   Metrics
}

type eventSource interface {
	PullDomainEvents() []shared.DomainEvent
}

// runner carries the shared write path of all budget services
type runner struct {
	service   string
	locker    lock.Locker
	publisher shared.EventPublisher
	metrics   Metrics
}

func newRunner(service string, rt Runtime) *runner {
	r := &runner{
		service:   service,
		locker:    rt.Locker,
		publisher: rt.Publisher,
		metrics:   rt.Metrics,
	}
	if r.locker == nil {
		r.locker = lock.NewLocalLocker()
	}
	if r.metrics == nil {
		r.metrics = nopMetrics{}
	}
	return r
}

// start opens the operation span; finish must be deferred with the result
func (r *runner) start(ctx context.Context, method string, keyValues ...any) (context.Context, func(error)) {
	began := time.Now()
	ctx, span := telemetry.StartServiceSpan(ctx, r.service, method, keyValues...)
	return ctx, func(err error) {
		r.metrics.RecordOperation(ctx, r.service+"."+method, time.Since(began), err != nil)
		telemetry.EndSpan(span, err)
	}
}

// locked runs fn under the lock for key and records how long acquisition took
func (r *runner) locked(ctx context.Context, aggregate, key string, fn func() error) error {
	began := time.Now()
	acquired := false
	err := r.locker.WithLock(ctx, key, func() error {
		acquired = true
		r.metrics.RecordLockWait(ctx, aggregate, "acquired", time.Since(began))
		return fn()
	})
	if !acquired && err != nil {
		r.metrics.RecordLockWait(ctx, aggregate, "unavailable", time.Since(began))
	}
	return err
}

// publish drains the aggregate's events and hands them to the publisher.
// The write has already committed, so a publish failure is only logged.
func (r *runner) publish(ctx context.Context, src eventSource) {
	events := src.PullDomainEvents()
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("failed to publish domain events",
			zap.String("service", r.service),
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

// rejected logs and counts a refused mutation
func (r *runner) rejected(ctx context.Context, aggregate, op string, id string, err error) {
	code := shared.ErrorCode(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	r.metrics.RecordRejection(ctx, aggregate, code)
	fields := []zap.Field{
		zap.String("aggregate", aggregate),
		zap.String("aggregate_id", id),
		zap.String("operation", op),
		zap.String("error_code", code),
		zap.Error(err),
	}
	if shared.ErrorCode(err) != "" {
		logger.L(ctx).Warn("mutation rejected", fields...)
		return
	}
	logger.L(ctx).Error("mutation failed", fields...)
}

// transitioned logs and counts a workflow transition
func (r *runner) transitioned(ctx context.Context, aggregate, transition, id string, fields ...zap.Field) {
	r.metrics.RecordTransition(ctx, aggregate, transition)
	logger.L(ctx).Info(aggregate+" "+transition,
		append([]zap.Field{zap.String("aggregate_id", id)}, fields...)...)
}

func annotate(ctx context.Context, keyValues ...any) {
	telemetry.SetAttributes(trace.SpanFromContext(ctx), keyValues...)
}
