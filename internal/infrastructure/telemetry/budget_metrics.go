package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// StatusCounter reports how many aggregates sit in each workflow status
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// BudgetMetrics holds the plan and execution instruments
type BudgetMetrics struct {
	plansCreated      *Counter
	executionsCreated *Counter
	transitions       *Counter
	leafUpdates       *Counter
	rejections        *Counter
	lockWait          *Histogram
	operationDuration *Histogram
	byStatus          *Gauge

	logger *zap.Logger
	status *sampler
}

// NewBudgetMetrics declares the budget instruments on meter
func NewBudgetMetrics(meter metric.Meter, logger *zap.Logger) (*BudgetMetrics, error) {
	in := NewInstruments(meter)
	bm := &BudgetMetrics{
		plansCreated:      in.Counter("budget_plans_created_total", "Plans created", "{plan}"),
		executionsCreated: in.Counter("budget_executions_created_total", "Executions created from approved plans", "{execution}"),
		transitions:       in.Counter("budget_workflow_transitions_total", "Workflow transitions by aggregate and transition", "{transition}"),
		leafUpdates:       in.Counter("budget_execution_leaf_updates_total", "Execution leaf value updates", "{update}"),
		rejections:        in.Counter("budget_rejected_mutations_total", "Mutations refused by the engine, by error code", "{mutation}"),
		lockWait:          in.Histogram("budget_lock_wait_seconds", "Time spent acquiring an aggregate lock", "s", LockWaitBuckets...),
		operationDuration: in.Histogram("budget_operation_duration_seconds", "Engine operation duration including lock and persistence", "s", OperationBuckets...),
		byStatus:          in.Gauge("budget_aggregates_by_status", "Plans and executions per workflow status", "{aggregate}"),
		logger:            logger,
		status:            newSampler(),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return bm, nil
}

func (bm *BudgetMetrics) RecordPlanCreated(ctx context.Context, programID string) {
	bm.plansCreated.Inc(ctx, AttrProgram.String(programID))
}

func (bm *BudgetMetrics) RecordExecutionCreated(ctx context.Context, programID string) {
	bm.executionsCreated.Inc(ctx, AttrProgram.String(programID))
}

// RecordTransition counts a submit, approve, reject or delete
func (bm *BudgetMetrics) RecordTransition(ctx context.Context, aggregate, transition string) {
	bm.transitions.Inc(ctx, AttrAggregate.String(aggregate), AttrTransition.String(transition))
}

// RecordLeafUpdate counts one updateLeafValues call
func (bm *BudgetMetrics) RecordLeafUpdate(ctx context.Context) {
	bm.leafUpdates.Inc(ctx)
}

// RecordRejection counts a refused mutation by domain error code
func (bm *BudgetMetrics) RecordRejection(ctx context.Context, aggregate, code string) {
	bm.rejections.Inc(ctx, AttrAggregate.String(aggregate), AttrErrorCode.String(code))
}

// RecordLockWait records how long a lock took; outcome is acquired or unavailable
func (bm *BudgetMetrics) RecordLockWait(ctx context.Context, aggregate, outcome string, d time.Duration) {
	bm.lockWait.Seconds(ctx, d, AttrAggregate.String(aggregate), AttrOutcome.String(outcome))
}

// RecordOperation records the duration of a named operation
func (bm *BudgetMetrics) RecordOperation(ctx context.Context, operation string, d time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	bm.operationDuration.Seconds(ctx, d, AttrTransition.String(operation), AttrOutcome.String(outcome))
}

// StartStatusCollection samples plan and execution counts per status every
// interval (default one minute) until Stop or ctx is done
func (bm *BudgetMetrics) StartStatusCollection(ctx context.Context, plans, executions StatusCounter, interval time.Duration) {
	bm.status.start(ctx, orDefault(interval, time.Minute), func(ctx context.Context) {
		bm.sampleStatus(ctx, "plan", plans)
		bm.sampleStatus(ctx, "execution", executions)
	})
}

func (bm *BudgetMetrics) sampleStatus(ctx context.Context, aggregate string, counter StatusCounter) {
	counts, err := counter.CountByStatus(ctx)
	if err != nil {
		bm.logger.Warn("status count failed", zap.String("aggregate", aggregate), zap.Error(err))
		return
	}
	for status, n := range counts {
		bm.byStatus.Set(ctx, n, AttrAggregate.String(aggregate), AttrStatus.String(status))
	}
}

// Stop ends status collection. Safe to call more than once.
func (bm *BudgetMetrics) Stop() {
	bm.status.halt()
}
