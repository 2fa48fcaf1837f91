package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/lock"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const aggregateExecution = "execution"

// ExecutionService handles execution business operations
type ExecutionService struct {
	executions budget.ExecutionRepository
	plans      budget.PlanRepository
	templates  budget.TemplateRepository
	run        *runner
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(
	executions budget.ExecutionRepository,
	plans budget.PlanRepository,
	templates budget.TemplateRepository,
	rt Runtime,
) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		plans:      plans,
		templates:  templates,
		run:        newRunner("ExecutionService", rt),
	}
}

// CreateFromPlan realizes an approved plan as a draft execution using the
// program's template. A plan may be realized once.
func (s *ExecutionService) CreateFromPlan(ctx context.Context, planID, actor uuid.UUID) (resp *ExecutionResponse, err error) {
	ctx, finish := s.run.start(ctx, "CreateFromPlan",
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrActor, actor.String(),
	)
	defer func() { finish(err) }()

	var execution *budget.Execution
	// The plan lock keeps the plan stable and serializes competing creations.
	err = s.run.locked(ctx, aggregatePlan, lock.PlanKey(planID), func() error {
		plan, err := s.plans.FindByID(ctx, planID)
		if err != nil {
			return err
		}
		exists, err := s.executions.ExistsByPlanID(ctx, planID)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewConflictError("an execution already exists for this plan")
		}
		nodes, err := s.templateFor(ctx, plan.ProgramID)
		if err != nil {
			return err
		}
		e, err := budget.NewExecutionFromPlan(plan, nodes)
		if err != nil {
			return err
		}
		if err := s.executions.Save(ctx, e); err != nil {
			return err
		}
		execution = e
		return nil
	})
	if err != nil {
		s.run.rejected(ctx, aggregateExecution, "create", planID.String(), err)
		return nil, err
	}

	annotate(ctx, telemetry.SpanAttrExecutionID, execution.ID.String())
	s.run.publish(ctx, execution)
	s.run.metrics.RecordExecutionCreated(ctx, execution.ProgramID.String())
	logger.L(ctx).Info("execution created",
		zap.String("execution_id", execution.ID.String()),
		zap.String("plan_id", planID.String()),
		zap.Int("items", len(execution.Items)),
		zap.String("actor", actor.String()),
	)

	out := ToExecutionResponse(execution)
	return &out, nil
}

// templateFor returns the program's stored template, or the default ledger
func (s *ExecutionService) templateFor(ctx context.Context, programID uuid.UUID) ([]budget.TemplateNode, error) {
	if s.templates == nil {
		return budget.DefaultExecutionTemplate(), nil
	}
	tpl, err := s.templates.FindByProgramID(ctx, programID)
	if shared.IsKind(err, shared.CodeNotFound) {
		return budget.DefaultExecutionTemplate(), nil
	}
	if err != nil {
		return nil, err
	}
	return tpl.Nodes, nil
}

// GetTree returns an execution with its full item tree in pre-order
func (s *ExecutionService) GetTree(ctx context.Context, id uuid.UUID) (*ExecutionResponse, error) {
	execution, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToExecutionResponse(execution)
	return &out, nil
}

// GetBalance returns the balance summary of an execution
func (s *ExecutionService) GetBalance(ctx context.Context, id uuid.UUID) (*BalanceResponse, error) {
	execution, err := s.executions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToBalanceResponse(execution)
	return &out, nil
}

// List returns a page of executions matching the filter
func (s *ExecutionService) List(ctx context.Context, req ListRequest) (shared.Paginated[ExecutionResponse], error) {
	filter := req.ToFilter()
	executions, total, err := s.executions.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[ExecutionResponse]{}, err
	}
	return shared.NewPaginated(ToExecutionListResponses(executions), total, filter.Page, filter.PageSize), nil
}

// UpdateLeaf sets the quarterly amounts of one leaf item and returns the
// item together with the recomputed balance
func (s *ExecutionService) UpdateLeaf(ctx context.Context, executionID, itemID uuid.UUID, req UpdateLeafRequest) (resp *LeafUpdateResponse, err error) {
	ctx, finish := s.run.start(ctx, "UpdateLeaf",
		telemetry.SpanAttrExecutionID, executionID.String(),
		telemetry.SpanAttrItemID, itemID.String(),
	)
	defer func() { finish(err) }()

	var item budget.ExecutionItem
	execution, err := s.mutate(ctx, "update_leaf", executionID, func(e *budget.Execution) error {
		updated, err := e.UpdateLeafValues(itemID, req.Values())
		if err != nil {
			return err
		}
		item = *updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.run.metrics.RecordLeafUpdate(ctx)
	logger.L(ctx).Debug("execution leaf updated",
		zap.String("execution_id", executionID.String()),
		zap.String("item_code", item.ItemCode),
		zap.Bool("balanced", execution.IsBalanced),
	)
	return &LeafUpdateResponse{
		Item:    ToExecutionItemResponse(&item),
		Balance: ToBalanceResponse(execution),
	}, nil
}

// Submit moves a balanced draft execution to submitted
func (s *ExecutionService) Submit(ctx context.Context, executionID, actor uuid.UUID) (*ExecutionResponse, error) {
	return s.transition(ctx, "Submit", "submitted", executionID, actor, func(e *budget.Execution) error {
		return e.Submit(actor)
	})
}

// Approve moves a submitted execution to approved
func (s *ExecutionService) Approve(ctx context.Context, executionID, actor uuid.UUID) (*ExecutionResponse, error) {
	return s.transition(ctx, "Approve", "approved", executionID, actor, func(e *budget.Execution) error {
		return e.Approve(actor)
	})
}

// Reject moves a submitted execution to rejected with an optional comment
func (s *ExecutionService) Reject(ctx context.Context, executionID, actor uuid.UUID, req RejectRequest) (*ExecutionResponse, error) {
	return s.transition(ctx, "Reject", "rejected", executionID, actor, func(e *budget.Execution) error {
		return e.Reject(actor, req.Comment)
	})
}

func (s *ExecutionService) transition(
	ctx context.Context,
	method, transition string,
	executionID, actor uuid.UUID,
	fn func(*budget.Execution) error,
) (resp *ExecutionResponse, err error) {
	ctx, finish := s.run.start(ctx, method,
		telemetry.SpanAttrExecutionID, executionID.String(),
		telemetry.SpanAttrActor, actor.String(),
	)
	defer func() { finish(err) }()

	execution, err := s.mutate(ctx, transition, executionID, fn)
	if err != nil {
		return nil, err
	}
	s.run.transitioned(ctx, aggregateExecution, transition, executionID.String(),
		zap.String("actor", actor.String()),
		zap.String("balance_difference", execution.BalanceDifference.String()),
	)
	out := ToExecutionResponse(execution)
	return &out, nil
}

func (s *ExecutionService) mutate(ctx context.Context, op string, executionID uuid.UUID, fn func(*budget.Execution) error) (*budget.Execution, error) {
	var execution *budget.Execution
	err := s.run.locked(ctx, aggregateExecution, lock.ExecutionKey(executionID), func() error {
		e, err := s.executions.FindByID(ctx, executionID)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		if err := s.executions.SaveWithLock(ctx, e); err != nil {
			return err
		}
		execution = e
		return nil
	})
	if err != nil {
		s.run.rejected(ctx, aggregateExecution, op, executionID.String(), err)
		return nil, err
	}
	s.run.publish(ctx, execution)
	return execution, nil
}
