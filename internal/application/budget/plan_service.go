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

const aggregatePlan = "plan"

// PlanService handles plan business operations
type PlanService struct {
	plans      budget.PlanRepository
	executions budget.ExecutionRepository
	directory  budget.ReferenceDirectory
	run        *runner
}

// NewPlanService creates a new PlanService
func NewPlanService(
	plans budget.PlanRepository,
	executions budget.ExecutionRepository,
	directory budget.ReferenceDirectory,
	rt Runtime,
) *PlanService {
	return &PlanService{
		plans:      plans,
		executions: executions,
		directory:  directory,
		run:        newRunner("PlanService", rt),
	}
}

// Create creates a draft plan for a facility, program and fiscal year,
// optionally with initial activities. A second plan for the same tuple is a conflict.
func (s *PlanService) Create(ctx context.Context, req CreatePlanRequest) (resp *PlanResponse, err error) {
	ctx, finish := s.run.start(ctx, "Create",
		telemetry.SpanAttrProgramID, req.ProgramID.String(),
		"facility_id", req.FacilityID.String(),
	)
	defer func() { finish(err) }()

	var plan *budget.Plan
	key := lock.TupleKey(req.FacilityID, req.ProgramID, req.FiscalYearID)
	err = s.run.locked(ctx, aggregatePlan, key, func() error {
		ref, err := s.directory.ResolvePlanContext(ctx, req.FacilityID, req.ProgramID, req.FiscalYearID)
		if err != nil {
			return err
		}
		exists, err := s.plans.ExistsForTuple(ctx, req.FacilityID, req.ProgramID, req.FiscalYearID)
		if err != nil {
			return err
		}
		if exists {
			return shared.NewConflictError("a plan already exists for this facility, program and fiscal year")
		}

		p, err := budget.NewPlan(ref)
		if err != nil {
			return err
		}
		for _, a := range req.Activities {
			if _, err := p.AddActivity(a.ToInput()); err != nil {
				return err
			}
		}
		if err := s.plans.Save(ctx, p); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		s.run.rejected(ctx, aggregatePlan, "create", key, err)
		return nil, err
	}

	annotate(ctx, telemetry.SpanAttrPlanID, plan.ID.String())
	s.run.publish(ctx, plan)
	s.run.metrics.RecordPlanCreated(ctx, plan.ProgramID.String())
	logger.L(ctx).Info("plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("facility", plan.FacilityName),
		zap.String("program", plan.ProgramName),
		zap.String("fiscal_year", plan.FiscalYearName),
		zap.Int("activities", len(plan.Activities)),
	)

	out := ToPlanResponse(plan)
	return &out, nil
}

// GetByID returns a plan with its activities
func (s *PlanService) GetByID(ctx context.Context, id uuid.UUID) (*PlanResponse, error) {
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ToPlanResponse(plan)
	return &out, nil
}

// List returns a page of plans matching the filter
func (s *PlanService) List(ctx context.Context, req ListRequest) (shared.Paginated[PlanResponse], error) {
	filter := req.ToFilter()
	plans, total, err := s.plans.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[PlanResponse]{}, err
	}
	return shared.NewPaginated(ToPlanListResponses(plans), total, filter.Page, filter.PageSize), nil
}

// AddActivity appends an activity to a draft plan
func (s *PlanService) AddActivity(ctx context.Context, planID uuid.UUID, req ActivityRequest) (resp *PlanResponse, err error) {
	ctx, finish := s.run.start(ctx, "AddActivity", telemetry.SpanAttrPlanID, planID.String())
	defer func() { finish(err) }()

	plan, err := s.mutate(ctx, "add_activity", planID, func(p *budget.Plan) error {
		a, err := p.AddActivity(req.ToInput())
		if err == nil {
			annotate(ctx, telemetry.SpanAttrActivityID, a.ID.String())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	out := ToPlanResponse(plan)
	return &out, nil
}

// UpdateActivity replaces the editable fields of one activity
func (s *PlanService) UpdateActivity(ctx context.Context, planID, activityID uuid.UUID, req ActivityRequest) (resp *PlanResponse, err error) {
	ctx, finish := s.run.start(ctx, "UpdateActivity",
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrActivityID, activityID.String(),
	)
	defer func() { finish(err) }()

	plan, err := s.mutate(ctx, "update_activity", planID, func(p *budget.Plan) error {
		_, err := p.UpdateActivity(activityID, req.ToInput())
		return err
	})
	if err != nil {
		return nil, err
	}
	out := ToPlanResponse(plan)
	return &out, nil
}

// RemoveActivity deletes one activity from a draft plan
func (s *PlanService) RemoveActivity(ctx context.Context, planID, activityID uuid.UUID) (resp *PlanResponse, err error) {
	ctx, finish := s.run.start(ctx, "RemoveActivity",
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrActivityID, activityID.String(),
	)
	defer func() { finish(err) }()

	plan, err := s.mutate(ctx, "remove_activity", planID, func(p *budget.Plan) error {
		return p.RemoveActivity(activityID)
	})
	if err != nil {
		return nil, err
	}
	out := ToPlanResponse(plan)
	return &out, nil
}

// Submit moves a draft plan to submitted
func (s *PlanService) Submit(ctx context.Context, planID, actor uuid.UUID) (*PlanResponse, error) {
	return s.transition(ctx, "Submit", "submitted", planID, actor, func(p *budget.Plan) error {
		return p.Submit(actor)
	})
}

// Approve moves a submitted plan to approved
func (s *PlanService) Approve(ctx context.Context, planID, actor uuid.UUID) (*PlanResponse, error) {
	return s.transition(ctx, "Approve", "approved", planID, actor, func(p *budget.Plan) error {
		return p.Approve(actor)
	})
}

// Reject moves a submitted plan to rejected with an optional comment
func (s *PlanService) Reject(ctx context.Context, planID, actor uuid.UUID, req RejectRequest) (*PlanResponse, error) {
	return s.transition(ctx, "Reject", "rejected", planID, actor, func(p *budget.Plan) error {
		return p.Reject(actor, req.Comment)
	})
}

// Delete removes a draft or rejected plan that no execution references
func (s *PlanService) Delete(ctx context.Context, planID, actor uuid.UUID) (err error) {
	ctx, finish := s.run.start(ctx, "Delete",
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrActor, actor.String(),
	)
	defer func() { finish(err) }()

	var plan *budget.Plan
	err = s.run.locked(ctx, aggregatePlan, lock.PlanKey(planID), func() error {
		p, err := s.plans.FindByID(ctx, planID)
		if err != nil {
			return err
		}
		if err := p.MarkDeleted(actor); err != nil {
			return err
		}
		used, err := s.executions.ExistsByPlanID(ctx, planID)
		if err != nil {
			return err
		}
		if used {
			return shared.NewConflictError("plan has an execution and cannot be deleted")
		}
		if err := s.plans.Delete(ctx, planID); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		s.run.rejected(ctx, aggregatePlan, "delete", planID.String(), err)
		return err
	}

	s.run.publish(ctx, plan)
	s.run.transitioned(ctx, aggregatePlan, "deleted", planID.String(), zap.String("actor", actor.String()))
	return nil
}

func (s *PlanService) transition(
	ctx context.Context,
	method, transition string,
	planID, actor uuid.UUID,
	fn func(*budget.Plan) error,
) (resp *PlanResponse, err error) {
	ctx, finish := s.run.start(ctx, method,
		telemetry.SpanAttrPlanID, planID.String(),
		telemetry.SpanAttrActor, actor.String(),
	)
	defer func() { finish(err) }()

	plan, err := s.mutate(ctx, transition, planID, fn)
	if err != nil {
		return nil, err
	}
	s.run.transitioned(ctx, aggregatePlan, transition, planID.String(),
		zap.String("actor", actor.String()),
		zap.String("total_budget", plan.TotalBudget.String()),
	)
	out := ToPlanResponse(plan)
	return &out, nil
}

// mutate loads the plan under its lock, applies fn and saves with the version check.
// Events are published after the lock is released.
func (s *PlanService) mutate(ctx context.Context, op string, planID uuid.UUID, fn func(*budget.Plan) error) (*budget.Plan, error) {
	var plan *budget.Plan
	err := s.run.locked(ctx, aggregatePlan, lock.PlanKey(planID), func() error {
		p, err := s.plans.FindByID(ctx, planID)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := s.plans.SaveWithLock(ctx, p); err != nil {
			return err
		}
		plan = p
		return nil
	})
	if err != nil {
		s.run.rejected(ctx, aggregatePlan, op, planID.String(), err)
		return nil, err
	}
	s.run.publish(ctx, plan)
	return plan, nil
}
