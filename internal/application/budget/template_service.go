package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TemplateService manages per-program execution templates
type TemplateService struct {
	templates budget.TemplateRepository
	run       *runner
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(templates budget.TemplateRepository, rt Runtime) *TemplateService {
	return &TemplateService{
		templates: templates,
		run:       newRunner("TemplateService", rt),
	}
}

// Get returns the program's stored template, or the default ledger flagged as such
func (s *TemplateService) Get(ctx context.Context, programID uuid.UUID) (*TemplateResponse, error) {
	tpl, err := s.templates.FindByProgramID(ctx, programID)
	if shared.IsKind(err, shared.CodeNotFound) {
		return &TemplateResponse{
			ProgramID: programID,
			IsDefault: true,
			Nodes:     budget.DefaultExecutionTemplate(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return toTemplateResponse(tpl), nil
}

// Put validates nodes with the tree rules and stores them as the program's template.
// Existing executions keep the tree they were created with.
func (s *TemplateService) Put(ctx context.Context, programID uuid.UUID, nodes []budget.TemplateNode) (resp *TemplateResponse, err error) {
	ctx, finish := s.run.start(ctx, "Put", telemetry.SpanAttrProgramID, programID.String())
	defer func() { finish(err) }()

	tpl, err := s.templates.FindByProgramID(ctx, programID)
	switch {
	case shared.IsKind(err, shared.CodeNotFound):
		tpl, err = budget.NewExecutionTemplate(programID, nodes)
	case err == nil:
		err = tpl.Replace(nodes)
	}
	if err == nil {
		err = s.templates.Save(ctx, tpl)
	}
	if err != nil {
		s.run.rejected(ctx, "template", "put", programID.String(), err)
		return nil, err
	}

	logger.L(ctx).Info("execution template stored",
		zap.String("program_id", programID.String()),
		zap.Int("nodes", len(tpl.Nodes)),
	)
	return toTemplateResponse(tpl), nil
}

func toTemplateResponse(tpl *budget.ExecutionTemplate) *TemplateResponse {
	updated := tpl.UpdatedAt
	return &TemplateResponse{
		ProgramID: tpl.ProgramID,
		Nodes:     tpl.Nodes,
		UpdatedAt: &updated,
	}
}
