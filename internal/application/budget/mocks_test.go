package budget

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// MockPlanRepository is a mock implementation of budget.PlanRepository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.Plan), args.Error(1)
}

func (m *MockPlanRepository) FindAll(ctx context.Context, filter budget.ListFilter) ([]budget.Plan, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]budget.Plan), args.Get(1).(int64), args.Error(2)
}

func (m *MockPlanRepository) ExistsForTuple(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (bool, error) {
	args := m.Called(ctx, facilityID, programID, fiscalYearID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPlanRepository) Save(ctx context.Context, plan *budget.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *MockPlanRepository) SaveWithLock(ctx context.Context, plan *budget.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *MockPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// MockExecutionRepository is a mock implementation of budget.ExecutionRepository
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Execution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.Execution), args.Error(1)
}

func (m *MockExecutionRepository) FindByPlanID(ctx context.Context, planID uuid.UUID) (*budget.Execution, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.Execution), args.Error(1)
}

func (m *MockExecutionRepository) FindAll(ctx context.Context, filter budget.ListFilter) ([]budget.Execution, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]budget.Execution), args.Get(1).(int64), args.Error(2)
}

func (m *MockExecutionRepository) ExistsByPlanID(ctx context.Context, planID uuid.UUID) (bool, error) {
	args := m.Called(ctx, planID)
	return args.Bool(0), args.Error(1)
}

func (m *MockExecutionRepository) Save(ctx context.Context, execution *budget.Execution) error {
	return m.Called(ctx, execution).Error(0)
}

func (m *MockExecutionRepository) SaveWithLock(ctx context.Context, execution *budget.Execution) error {
	return m.Called(ctx, execution).Error(0)
}

// MockTemplateRepository is a mock implementation of budget.TemplateRepository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) FindByProgramID(ctx context.Context, programID uuid.UUID) (*budget.ExecutionTemplate, error) {
	args := m.Called(ctx, programID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budget.ExecutionTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Save(ctx context.Context, template *budget.ExecutionTemplate) error {
	return m.Called(ctx, template).Error(0)
}

// MockReferenceDirectory is a mock implementation of budget.ReferenceDirectory
type MockReferenceDirectory struct {
	mock.Mock
}

func (m *MockReferenceDirectory) ResolvePlanContext(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (budget.PlanContext, error) {
	args := m.Called(ctx, facilityID, programID, fiscalYearID)
	return args.Get(0).(budget.PlanContext), args.Error(1)
}

// recordingPublisher collects published event types
type recordingPublisher struct {
	mu     sync.Mutex
	types  []string
	failed error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range events {
		p.types = append(p.types, e.EventType())
	}
	return p.failed
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.types...)
}

// recordingMetrics counts calls by name
type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: make(map[string]int)}
}

func (m *recordingMetrics) inc(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
}

func (m *recordingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func (m *recordingMetrics) RecordPlanCreated(context.Context, string) { m.inc("plan_created") }
func (m *recordingMetrics) RecordExecutionCreated(context.Context, string) {
	m.inc("execution_created")
}
func (m *recordingMetrics) RecordTransition(_ context.Context, aggregate, transition string) {
	m.inc(aggregate + "." + transition)
}
func (m *recordingMetrics) RecordLeafUpdate(context.Context) { m.inc("leaf_update") }
func (m *recordingMetrics) RecordRejection(_ context.Context, aggregate, code string) {
	m.inc("rejected." + aggregate + "." + code)
}
func (m *recordingMetrics) RecordLockWait(_ context.Context, aggregate, outcome string, _ time.Duration) {
	m.inc("lock." + aggregate + "." + outcome)
}
func (m *recordingMetrics) RecordOperation(_ context.Context, operation string, _ time.Duration, failed bool) {
	if failed {
		m.inc("op_failed." + operation)
		return
	}
	m.inc("op." + operation)
}

func testPlanContext() budget.PlanContext {
	return budget.PlanContext{
		FacilityID:     uuid.New(),
		ProgramID:      uuid.New(),
		FiscalYearID:   uuid.New(),
		FacilityName:   "Kigali District Hospital",
		FacilityType:   "hospital",
		DistrictName:   "Nyarugenge",
		ProvinceName:   "Kigali City",
		ProgramName:    "HIV",
		FiscalYearName: "2024-2025",
	}
}
