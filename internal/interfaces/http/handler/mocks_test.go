package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/reference"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/interfaces/http/dto"
	"github.com/healthbudget/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockPlanService struct {
	mock.Mock
}

func (m *mockPlanService) Create(ctx context.Context, req budgetapp.CreatePlanRequest) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, req)
	return planResult(args)
}

func (m *mockPlanService) GetByID(ctx context.Context, id uuid.UUID) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, id)
	return planResult(args)
}

func (m *mockPlanService) List(ctx context.Context, req budgetapp.ListRequest) (shared.Paginated[budgetapp.PlanResponse], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(shared.Paginated[budgetapp.PlanResponse]), args.Error(1)
}

func (m *mockPlanService) AddActivity(ctx context.Context, planID uuid.UUID, req budgetapp.ActivityRequest) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, req)
	return planResult(args)
}

func (m *mockPlanService) UpdateActivity(ctx context.Context, planID, activityID uuid.UUID, req budgetapp.ActivityRequest) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, activityID, req)
	return planResult(args)
}

func (m *mockPlanService) RemoveActivity(ctx context.Context, planID, activityID uuid.UUID) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, activityID)
	return planResult(args)
}

func (m *mockPlanService) Submit(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, actor)
	return planResult(args)
}

func (m *mockPlanService) Approve(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, actor)
	return planResult(args)
}

func (m *mockPlanService) Reject(ctx context.Context, planID, actor uuid.UUID, req budgetapp.RejectRequest) (*budgetapp.PlanResponse, error) {
	args := m.Called(ctx, planID, actor, req)
	return planResult(args)
}

func (m *mockPlanService) Delete(ctx context.Context, planID, actor uuid.UUID) error {
	return m.Called(ctx, planID, actor).Error(0)
}

func planResult(args mock.Arguments) (*budgetapp.PlanResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.PlanResponse), args.Error(1)
}

type mockExecutionService struct {
	mock.Mock
}

func (m *mockExecutionService) CreateFromPlan(ctx context.Context, planID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error) {
	args := m.Called(ctx, planID, actor)
	return executionResult(args)
}

func (m *mockExecutionService) GetTree(ctx context.Context, id uuid.UUID) (*budgetapp.ExecutionResponse, error) {
	args := m.Called(ctx, id)
	return executionResult(args)
}

func (m *mockExecutionService) GetBalance(ctx context.Context, id uuid.UUID) (*budgetapp.BalanceResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.BalanceResponse), args.Error(1)
}

func (m *mockExecutionService) List(ctx context.Context, req budgetapp.ListRequest) (shared.Paginated[budgetapp.ExecutionResponse], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(shared.Paginated[budgetapp.ExecutionResponse]), args.Error(1)
}

func (m *mockExecutionService) UpdateLeaf(ctx context.Context, executionID, itemID uuid.UUID, req budgetapp.UpdateLeafRequest) (*budgetapp.LeafUpdateResponse, error) {
	args := m.Called(ctx, executionID, itemID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.LeafUpdateResponse), args.Error(1)
}

func (m *mockExecutionService) Submit(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error) {
	args := m.Called(ctx, executionID, actor)
	return executionResult(args)
}

func (m *mockExecutionService) Approve(ctx context.Context, executionID, actor uuid.UUID) (*budgetapp.ExecutionResponse, error) {
	args := m.Called(ctx, executionID, actor)
	return executionResult(args)
}

func (m *mockExecutionService) Reject(ctx context.Context, executionID, actor uuid.UUID, req budgetapp.RejectRequest) (*budgetapp.ExecutionResponse, error) {
	args := m.Called(ctx, executionID, actor, req)
	return executionResult(args)
}

func executionResult(args mock.Arguments) (*budgetapp.ExecutionResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.ExecutionResponse), args.Error(1)
}

type mockTemplateService struct {
	mock.Mock
}

func (m *mockTemplateService) Get(ctx context.Context, programID uuid.UUID) (*budgetapp.TemplateResponse, error) {
	args := m.Called(ctx, programID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.TemplateResponse), args.Error(1)
}

func (m *mockTemplateService) Put(ctx context.Context, programID uuid.UUID, nodes []budget.TemplateNode) (*budgetapp.TemplateResponse, error) {
	args := m.Called(ctx, programID, nodes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*budgetapp.TemplateResponse), args.Error(1)
}

type mockReferenceService struct {
	mock.Mock
}

func (m *mockReferenceService) ListFacilities(ctx context.Context, districtID *uuid.UUID) ([]reference.Facility, error) {
	args := m.Called(ctx, districtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reference.Facility), args.Error(1)
}

func (m *mockReferenceService) ListPrograms(ctx context.Context) ([]reference.Program, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reference.Program), args.Error(1)
}

func (m *mockReferenceService) ListFiscalYears(ctx context.Context) ([]reference.FiscalYear, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reference.FiscalYear), args.Error(1)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// newTestEngine returns an engine carrying the request id middleware
func newTestEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

type testRequest struct {
	method string
	path   string
	body   any
	actor  string
}

func serve(t *testing.T, r *gin.Engine, tr testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	switch b := tr.body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(tr.method, tr.path, body)
	if tr.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tr.actor != "" {
		req.Header.Set(middleware.HeaderUserID, tr.actor)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// dataAs re-decodes the envelope data into out
func dataAs(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, out))
}

// ensure the mocks satisfy the handler dependencies
var (
	_ PlanService      = (*mockPlanService)(nil)
	_ ExecutionService = (*mockExecutionService)(nil)
	_ TemplateService  = (*mockTemplateService)(nil)
	_ ReferenceService = (*mockReferenceService)(nil)
)
