package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newExecutionEngine(svc *mockExecutionService) *gin.Engine {
	h := NewExecutionHandler(svc)
	r := newTestEngine()
	r.POST("/plans/:id/execution", h.CreateFromPlan)
	r.GET("/executions", h.List)
	r.GET("/executions/:id", h.GetTree)
	r.GET("/executions/:id/balance", h.GetBalance)
	r.PUT("/executions/:id/items/:itemId", h.UpdateLeaf)
	r.POST("/executions/:id/submit", h.Submit)
	r.POST("/executions/:id/approve", h.Approve)
	r.POST("/executions/:id/reject", h.Reject)
	return r
}

func sampleExecution(status budget.WorkflowStatus) *budgetapp.ExecutionResponse {
	e := &budgetapp.ExecutionResponse{ID: uuid.New(), PlanID: uuid.New()}
	e.Status = status
	e.Balance = budget.Balance{
		TotalReceipts:     decimal.NewFromInt(1000),
		TotalExpenditures: decimal.NewFromInt(1000),
		BalanceDifference: decimal.Zero,
		IsBalanced:        true,
	}
	return e
}

func TestExecutionHandler_CreateFromPlan(t *testing.T) {
	planID, actor := uuid.New(), uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := new(mockExecutionService)
		execution := sampleExecution(budget.StatusDraft)
		execution.Items = []budgetapp.ExecutionItemResponse{
			{ItemCode: "a", IsCategory: true, Category: "receipts"},
			{ItemCode: "a01", Category: "receipts", IndentLevel: 1},
		}
		svc.On("CreateFromPlan", mock.Anything, planID, actor).Return(execution, nil)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/plans/" + planID.String() + "/execution", actor: actor.String()})

		require.Equal(t, http.StatusCreated, w.Code)
		var got budgetapp.ExecutionResponse
		dataAs(t, w, &got)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "a01", got.Items[1].ItemCode)
	})

	t.Run("plan not approved", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("CreateFromPlan", mock.Anything, planID, actor).
			Return(nil, shared.NewConflictError("plan must be approved before an execution is created"))

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/plans/" + planID.String() + "/execution", actor: actor.String()})

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("broken template", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("CreateFromPlan", mock.Anything, planID, actor).
			Return(nil, shared.NewSchemaError("item code b01 references unknown parent x"))

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/plans/" + planID.String() + "/execution", actor: actor.String()})

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, shared.CodeSchema, decode(t, w).Error.Code)
	})

	t.Run("lock unavailable", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("CreateFromPlan", mock.Anything, planID, actor).Return(nil, shared.ErrLockUnavailable)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/plans/" + planID.String() + "/execution", actor: actor.String()})

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestExecutionHandler_Reads(t *testing.T) {
	t.Run("tree", func(t *testing.T) {
		svc := new(mockExecutionService)
		execution := sampleExecution(budget.StatusSubmitted)
		svc.On("GetTree", mock.Anything, execution.ID).Return(execution, nil)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodGet, path: "/executions/" + execution.ID.String()})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("balance", func(t *testing.T) {
		svc := new(mockExecutionService)
		id := uuid.New()
		svc.On("GetBalance", mock.Anything, id).Return(&budgetapp.BalanceResponse{
			ExecutionID: id,
			Status:      budget.StatusDraft,
			Balance: budget.Balance{
				TotalReceipts:     decimal.NewFromInt(1000),
				TotalExpenditures: decimal.NewFromInt(700),
				BalanceDifference: decimal.NewFromInt(300),
			},
		}, nil)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodGet, path: "/executions/" + id.String() + "/balance"})

		require.Equal(t, http.StatusOK, w.Code)
		var got budgetapp.BalanceResponse
		dataAs(t, w, &got)
		assert.False(t, got.IsBalanced)
		assert.True(t, got.BalanceDifference.Equal(decimal.NewFromInt(300)))
	})

	t.Run("list", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("List", mock.Anything, mock.Anything).
			Return(shared.NewPaginated([]budgetapp.ExecutionResponse{}, 0, 1, 20), nil)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodGet, path: "/executions?order_by=total_receipts&order_dir=asc"})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
	})
}

func TestExecutionHandler_UpdateLeaf(t *testing.T) {
	executionID, itemID := uuid.New(), uuid.New()
	path := "/executions/" + executionID.String() + "/items/" + itemID.String()

	t.Run("returns item and balance", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("UpdateLeaf", mock.Anything, executionID, itemID, mock.MatchedBy(func(req budgetapp.UpdateLeafRequest) bool {
			return req.Q1.Equal(decimal.NewFromInt(-100)) && req.Q4.Equal(decimal.RequireFromString("12.50"))
		})).Return(&budgetapp.LeafUpdateResponse{
			Item:    budgetapp.ExecutionItemResponse{ID: itemID, ItemCode: "b01", Total: decimal.RequireFromString("112.50")},
			Balance: budgetapp.BalanceResponse{Balance: sampleExecution(budget.StatusDraft).Balance},
		}, nil)

		w := serve(t, newExecutionEngine(svc), testRequest{
			method: http.MethodPut,
			path:   path,
			body:   map[string]string{"q1": "-100", "q2": "0", "q3": "0", "q4": "12.50"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		var got budgetapp.LeafUpdateResponse
		dataAs(t, w, &got)
		assert.Equal(t, "b01", got.Item.ItemCode)
		assert.True(t, got.Balance.IsBalanced)
		svc.AssertExpectations(t)
	})

	t.Run("category node", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("UpdateLeaf", mock.Anything, executionID, itemID, mock.Anything).
			Return(nil, shared.NewValidationError("item b is a category; only leaf items accept amounts"))

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPut, path: path, body: map[string]string{"q1": "1"}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("approved ledger", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("UpdateLeaf", mock.Anything, executionID, itemID, mock.Anything).
			Return(nil, shared.NewInvalidStateError("execution is approved"))

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPut, path: path, body: map[string]string{"q1": "1"}})

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("non numeric amount", func(t *testing.T) {
		svc := new(mockExecutionService)
		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPut, path: path, body: `{"q1":"ten"}`})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateLeaf", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent modification", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("UpdateLeaf", mock.Anything, executionID, itemID, mock.Anything).Return(nil, shared.ErrConcurrencyConflict)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPut, path: path, body: map[string]string{"q1": "1"}})

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestExecutionHandler_Workflow(t *testing.T) {
	executionID, actor := uuid.New(), uuid.New()

	t.Run("submit unbalanced", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("Submit", mock.Anything, executionID, actor).
			Return(nil, shared.NewValidationError("execution is not balanced: receipts 1000 expenditures 700"))

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/executions/" + executionID.String() + "/submit", actor: actor.String()})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeValidation, decode(t, w).Error.Code)
	})

	t.Run("approve", func(t *testing.T) {
		svc := new(mockExecutionService)
		svc.On("Approve", mock.Anything, executionID, actor).Return(sampleExecution(budget.StatusApproved), nil)

		w := serve(t, newExecutionEngine(svc), testRequest{method: http.MethodPost, path: "/executions/" + executionID.String() + "/approve", actor: actor.String()})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("reject comment too long", func(t *testing.T) {
		svc := new(mockExecutionService)
		long := make([]byte, 501)
		for i := range long {
			long[i] = 'x'
		}

		w := serve(t, newExecutionEngine(svc), testRequest{
			method: http.MethodPost,
			path:   "/executions/" + executionID.String() + "/reject",
			body:   map[string]string{"comment": string(long)},
			actor:  actor.String(),
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "comment", decode(t, w).Error.Details[0].Field)
	})
}
