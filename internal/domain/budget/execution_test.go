package budget

import (
	"testing"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleTemplate() []TemplateNode {
	return []TemplateNode{
		{Code: "a", Title: "Receipts", IsCategory: true, SortOrder: 1},
		{Code: "a01", Title: "Transfers", ParentCode: "a", SortOrder: 1},
		{Code: "b", Title: "Expenditures", IsCategory: true, SortOrder: 2},
		{Code: "b01", Title: "Salaries", ParentCode: "b", SortOrder: 1},
		{Code: "c", Title: "Assets", IsCategory: true, SortOrder: 3},
		{Code: "c01", Title: "Cash at bank", ParentCode: "c", SortOrder: 1},
		{Code: "d", Title: "Liabilities", IsCategory: true, SortOrder: 4},
		{Code: "d01", Title: "Payables", ParentCode: "d", SortOrder: 1},
	}
}

func createTestExecution(t *testing.T, template []TemplateNode) *Execution {
	exec, err := NewExecutionFromPlan(approvedPlan(t), template)
	require.NoError(t, err)
	return exec
}

func mustItem(t *testing.T, e *Execution, code string) *ExecutionItem {
	item := e.GetItemByCode(code)
	require.NotNil(t, item, "item %s", code)
	return item
}

func setLeaf(t *testing.T, e *Execution, code string, q1, q2, q3, q4 int64) {
	_, err := e.UpdateLeafValues(mustItem(t, e, code).ID, valueobject.NewQuarterlyFromInts(q1, q2, q3, q4))
	require.NoError(t, err)
}

func TestNewExecutionFromPlan(t *testing.T) {
	t.Run("copies plan metadata and builds tree", func(t *testing.T) {
		plan := approvedPlan(t)
		exec, err := NewExecutionFromPlan(plan, simpleTemplate())
		require.NoError(t, err)

		assert.Equal(t, plan.ID, exec.PlanID)
		assert.Equal(t, plan.FacilityName, exec.FacilityName)
		assert.Equal(t, StatusDraft, exec.Status)
		assert.Len(t, exec.Items, 8)
		assert.True(t, exec.IsBalanced, "an empty ledger is balanced")
		for _, item := range exec.Items {
			assert.Equal(t, exec.ID, item.ExecutionID)
		}
	})

	t.Run("plan must be approved", func(t *testing.T) {
		for _, status := range []WorkflowStatus{StatusDraft, StatusSubmitted, StatusRejected} {
			plan := createTestPlan(t)
			plan.Status = status
			_, err := NewExecutionFromPlan(plan, simpleTemplate())
			assert.True(t, shared.IsKind(err, shared.CodeConflict), "status %s", status)
		}
	})

	t.Run("malformed template is a schema error", func(t *testing.T) {
		tpl := simpleTemplate()
		tpl[1].ParentCode = "zz"
		_, err := NewExecutionFromPlan(approvedPlan(t), tpl)
		assert.True(t, shared.IsKind(err, shared.CodeSchema))
	})

	t.Run("tree is created once", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		err := exec.CreateTree(simpleTemplate())
		assert.True(t, shared.IsKind(err, shared.CodeInvalidState))
	})
}

func TestExecution_BalanceScenario(t *testing.T) {
	exec := createTestExecution(t, simpleTemplate())

	setLeaf(t, exec, "a01", 500, 0, 0, 0)
	setLeaf(t, exec, "b01", -500, 0, 0, 0)

	assert.True(t, mustItem(t, exec, "a01").CumulativeBalance.Equal(decimal.NewFromInt(500)))
	assert.True(t, mustItem(t, exec, "b01").CumulativeBalance.Equal(decimal.NewFromInt(-500)))
	assert.True(t, exec.TotalReceipts.Equal(decimal.NewFromInt(500)))
	assert.True(t, exec.TotalExpenditures.Equal(decimal.NewFromInt(500)))
	assert.True(t, exec.BalanceDifference.IsZero())
	assert.True(t, exec.IsBalanced)
}

func TestExecution_UpdateLeafValues(t *testing.T) {
	t.Run("category node is a validation error and totals do not change", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		setLeaf(t, exec, "a01", 100, 0, 0, 0)
		before := exec.Balance()

		_, err := exec.UpdateLeafValues(mustItem(t, exec, "a").ID, valueobject.NewQuarterlyFromInts(1, 1, 1, 1))
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.CodeValidation))
		assert.Equal(t, before, exec.Balance())
		assert.True(t, mustItem(t, exec, "a").CumulativeBalance.Equal(decimal.NewFromInt(100)))
	})

	t.Run("requires draft execution", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		require.NoError(t, exec.Submit(uuid.New()))

		_, err := exec.UpdateLeafValues(mustItem(t, exec, "a01").ID, valueobject.NewQuarterlyFromInts(1, 0, 0, 0))
		assert.True(t, shared.IsKind(err, shared.CodeInvalidState))
	})

	t.Run("unknown item", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		_, err := exec.UpdateLeafValues(uuid.New(), valueobject.ZeroQuarterly())
		assert.True(t, shared.IsKind(err, shared.CodeNotFound))
	})

	t.Run("negative receipts rejected", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		_, err := exec.UpdateLeafValues(mustItem(t, exec, "a01").ID, valueobject.NewQuarterlyFromInts(-1, 0, 0, 0))
		assert.True(t, shared.IsKind(err, shared.CodeValidation))

		_, err = exec.UpdateLeafValues(mustItem(t, exec, "c01").ID, valueobject.NewQuarterlyFromInts(0, -1, 0, 0))
		assert.True(t, shared.IsKind(err, shared.CodeValidation))
	})

	t.Run("expenditures and liabilities stored negative", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		setLeaf(t, exec, "b01", 100, 50, 0, 0)
		setLeaf(t, exec, "d01", 0, 0, -30, 0)

		assert.True(t, mustItem(t, exec, "b01").CumulativeBalance.Equal(decimal.NewFromInt(-150)))
		assert.True(t, mustItem(t, exec, "d01").CumulativeBalance.Equal(decimal.NewFromInt(-30)))
		assert.True(t, exec.TotalExpenditures.Equal(decimal.NewFromInt(150)))
	})

	t.Run("emits leaf updated event with balance", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		exec.ClearDomainEvents()
		setLeaf(t, exec, "a01", 10, 0, 0, 0)

		events := exec.GetDomainEvents()
		require.Len(t, events, 1)
		ev, ok := events[0].(*ExecutionLeafUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, "a01", ev.ItemCode)
		assert.True(t, ev.TotalReceipts.Equal(decimal.NewFromInt(10)))
		assert.False(t, ev.IsBalanced)
	})
}

func TestExecution_AssetsAndLiabilitiesDoNotFeedBalance(t *testing.T) {
	exec := createTestExecution(t, simpleTemplate())
	setLeaf(t, exec, "a01", 200, 0, 0, 0)
	setLeaf(t, exec, "b01", 200, 0, 0, 0)
	setLeaf(t, exec, "c01", 999, 0, 0, 0)
	setLeaf(t, exec, "d01", 123, 0, 0, 0)

	assert.True(t, exec.TotalReceipts.Equal(decimal.NewFromInt(200)))
	assert.True(t, exec.TotalExpenditures.Equal(decimal.NewFromInt(200)))
	assert.True(t, exec.IsBalanced)
}

func TestExecution_CumulativeRollUp(t *testing.T) {
	exec := createTestExecution(t, DefaultExecutionTemplate())

	setLeaf(t, exec, "b01-1", 100, 100, 0, 0)
	setLeaf(t, exec, "b01-2", 50, 0, 0, 0)
	setLeaf(t, exec, "b02-1", 0, 0, 25, 0)

	b01 := mustItem(t, exec, "b01")
	assert.True(t, b01.CumulativeBalance.Equal(decimal.NewFromInt(-250)))
	assert.True(t, b01.Values.Q1().Equal(decimal.NewFromInt(-150)))

	b := mustItem(t, exec, "b")
	assert.True(t, b.CumulativeBalance.Equal(decimal.NewFromInt(-275)))

	// a category's balance is the sum of its direct children
	for _, item := range exec.Items {
		if !item.IsCategory {
			assert.True(t, item.CumulativeBalance.Equal(item.Values.Total()), item.ItemCode)
			continue
		}
		sum := decimal.Zero
		for _, child := range exec.Items {
			if child.ParentID != nil && *child.ParentID == item.ID {
				sum = sum.Add(child.CumulativeBalance)
			}
		}
		assert.True(t, item.CumulativeBalance.Equal(sum), item.ItemCode)
	}

	assert.True(t, exec.TotalExpenditures.Equal(decimal.NewFromInt(275)))
	assert.True(t, exec.BalanceDifference.Equal(decimal.NewFromInt(-275)))
	assert.False(t, exec.IsBalanced)
	assert.NoError(t, exec.CheckIntegrity())
}

func TestExecution_DerivedValueLaw(t *testing.T) {
	exec := createTestExecution(t, DefaultExecutionTemplate())
	setLeaf(t, exec, "a01", 1000, 0, 0, 0)
	setLeaf(t, exec, "a02", 0, 250, 0, 0)
	setLeaf(t, exec, "b04-1", 300, 0, 0, 0)

	assert.True(t, exec.BalanceDifference.Equal(exec.TotalReceipts.Sub(exec.TotalExpenditures)))
	assert.Equal(t, exec.BalanceDifference.IsZero(), exec.IsBalanced)

	before := exec.Balance()
	exec.RecalculateTotals()
	exec.RecalculateTotals()
	assert.Equal(t, before, exec.Balance())
}

func TestExecution_RejectsSubCentAmounts(t *testing.T) {
	exec := createTestExecution(t, simpleTemplate())
	setLeaf(t, exec, "b01", 100, 0, 0, 0)
	exec.ClearChanges()
	before := exec.Balance()

	q := decimal.RequireFromString("25.004")
	_, err := exec.UpdateLeafValues(mustItem(t, exec, "a01").ID, valueobject.NewQuarterly(q, q, q, q))
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.CodeValidation))
	assert.Contains(t, err.Error(), "decimal places")

	// nothing was applied
	assert.True(t, mustItem(t, exec, "a01").CumulativeBalance.IsZero())
	assert.Equal(t, before, exec.Balance())
	assert.Zero(t, exec.ChangedItemCount())

	// two places are accepted and the balance law holds exactly
	c := decimal.RequireFromString("25.01")
	_, err = exec.UpdateLeafValues(mustItem(t, exec, "a01").ID, valueobject.NewQuarterly(c, c, c, decimal.RequireFromString("25.00")))
	require.NoError(t, err)
	assert.True(t, exec.TotalReceipts.Equal(decimal.RequireFromString("100.03")))
	assert.True(t, exec.BalanceDifference.Equal(decimal.RequireFromString("0.03")))
	assert.False(t, exec.IsBalanced)
	assert.Equal(t, exec.BalanceDifference.IsZero(), exec.IsBalanced)
}

func TestExecution_ChangedItemsFollowTheEditedBranch(t *testing.T) {
	exec := createTestExecution(t, DefaultExecutionTemplate())
	assert.Zero(t, exec.ChangedItemCount())

	setLeaf(t, exec, "b04-1", 300, 0, 0, 0)

	leaf := mustItem(t, exec, "b04-1")
	assert.True(t, leaf.IsLeaf())
	assert.True(t, exec.ItemChanged(leaf.ID))
	for cur := leaf; !cur.IsRoot(); {
		parent := exec.itemIndex(*cur.ParentID)
		require.GreaterOrEqual(t, parent, 0)
		cur = &exec.Items[parent]
		assert.True(t, exec.ItemChanged(cur.ID), "ancestor %s", cur.ItemCode)
	}
	assert.False(t, exec.ItemChanged(mustItem(t, exec, "a01").ID))
	assert.False(t, exec.ItemChanged(mustItem(t, exec, "a").ID))

	exec.ClearChanges()
	assert.Zero(t, exec.ChangedItemCount())
}

func TestExecution_Workflow(t *testing.T) {
	t.Run("unbalanced execution cannot be submitted", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		setLeaf(t, exec, "a01", 500, 0, 0, 0)
		require.False(t, exec.IsBalanced)

		err := exec.Submit(uuid.New())
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.CodeInvalidState))
		assert.Equal(t, StatusDraft, exec.Status)
	})

	t.Run("balanced execution submits and is approved", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		setLeaf(t, exec, "a01", 500, 0, 0, 0)
		setLeaf(t, exec, "b01", 500, 0, 0, 0)

		require.NoError(t, exec.Submit(uuid.New()))
		assert.Equal(t, StatusSubmitted, exec.Status)
		require.NoError(t, exec.Approve(uuid.New()))
		assert.Equal(t, StatusApproved, exec.Status)
		assert.True(t, exec.Status.IsTerminal())
	})

	t.Run("reject requires submitted", func(t *testing.T) {
		exec := createTestExecution(t, simpleTemplate())
		assert.True(t, shared.IsKind(exec.Reject(uuid.New(), "no"), shared.CodeInvalidState))

		require.NoError(t, exec.Submit(uuid.New()))
		require.NoError(t, exec.Reject(uuid.New(), "wrong bank balance"))
		assert.Equal(t, StatusRejected, exec.Status)
		assert.True(t, shared.IsKind(exec.Approve(uuid.New()), shared.CodeInvalidState))
	})
}
