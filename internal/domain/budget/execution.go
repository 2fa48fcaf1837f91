package budget

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Balance is the receipts/expenditures summary of an Execution
type Balance struct {
	TotalReceipts     decimal.Decimal `json:"total_receipts"`
	TotalExpenditures decimal.Decimal `json:"total_expenditures"`
	BalanceDifference decimal.Decimal `json:"balance_difference"`
	IsBalanced        bool            `json:"is_balanced"`
}

// Execution is the hierarchical ledger realized from one approved Plan.
// The item tree shape is fixed at creation; only leaf amounts change afterwards.
type Execution struct {
	shared.BaseAggregateRoot
	PlanID         uuid.UUID
	FacilityID     uuid.UUID
	ProgramID      uuid.UUID
	FiscalYearID   uuid.UUID
	FacilityName   string
	FacilityType   string
	DistrictName   string
	ProvinceName   string
	ProgramName    string
	FiscalYearName string
	Workflow
	TotalReceipts     decimal.Decimal
	TotalExpenditures decimal.Decimal
	BalanceDifference decimal.Decimal
	IsBalanced        bool
	Items             []ExecutionItem

	// items whose stored row is stale since the last save
	changed map[uuid.UUID]struct{}
}

// NewExecutionFromPlan creates a draft Execution for an approved plan and
// materializes its item tree from the template.
// A plan that is not approved is a conflict; a malformed template is a schema error.
func NewExecutionFromPlan(plan *Plan, template []TemplateNode) (*Execution, error) {
	if plan == nil {
		return nil, shared.NewValidationError("plan is required")
	}
	if plan.Status != StatusApproved {
		return nil, shared.NewConflictError(fmt.Sprintf("execution can only be created from an approved plan, plan is %s", plan.Status))
	}

	e := &Execution{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PlanID:            plan.ID,
		FacilityID:        plan.FacilityID,
		ProgramID:         plan.ProgramID,
		FiscalYearID:      plan.FiscalYearID,
		FacilityName:      plan.FacilityName,
		FacilityType:      plan.FacilityType,
		DistrictName:      plan.DistrictName,
		ProvinceName:      plan.ProvinceName,
		ProgramName:       plan.ProgramName,
		FiscalYearName:    plan.FiscalYearName,
		Workflow:          newWorkflow(),
	}
	if err := e.CreateTree(template); err != nil {
		return nil, err
	}
	e.AddDomainEvent(NewExecutionCreatedEvent(e))
	return e, nil
}

// CreateTree materializes the fixed hierarchy. It may only run once per execution,
// and validates the whole batch before any item is attached.
func (e *Execution) CreateTree(template []TemplateNode) error {
	if len(e.Items) > 0 {
		return shared.NewInvalidStateError("execution tree has already been created")
	}
	items, err := BuildTree(e.ID, template)
	if err != nil {
		return err
	}
	e.Items = items
	e.recalculateTotals()
	return nil
}

// UpdateLeafValues sets the quarterly amounts of a non-category item and
// recomputes the tree and the execution balance.
// Expenditure and liability amounts are stored as negative magnitudes;
// negative input for any other category is a validation error.
func (e *Execution) UpdateLeafValues(itemID uuid.UUID, values valueobject.Quarterly) (*ExecutionItem, error) {
	if err := e.requireEditable("execution"); err != nil {
		return nil, err
	}
	idx := e.itemIndex(itemID)
	if idx < 0 {
		return nil, shared.NewNotFoundError("execution item not found")
	}
	item := &e.Items[idx]
	if !item.IsLeaf() {
		return nil, shared.NewValidationError(fmt.Sprintf("item %s is a category and holds no editable amounts", item.ItemCode))
	}
	if err := values.RequireScale(valueobject.MoneyScale); err != nil {
		return nil, err
	}
	if !item.Category.StoredNegative() && values.HasNegative() {
		return nil, shared.NewValidationError(fmt.Sprintf("negative amounts are not allowed for %s item %s", item.Category, item.ItemCode))
	}

	v := values.Values()
	item.Values = valueobject.NewQuarterly(
		item.Category.Normalize(v[0]),
		item.Category.Normalize(v[1]),
		item.Category.Normalize(v[2]),
		item.Category.Normalize(v[3]),
	)
	item.UpdatedAt = time.Now()
	e.recalculateTotals()
	e.markChanged(idx)
	e.Touch()

	e.AddDomainEvent(NewExecutionLeafUpdatedEvent(e, item))
	return item, nil
}

// Submit moves a draft execution to submitted; the ledger must balance
func (e *Execution) Submit(actor uuid.UUID) error {
	if !e.Status.CanSubmit() {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot submit execution in %s status", e.Status))
	}
	if !e.IsBalanced {
		return shared.NewInvalidStateError(fmt.Sprintf("cannot submit unbalanced execution, balance difference is %s", e.BalanceDifference.StringFixed(valueobject.MoneyScale)))
	}
	if err := e.submit("execution", actor, time.Now()); err != nil {
		return err
	}
	e.Touch()
	e.AddDomainEvent(NewExecutionSubmittedEvent(e))
	return nil
}

// Approve approves a submitted execution
func (e *Execution) Approve(actor uuid.UUID) error {
	if err := e.approve("execution", actor, time.Now()); err != nil {
		return err
	}
	e.Touch()
	e.AddDomainEvent(NewExecutionApprovedEvent(e))
	return nil
}

// Reject rejects a submitted execution
func (e *Execution) Reject(actor uuid.UUID, comment string) error {
	if err := e.reject("execution", actor, comment, time.Now()); err != nil {
		return err
	}
	e.Touch()
	e.AddDomainEvent(NewExecutionRejectedEvent(e))
	return nil
}

// Balance returns the current derived balance fields
func (e *Execution) Balance() Balance {
	return Balance{
		TotalReceipts:     e.TotalReceipts,
		TotalExpenditures: e.TotalExpenditures,
		BalanceDifference: e.BalanceDifference,
		IsBalanced:        e.IsBalanced,
	}
}

// GetItem returns an item by id
func (e *Execution) GetItem(itemID uuid.UUID) *ExecutionItem {
	idx := e.itemIndex(itemID)
	if idx < 0 {
		return nil
	}
	return &e.Items[idx]
}

// GetItemByCode returns an item by its code
func (e *Execution) GetItemByCode(code string) *ExecutionItem {
	for i := range e.Items {
		if e.Items[i].ItemCode == code {
			return &e.Items[i]
		}
	}
	return nil
}

// CheckIntegrity verifies the loaded tree is still a well-formed forest
func (e *Execution) CheckIntegrity() error {
	return checkForest(e.Items)
}

// RecalculateTotals recomputes the tree roll-up and the balance fields.
// Calling it repeatedly without intervening writes yields identical totals.
func (e *Execution) RecalculateTotals() {
	e.recalculateTotals()
}

func (e *Execution) recalculateTotals() {
	rollUp(e.Items)

	receipts := decimal.Zero
	expenditures := decimal.Zero
	for i := range e.Items {
		item := &e.Items[i]
		if !item.IsLeaf() {
			continue
		}
		switch item.Category {
		case CategoryReceipts:
			receipts = receipts.Add(item.CumulativeBalance)
		case CategoryExpenditures:
			expenditures = expenditures.Add(item.CumulativeBalance.Abs())
		}
	}

	e.TotalReceipts = receipts
	e.TotalExpenditures = expenditures
	e.BalanceDifference = receipts.Sub(expenditures)
	e.IsBalanced = valueobject.IsZeroAtScale(e.BalanceDifference)
}

// markChanged flags the item at idx and every ancestor up to its root
func (e *Execution) markChanged(idx int) {
	if e.changed == nil {
		e.changed = make(map[uuid.UUID]struct{})
	}
	for idx >= 0 {
		item := &e.Items[idx]
		e.changed[item.ID] = struct{}{}
		if item.IsRoot() {
			return
		}
		idx = e.itemIndex(*item.ParentID)
	}
}

// ItemChanged reports whether the item's amounts changed since the last
// ClearChanges: an edited leaf or one of its ancestors
func (e *Execution) ItemChanged(id uuid.UUID) bool {
	_, ok := e.changed[id]
	return ok
}

// ChangedItemCount is the number of items waiting to be written back
func (e *Execution) ChangedItemCount() int {
	return len(e.changed)
}

// ClearChanges is called by the repository once changed items are stored
func (e *Execution) ClearChanges() {
	e.changed = nil
}

func (e *Execution) itemIndex(id uuid.UUID) int {
	for i := range e.Items {
		if e.Items[i].ID == id {
			return i
		}
	}
	return -1
}
