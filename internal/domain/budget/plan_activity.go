package budget

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// PlanActivity is one budgeted line item under a Plan
type PlanActivity struct {
	ID           uuid.UUID
	PlanID       uuid.UUID
	Category     string
	ActivityType string
	Description  string
	Frequency    int
	UnitCost     decimal.Decimal
	Counts       [4]int
	Amounts      valueobject.Quarterly
	TotalBudget  decimal.Decimal
	SortOrder    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActivityInput carries the caller-editable fields of a PlanActivity
type ActivityInput struct {
	Category     string
	ActivityType string
	Description  string
	Frequency    int
	UnitCost     decimal.Decimal
	Counts       [4]int
	Amounts      valueobject.Quarterly
}

// Validate checks ranges and required fields
func (in ActivityInput) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return shared.NewValidationError("activity category cannot be empty")
	}
	if len(in.Category) > 200 || len(in.ActivityType) > 200 {
		return shared.NewValidationError("activity category and type cannot exceed 200 characters")
	}
	if in.Frequency < 0 {
		return shared.NewValidationError("activity frequency must not be negative")
	}
	if in.UnitCost.IsNegative() {
		return shared.NewValidationError("activity unit cost must not be negative")
	}
	if !valueobject.FitsScale(in.UnitCost, valueobject.MoneyScale) {
		return shared.NewValidationError(fmt.Sprintf("activity unit cost %s has more than %d decimal places", in.UnitCost, valueobject.MoneyScale))
	}
	for i, c := range in.Counts {
		if c < 0 {
			return shared.NewValidationError(fmt.Sprintf("quarter %d count must not be negative", i+1))
		}
	}
	if err := in.Amounts.RequireNonNegative(); err != nil {
		return err
	}
	return in.Amounts.RequireScale(valueobject.MoneyScale)
}

func newPlanActivity(planID uuid.UUID, in ActivityInput, sortOrder int) *PlanActivity {
	now := time.Now()
	a := &PlanActivity{
		ID:        uuid.New(),
		PlanID:    planID,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a.apply(in)
	return a
}

func (a *PlanActivity) apply(in ActivityInput) {
	a.Category = strings.TrimSpace(in.Category)
	a.ActivityType = strings.TrimSpace(in.ActivityType)
	a.Description = in.Description
	a.Frequency = in.Frequency
	a.UnitCost = in.UnitCost
	a.Counts = in.Counts
	a.Amounts = in.Amounts
	a.recalculateTotal()
}

// recalculateTotal keeps TotalBudget equal to the sum of the quarter amounts
func (a *PlanActivity) recalculateTotal() {
	a.TotalBudget = a.Amounts.Total()
}
