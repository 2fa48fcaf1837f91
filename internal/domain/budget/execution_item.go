package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ExecutionItem is one node (category or leaf) in an execution's ledger tree
type ExecutionItem struct {
	ID                uuid.UUID
	ExecutionID       uuid.UUID
	ItemCode          string
	Title             string
	ParentID          *uuid.UUID
	IsCategory        bool
	IndentLevel       int
	SortOrder         int
	Category          AccountCategory
	Values            valueobject.Quarterly
	CumulativeBalance decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsRoot returns true if the item has no parent
func (i *ExecutionItem) IsRoot() bool {
	return i.ParentID == nil
}

// IsLeaf returns true for items that carry editable amounts
func (i *ExecutionItem) IsLeaf() bool {
	return !i.IsCategory
}

// FeedsBalance reports whether the item contributes to receipts or expenditures
func (i *ExecutionItem) FeedsBalance() bool {
	return !i.IsCategory && i.Category.FeedsBalance()
}
