package budget

import (
	"fmt"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AccountCategory is the accounting role of an execution item
type AccountCategory string

const (
	CategoryReceipts     AccountCategory = "receipts"
	CategoryExpenditures AccountCategory = "expenditures"
	CategoryAssets       AccountCategory = "assets"
	CategoryLiabilities  AccountCategory = "liabilities"
)

// IsValid checks if the category is a known AccountCategory
func (c AccountCategory) IsValid() bool {
	switch c {
	case CategoryReceipts, CategoryExpenditures, CategoryAssets, CategoryLiabilities:
		return true
	}
	return false
}

// String returns the string representation of AccountCategory
func (c AccountCategory) String() string {
	return string(c)
}

// Prefix returns the item code prefix for the category
func (c AccountCategory) Prefix() byte {
	switch c {
	case CategoryReceipts:
		return 'a'
	case CategoryExpenditures:
		return 'b'
	case CategoryAssets:
		return 'c'
	case CategoryLiabilities:
		return 'd'
	}
	return 0
}

// StoredNegative reports whether amounts of this category are kept as negative magnitudes
func (c AccountCategory) StoredNegative() bool {
	return c == CategoryExpenditures || c == CategoryLiabilities
}

// FeedsBalance reports whether the category takes part in the receipts/expenditures balance.
// Assets and liabilities are tracked but do not affect balance_difference.
func (c AccountCategory) FeedsBalance() bool {
	return c == CategoryReceipts || c == CategoryExpenditures
}

// Normalize applies the category sign convention to an amount.
// Expenditures and liabilities are stored negative; other categories keep their sign.
func (c AccountCategory) Normalize(d decimal.Decimal) decimal.Decimal {
	if c.StoredNegative() {
		return d.Abs().Neg()
	}
	return d
}

// ClassifyPrefix maps the leading character of a root item code to its category
func ClassifyPrefix(code string) (AccountCategory, error) {
	if code == "" {
		return "", shared.NewSchemaError("item code cannot be empty")
	}
	switch code[0] {
	case 'a':
		return CategoryReceipts, nil
	case 'b':
		return CategoryExpenditures, nil
	case 'c':
		return CategoryAssets, nil
	case 'd':
		return CategoryLiabilities, nil
	}
	return "", shared.NewSchemaError(fmt.Sprintf("item code %q has unrecognized category prefix %q", code, code[0]))
}

// isCategoryLetter reports whether b is one of the classification prefixes
func isCategoryLetter(b byte) bool {
	switch b {
	case 'a', 'b', 'c', 'd':
		return true
	}
	return false
}
