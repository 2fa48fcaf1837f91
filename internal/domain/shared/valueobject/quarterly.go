package valueobject

import (
	"fmt"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places monetary values are compared at
const MoneyScale int32 = 2

// Quarter identifies one quarter of a fiscal year
type Quarter int

const (
	Q1 Quarter = iota + 1
	Q2
	Q3
	Q4
)

// Quarterly is a value object holding four quarter amounts.
// It is immutable - all operations return new Quarterly instances.
type Quarterly struct {
	q [4]decimal.Decimal
}

// NewQuarterly creates a Quarterly from four amounts
func NewQuarterly(q1, q2, q3, q4 decimal.Decimal) Quarterly {
	return Quarterly{q: [4]decimal.Decimal{q1, q2, q3, q4}}
}

// NewQuarterlyFromInts is a convenience for whole-unit amounts
func NewQuarterlyFromInts(q1, q2, q3, q4 int64) Quarterly {
	return NewQuarterly(
		decimal.NewFromInt(q1),
		decimal.NewFromInt(q2),
		decimal.NewFromInt(q3),
		decimal.NewFromInt(q4),
	)
}

// ParseQuarterly parses four decimal strings; a non-numeric value is a validation error
func ParseQuarterly(values [4]string) (Quarterly, error) {
	var out Quarterly
	for i, v := range values {
		if v == "" {
			out.q[i] = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return Quarterly{}, shared.NewValidationError(fmt.Sprintf("quarter %d value %q is not numeric", i+1, v))
		}
		out.q[i] = d
	}
	return out, nil
}

// ZeroQuarterly returns a Quarterly with all quarters zero
func ZeroQuarterly() Quarterly {
	return NewQuarterly(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
}

// Get returns the amount for one quarter
func (v Quarterly) Get(q Quarter) decimal.Decimal {
	if q < Q1 || q > Q4 {
		return decimal.Zero
	}
	return v.q[q-1]
}

// Q1 returns the first quarter amount
func (v Quarterly) Q1() decimal.Decimal { return v.q[0] }

// Q2 returns the second quarter amount
func (v Quarterly) Q2() decimal.Decimal { return v.q[1] }

// Q3 returns the third quarter amount
func (v Quarterly) Q3() decimal.Decimal { return v.q[2] }

// Q4 returns the fourth quarter amount
func (v Quarterly) Q4() decimal.Decimal { return v.q[3] }

// Values returns the four quarter amounts in order
func (v Quarterly) Values() [4]decimal.Decimal {
	return v.q
}

// Total returns q1+q2+q3+q4 with exact decimal arithmetic
func (v Quarterly) Total() decimal.Decimal {
	return v.q[0].Add(v.q[1]).Add(v.q[2]).Add(v.q[3])
}

// Add returns the quarter-wise sum
func (v Quarterly) Add(other Quarterly) Quarterly {
	var out Quarterly
	for i := range v.q {
		out.q[i] = v.q[i].Add(other.q[i])
	}
	return out
}

// HasNegative reports whether any quarter is below zero
func (v Quarterly) HasNegative() bool {
	for _, d := range v.q {
		if d.IsNegative() {
			return true
		}
	}
	return false
}

// HasPositive reports whether any quarter is above zero
func (v Quarterly) HasPositive() bool {
	for _, d := range v.q {
		if d.IsPositive() {
			return true
		}
	}
	return false
}

// RequireNonNegative fails with a validation error if any quarter is negative
func (v Quarterly) RequireNonNegative() error {
	for i, d := range v.q {
		if d.IsNegative() {
			return shared.NewValidationError(fmt.Sprintf("quarter %d amount must not be negative, got %s", i+1, d.String()))
		}
	}
	return nil
}

// RequireScale fails with a validation error if any quarter has more than
// places decimal digits. Stored amounts are DECIMAL(18,2), so anything finer
// would be rounded on write and drift from the computed totals.
func (v Quarterly) RequireScale(places int32) error {
	for i, d := range v.q {
		if !FitsScale(d, places) {
			return shared.NewValidationError(fmt.Sprintf("quarter %d amount %s has more than %d decimal places", i+1, d.String(), places))
		}
	}
	return nil
}

// Equal reports quarter-wise equality
func (v Quarterly) Equal(other Quarterly) bool {
	for i := range v.q {
		if !v.q[i].Equal(other.q[i]) {
			return false
		}
	}
	return true
}

// String returns a readable representation
func (v Quarterly) String() string {
	return fmt.Sprintf("[%s %s %s %s]", v.q[0], v.q[1], v.q[2], v.q[3])
}

// FitsScale reports whether d has no significant digits beyond places
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// IsZeroAtScale reports whether d rounds to zero at MoneyScale decimal places
func IsZeroAtScale(d decimal.Decimal) bool {
	return d.Round(MoneyScale).IsZero()
}
