package persistence

import (
	"slices"
	"strings"

	"github.com/healthbudget/backend/internal/domain/shared"
	"gorm.io/gorm/clause"
)

const defaultSortColumn = "created_at"

// sortColumns lists the columns a list endpoint may order by. Anything else,
// including injection attempts, falls back to newest first.
type sortColumns []string

var (
	planSortColumns      = sortColumns{"id", "created_at", "updated_at", "status", "total_budget", "facility_name"}
	executionSortColumns = sortColumns{"id", "created_at", "updated_at", "status", "total_receipts", "total_expenditures", "facility_name"}
)

// orderBy turns the filter's ordering into a quoted ORDER BY column
func (s sortColumns) orderBy(f shared.Filter) clause.OrderByColumn {
	col := strings.TrimSpace(f.OrderBy)
	if !slices.Contains(s, col) {
		col = defaultSortColumn
	}
	return clause.OrderByColumn{
		Column: clause.Column{Name: col},
		Desc:   !strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc"),
	}
}
