package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/shared"
)

// ExecutionTemplate is the ledger shape a program's executions are created from
type ExecutionTemplate struct {
	ID        uuid.UUID
	ProgramID uuid.UUID
	Nodes     []TemplateNode
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewExecutionTemplate validates nodes with the tree rules and builds a template
func NewExecutionTemplate(programID uuid.UUID, nodes []TemplateNode) (*ExecutionTemplate, error) {
	if programID == uuid.Nil {
		return nil, shared.NewValidationError("program id cannot be empty")
	}
	if err := ValidateTemplate(nodes); err != nil {
		return nil, err
	}
	now := time.Now()
	return &ExecutionTemplate{
		ID:        uuid.New(),
		ProgramID: programID,
		Nodes:     append([]TemplateNode(nil), nodes...),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Replace swaps the node list after validating it
func (t *ExecutionTemplate) Replace(nodes []TemplateNode) error {
	if err := ValidateTemplate(nodes); err != nil {
		return err
	}
	t.Nodes = append([]TemplateNode(nil), nodes...)
	t.UpdatedAt = time.Now()
	return nil
}

// DefaultExecutionTemplate is the standard health facility ledger used when a
// program has no stored template.
func DefaultExecutionTemplate() []TemplateNode {
	return []TemplateNode{
		{Code: "a", Title: "Receipts", IsCategory: true, SortOrder: 1},
		{Code: "a01", Title: "Other incomes", ParentCode: "a", SortOrder: 1},
		{Code: "a02", Title: "Transfers from central program", ParentCode: "a", SortOrder: 2},

		{Code: "b", Title: "Expenditures", IsCategory: true, SortOrder: 2},
		{Code: "b01", Title: "Human resources and bonuses", ParentCode: "b", IsCategory: true, SortOrder: 1},
		{Code: "b01-1", Title: "Laboratory technician", ParentCode: "b01", SortOrder: 1},
		{Code: "b01-2", Title: "Nurse", ParentCode: "b01", SortOrder: 2},
		{Code: "b02", Title: "Monitoring and evaluation", ParentCode: "b", IsCategory: true, SortOrder: 2},
		{Code: "b02-1", Title: "Supervision of community health workers", ParentCode: "b02", SortOrder: 1},
		{Code: "b02-2", Title: "Support group meetings", ParentCode: "b02", SortOrder: 2},
		{Code: "b03", Title: "Living support to clients", ParentCode: "b", IsCategory: true, SortOrder: 3},
		{Code: "b03-1", Title: "Sample transportation", ParentCode: "b03", SortOrder: 1},
		{Code: "b03-2", Title: "Home visits for lost to follow-up", ParentCode: "b03", SortOrder: 2},
		{Code: "b03-3", Title: "Transport and travel for surveys", ParentCode: "b03", SortOrder: 3},
		{Code: "b04", Title: "Overheads", ParentCode: "b", IsCategory: true, SortOrder: 4},
		{Code: "b04-1", Title: "Communication", ParentCode: "b04", SortOrder: 1},
		{Code: "b04-2", Title: "Office supplies", ParentCode: "b04", SortOrder: 2},
		{Code: "b04-3", Title: "Bank charges", ParentCode: "b04", SortOrder: 3},

		{Code: "c", Title: "Financial assets", IsCategory: true, SortOrder: 3},
		{Code: "c01", Title: "Cash at bank", ParentCode: "c", SortOrder: 1},
		{Code: "c02", Title: "Petty cash", ParentCode: "c", SortOrder: 2},
		{Code: "c03", Title: "Receivables", ParentCode: "c", SortOrder: 3},

		{Code: "d", Title: "Financial liabilities", IsCategory: true, SortOrder: 4},
		{Code: "d01", Title: "Salaries payable", ParentCode: "d", SortOrder: 1},
		{Code: "d02", Title: "Payables to suppliers", ParentCode: "d", SortOrder: 2},
	}
}
