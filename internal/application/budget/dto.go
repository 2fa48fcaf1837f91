package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ==================== Plan DTOs ====================

// CreatePlanRequest represents a request to create a plan for one facility,
// program and fiscal year
type CreatePlanRequest struct {
	FacilityID   uuid.UUID         `json:"facility_id" binding:"required"`
	ProgramID    uuid.UUID         `json:"program_id" binding:"required"`
	FiscalYearID uuid.UUID         `json:"fiscal_year_id" binding:"required"`
	Activities   []ActivityRequest `json:"activities" binding:"omitempty,dive"`
}

// ActivityRequest carries the editable fields of a plan activity
type ActivityRequest struct {
	Category     string          `json:"activity_category" binding:"required,max=200"`
	ActivityType string          `json:"type_of_activity" binding:"max=200"`
	Description  string          `json:"activity_description" binding:"max=1000"`
	Frequency    int             `json:"frequency" binding:"min=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CountQ1      int             `json:"count_q1" binding:"min=0"`
	CountQ2      int             `json:"count_q2" binding:"min=0"`
	CountQ3      int             `json:"count_q3" binding:"min=0"`
	CountQ4      int             `json:"count_q4" binding:"min=0"`
	AmountQ1     decimal.Decimal `json:"amount_q1"`
	AmountQ2     decimal.Decimal `json:"amount_q2"`
	AmountQ3     decimal.Decimal `json:"amount_q3"`
	AmountQ4     decimal.Decimal `json:"amount_q4"`
}

// ToInput converts the request into the domain input
func (r ActivityRequest) ToInput() budget.ActivityInput {
	return budget.ActivityInput{
		Category:     r.Category,
		ActivityType: r.ActivityType,
		Description:  r.Description,
		Frequency:    r.Frequency,
		UnitCost:     r.UnitCost,
		Counts:       [4]int{r.CountQ1, r.CountQ2, r.CountQ3, r.CountQ4},
		Amounts:      valueobject.NewQuarterly(r.AmountQ1, r.AmountQ2, r.AmountQ3, r.AmountQ4),
	}
}

// RejectRequest carries the optional rejection comment
type RejectRequest struct {
	Comment string `json:"comment" binding:"max=500"`
}

// ListRequest holds the query parameters shared by plan and execution listings
type ListRequest struct {
	FacilityID   string `form:"facility_id" binding:"omitempty,uuid"`
	ProgramID    string `form:"program_id" binding:"omitempty,uuid"`
	FiscalYearID string `form:"fiscal_year_id" binding:"omitempty,uuid"`
	Status       string `form:"status" binding:"omitempty,oneof=draft submitted approved rejected"`
	Search       string `form:"search" binding:"max=100"`
	Page         int    `form:"page" binding:"min=0"`
	PageSize     int    `form:"page_size" binding:"min=0,max=100"`
	OrderBy      string `form:"order_by" binding:"omitempty,oneof=created_at updated_at total_budget total_receipts status"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the request into a normalized repository filter
func (r ListRequest) ToFilter() budget.ListFilter {
	base := shared.DefaultFilter()
	base.Page = r.Page
	base.PageSize = r.PageSize
	base.Search = r.Search
	if r.OrderBy != "" {
		base.OrderBy = r.OrderBy
	}
	if r.OrderDir != "" {
		base.OrderDir = r.OrderDir
	}
	filter := budget.ListFilter{
		Filter:       base.Normalize(),
		FacilityID:   optionalID(r.FacilityID),
		ProgramID:    optionalID(r.ProgramID),
		FiscalYearID: optionalID(r.FiscalYearID),
	}
	if r.Status != "" {
		status := budget.WorkflowStatus(r.Status)
		filter.Status = &status
	}
	return filter
}

// optionalID parses an already validated query id; blank or malformed yields nil
func optionalID(raw string) *uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// PlanResponse represents a plan in API responses.
// Activities are omitted from list results.
type PlanResponse struct {
	ID             uuid.UUID       `json:"id"`
	FacilityID     uuid.UUID       `json:"facility_id"`
	ProgramID      uuid.UUID       `json:"program_id"`
	FiscalYearID   uuid.UUID       `json:"fiscal_year_id"`
	FacilityName   string          `json:"facility_name"`
	FacilityType   string          `json:"facility_type"`
	DistrictName   string          `json:"district_name"`
	ProvinceName   string          `json:"province_name"`
	ProgramName    string          `json:"program_name"`
	FiscalYearName string          `json:"fiscal_year_name"`
	TotalBudget    decimal.Decimal `json:"total_budget"`
	budget.Workflow
	Activities []ActivityResponse `json:"activities,omitempty"`
	Version    int                `json:"version"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// ActivityResponse represents a plan activity in API responses
type ActivityResponse struct {
	ID           uuid.UUID       `json:"id"`
	PlanID       uuid.UUID       `json:"plan_id"`
	Category     string          `json:"activity_category"`
	ActivityType string          `json:"type_of_activity"`
	Description  string          `json:"activity_description"`
	Frequency    int             `json:"frequency"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CountQ1      int             `json:"count_q1"`
	CountQ2      int             `json:"count_q2"`
	CountQ3      int             `json:"count_q3"`
	CountQ4      int             `json:"count_q4"`
	AmountQ1     decimal.Decimal `json:"amount_q1"`
	AmountQ2     decimal.Decimal `json:"amount_q2"`
	AmountQ3     decimal.Decimal `json:"amount_q3"`
	AmountQ4     decimal.Decimal `json:"amount_q4"`
	TotalBudget  decimal.Decimal `json:"total_budget"`
	SortOrder    int             `json:"sort_order"`
}

// ToPlanResponse converts a plan with its activities
func ToPlanResponse(p *budget.Plan) PlanResponse {
	resp := toPlanHeader(p)
	resp.Activities = make([]ActivityResponse, len(p.Activities))
	for i := range p.Activities {
		resp.Activities[i] = ToActivityResponse(&p.Activities[i])
	}
	return resp
}

// ToPlanListResponses converts listed plans without their activities
func ToPlanListResponses(plans []budget.Plan) []PlanResponse {
	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = toPlanHeader(&plans[i])
	}
	return out
}

func toPlanHeader(p *budget.Plan) PlanResponse {
	return PlanResponse{
		ID:             p.ID,
		FacilityID:     p.FacilityID,
		ProgramID:      p.ProgramID,
		FiscalYearID:   p.FiscalYearID,
		FacilityName:   p.FacilityName,
		FacilityType:   p.FacilityType,
		DistrictName:   p.DistrictName,
		ProvinceName:   p.ProvinceName,
		ProgramName:    p.ProgramName,
		FiscalYearName: p.FiscalYearName,
		TotalBudget:    p.TotalBudget,
		Workflow:       p.Workflow,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToActivityResponse converts a plan activity
func ToActivityResponse(a *budget.PlanActivity) ActivityResponse {
	amounts := a.Amounts.Values()
	return ActivityResponse{
		ID:           a.ID,
		PlanID:       a.PlanID,
		Category:     a.Category,
		ActivityType: a.ActivityType,
		Description:  a.Description,
		Frequency:    a.Frequency,
		UnitCost:     a.UnitCost,
		CountQ1:      a.Counts[0],
		CountQ2:      a.Counts[1],
		CountQ3:      a.Counts[2],
		CountQ4:      a.Counts[3],
		AmountQ1:     amounts[0],
		AmountQ2:     amounts[1],
		AmountQ3:     amounts[2],
		AmountQ4:     amounts[3],
		TotalBudget:  a.TotalBudget,
		SortOrder:    a.SortOrder,
	}
}

// ==================== Execution DTOs ====================

// UpdateLeafRequest carries the four quarter amounts of a leaf item.
// Expenditure and liability amounts may be given with either sign.
type UpdateLeafRequest struct {
	Q1 decimal.Decimal `json:"q1"`
	Q2 decimal.Decimal `json:"q2"`
	Q3 decimal.Decimal `json:"q3"`
	Q4 decimal.Decimal `json:"q4"`
}

// Values returns the request amounts as a Quarterly
func (r UpdateLeafRequest) Values() valueobject.Quarterly {
	return valueobject.NewQuarterly(r.Q1, r.Q2, r.Q3, r.Q4)
}

// ExecutionResponse represents an execution. Items are in tree pre-order and
// omitted from list results.
type ExecutionResponse struct {
	ID             uuid.UUID `json:"id"`
	PlanID         uuid.UUID `json:"plan_id"`
	FacilityID     uuid.UUID `json:"facility_id"`
	ProgramID      uuid.UUID `json:"program_id"`
	FiscalYearID   uuid.UUID `json:"fiscal_year_id"`
	FacilityName   string    `json:"facility_name"`
	FacilityType   string    `json:"facility_type"`
	DistrictName   string    `json:"district_name"`
	ProvinceName   string    `json:"province_name"`
	ProgramName    string    `json:"program_name"`
	FiscalYearName string    `json:"fiscal_year_name"`
	budget.Workflow
	Balance   budget.Balance          `json:"balance"`
	Items     []ExecutionItemResponse `json:"items,omitempty"`
	Version   int                     `json:"version"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// ExecutionItemResponse represents one node of the execution tree
type ExecutionItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	ItemCode          string          `json:"item_code"`
	Title             string          `json:"title"`
	ParentID          *uuid.UUID      `json:"parent_id,omitempty"`
	IsCategory        bool            `json:"is_category"`
	IndentLevel       int             `json:"indent_level"`
	SortOrder         int             `json:"sort_order"`
	Category          string          `json:"category"`
	Q1                decimal.Decimal `json:"q1"`
	Q2                decimal.Decimal `json:"q2"`
	Q3                decimal.Decimal `json:"q3"`
	Q4                decimal.Decimal `json:"q4"`
	Total             decimal.Decimal `json:"total"`
	CumulativeBalance decimal.Decimal `json:"cumulative_balance"`
}

// BalanceResponse is the balance summary of one execution
type BalanceResponse struct {
	ExecutionID uuid.UUID             `json:"execution_id"`
	Status      budget.WorkflowStatus `json:"status"`
	budget.Balance
}

// LeafUpdateResponse returns the updated leaf and the new balance
type LeafUpdateResponse struct {
	Item    ExecutionItemResponse `json:"item"`
	Balance BalanceResponse       `json:"balance"`
}

// ToExecutionResponse converts an execution with its full tree
func ToExecutionResponse(e *budget.Execution) ExecutionResponse {
	resp := toExecutionHeader(e)
	ordered := budget.PreOrder(e.Items)
	resp.Items = make([]ExecutionItemResponse, len(ordered))
	for i := range ordered {
		resp.Items[i] = ToExecutionItemResponse(&ordered[i])
	}
	return resp
}

// ToExecutionListResponses converts listed executions without their items
func ToExecutionListResponses(executions []budget.Execution) []ExecutionResponse {
	out := make([]ExecutionResponse, len(executions))
	for i := range executions {
		out[i] = toExecutionHeader(&executions[i])
	}
	return out
}

func toExecutionHeader(e *budget.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:             e.ID,
		PlanID:         e.PlanID,
		FacilityID:     e.FacilityID,
		ProgramID:      e.ProgramID,
		FiscalYearID:   e.FiscalYearID,
		FacilityName:   e.FacilityName,
		FacilityType:   e.FacilityType,
		DistrictName:   e.DistrictName,
		ProvinceName:   e.ProvinceName,
		ProgramName:    e.ProgramName,
		FiscalYearName: e.FiscalYearName,
		Workflow:       e.Workflow,
		Balance:        e.Balance(),
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

// ToExecutionItemResponse converts one execution item
func ToExecutionItemResponse(item *budget.ExecutionItem) ExecutionItemResponse {
	v := item.Values.Values()
	return ExecutionItemResponse{
		ID:                item.ID,
		ItemCode:          item.ItemCode,
		Title:             item.Title,
		ParentID:          item.ParentID,
		IsCategory:        item.IsCategory,
		IndentLevel:       item.IndentLevel,
		SortOrder:         item.SortOrder,
		Category:          string(item.Category),
		Q1:                v[0],
		Q2:                v[1],
		Q3:                v[2],
		Q4:                v[3],
		Total:             item.Values.Total(),
		CumulativeBalance: item.CumulativeBalance,
	}
}

// ToBalanceResponse converts the balance of an execution
func ToBalanceResponse(e *budget.Execution) BalanceResponse {
	return BalanceResponse{
		ExecutionID: e.ID,
		Status:      e.Status,
		Balance:     e.Balance(),
	}
}

// ==================== Template DTOs ====================

// PutTemplateRequest replaces a program's execution template
type PutTemplateRequest struct {
	Nodes []TemplateNodeRequest `json:"nodes" binding:"required,min=1,dive"`
}

// TemplateNodeRequest is one node of a template
type TemplateNodeRequest struct {
	Code       string `json:"code" binding:"required,item_code"`
	Title      string `json:"title" binding:"required,max=200"`
	ParentCode string `json:"parent_code" binding:"omitempty,item_code"`
	IsCategory bool   `json:"is_category"`
	SortOrder  int    `json:"sort_order"`
}

// ToNodes converts the request nodes into domain template nodes
func (r PutTemplateRequest) ToNodes() []budget.TemplateNode {
	nodes := make([]budget.TemplateNode, len(r.Nodes))
	for i, n := range r.Nodes {
		nodes[i] = budget.TemplateNode{
			Code:       n.Code,
			Title:      n.Title,
			ParentCode: n.ParentCode,
			IsCategory: n.IsCategory,
			SortOrder:  n.SortOrder,
		}
	}
	return nodes
}

// TemplateResponse is a program's effective execution template
type TemplateResponse struct {
	ProgramID uuid.UUID             `json:"program_id"`
	IsDefault bool                  `json:"is_default"`
	Nodes     []budget.TemplateNode `json:"nodes"`
	UpdatedAt *time.Time            `json:"updated_at,omitempty"`
}
