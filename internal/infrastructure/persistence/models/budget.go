package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// WorkflowColumns maps the shared lifecycle fields of plans and executions.
type WorkflowColumns struct {
	Status           budget.WorkflowStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	SubmittedBy      *uuid.UUID            `gorm:"type:uuid"`
	SubmittedAt      *time.Time
	ApprovedBy       *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	RejectedBy       *uuid.UUID `gorm:"type:uuid"`
	RejectedAt       *time.Time
	RejectionComment string `gorm:"type:varchar(500)"`
}

func (c *WorkflowColumns) toDomain() budget.Workflow {
	return budget.Workflow{
		Status:           c.Status,
		SubmittedBy:      c.SubmittedBy,
		SubmittedAt:      c.SubmittedAt,
		ApprovedBy:       c.ApprovedBy,
		ApprovedAt:       c.ApprovedAt,
		RejectedBy:       c.RejectedBy,
		RejectedAt:       c.RejectedAt,
		RejectionComment: c.RejectionComment,
	}
}

func (c *WorkflowColumns) fromDomain(w budget.Workflow) {
	c.Status = w.Status
	c.SubmittedBy = w.SubmittedBy
	c.SubmittedAt = w.SubmittedAt
	c.ApprovedBy = w.ApprovedBy
	c.ApprovedAt = w.ApprovedAt
	c.RejectedBy = w.RejectedBy
	c.RejectedAt = w.RejectedAt
	c.RejectionComment = w.RejectionComment
}

// PlanModel is the persistence model for the Plan aggregate root.
type PlanModel struct {
	AggregateModel
	FacilityID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_plans_facility_program_year,priority:1"`
	ProgramID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_plans_facility_program_year,priority:2"`
	FiscalYearID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_plans_facility_program_year,priority:3"`
	FacilityName   string    `gorm:"type:varchar(200);not null"`
	FacilityType   string    `gorm:"type:varchar(20);not null"`
	DistrictName   string    `gorm:"type:varchar(100)"`
	ProvinceName   string    `gorm:"type:varchar(100)"`
	ProgramName    string    `gorm:"type:varchar(100)"`
	FiscalYearName string    `gorm:"type:varchar(20)"`
	WorkflowColumns
	TotalBudget decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	Activities  []PlanActivityModel `gorm:"foreignKey:PlanID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PlanModel) TableName() string {
	return "plans"
}

// ToDomain converts the persistence model to a domain Plan.
func (m *PlanModel) ToDomain() *budget.Plan {
	p := &budget.Plan{
		BaseAggregateRoot: m.root(),
		FacilityID:        m.FacilityID,
		ProgramID:         m.ProgramID,
		FiscalYearID:      m.FiscalYearID,
		FacilityName:      m.FacilityName,
		FacilityType:      m.FacilityType,
		DistrictName:      m.DistrictName,
		ProvinceName:      m.ProvinceName,
		ProgramName:       m.ProgramName,
		FiscalYearName:    m.FiscalYearName,
		Workflow:          m.WorkflowColumns.toDomain(),
		TotalBudget:       m.TotalBudget,
		Activities:        make([]budget.PlanActivity, len(m.Activities)),
	}
	for i := range m.Activities {
		p.Activities[i] = *m.Activities[i].ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Plan.
func (m *PlanModel) FromDomain(p *budget.Plan) {
	m.setRoot(p.BaseAggregateRoot)
	m.FacilityID = p.FacilityID
	m.ProgramID = p.ProgramID
	m.FiscalYearID = p.FiscalYearID
	m.FacilityName = p.FacilityName
	m.FacilityType = p.FacilityType
	m.DistrictName = p.DistrictName
	m.ProvinceName = p.ProvinceName
	m.ProgramName = p.ProgramName
	m.FiscalYearName = p.FiscalYearName
	m.WorkflowColumns.fromDomain(p.Workflow)
	m.TotalBudget = p.TotalBudget
	m.Activities = make([]PlanActivityModel, len(p.Activities))
	for i := range p.Activities {
		m.Activities[i] = *PlanActivityModelFromDomain(&p.Activities[i])
	}
}

// PlanModelFromDomain creates a new persistence model from a domain Plan.
func PlanModelFromDomain(p *budget.Plan) *PlanModel {
	m := &PlanModel{}
	m.FromDomain(p)
	return m
}

// PlanActivityModel is the persistence model for the PlanActivity entity.
type PlanActivityModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	PlanID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Category     string          `gorm:"type:varchar(200);not null"`
	ActivityType string          `gorm:"type:varchar(200)"`
	Description  string          `gorm:"type:text"`
	Frequency    int             `gorm:"not null;default:0"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	CountQ1      int             `gorm:"not null;default:0"`
	CountQ2      int             `gorm:"not null;default:0"`
	CountQ3      int             `gorm:"not null;default:0"`
	CountQ4      int             `gorm:"not null;default:0"`
	AmountQ1     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	AmountQ2     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	AmountQ3     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	AmountQ4     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TotalBudget  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	SortOrder    int             `gorm:"not null;default:0"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlanActivityModel) TableName() string {
	return "plan_activities"
}

// ToDomain converts the persistence model to a domain PlanActivity.
func (m *PlanActivityModel) ToDomain() *budget.PlanActivity {
	return &budget.PlanActivity{
		ID:           m.ID,
		PlanID:       m.PlanID,
		Category:     m.Category,
		ActivityType: m.ActivityType,
		Description:  m.Description,
		Frequency:    m.Frequency,
		UnitCost:     m.UnitCost,
		Counts:       [4]int{m.CountQ1, m.CountQ2, m.CountQ3, m.CountQ4},
		Amounts:      valueobject.NewQuarterly(m.AmountQ1, m.AmountQ2, m.AmountQ3, m.AmountQ4),
		TotalBudget:  m.TotalBudget,
		SortOrder:    m.SortOrder,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PlanActivity.
func (m *PlanActivityModel) FromDomain(a *budget.PlanActivity) {
	m.ID = a.ID
	m.PlanID = a.PlanID
	m.Category = a.Category
	m.ActivityType = a.ActivityType
	m.Description = a.Description
	m.Frequency = a.Frequency
	m.UnitCost = a.UnitCost
	m.CountQ1, m.CountQ2, m.CountQ3, m.CountQ4 = a.Counts[0], a.Counts[1], a.Counts[2], a.Counts[3]
	m.AmountQ1 = a.Amounts.Q1()
	m.AmountQ2 = a.Amounts.Q2()
	m.AmountQ3 = a.Amounts.Q3()
	m.AmountQ4 = a.Amounts.Q4()
	m.TotalBudget = a.TotalBudget
	m.SortOrder = a.SortOrder
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// PlanActivityModelFromDomain creates a new persistence model from a domain PlanActivity.
func PlanActivityModelFromDomain(a *budget.PlanActivity) *PlanActivityModel {
	m := &PlanActivityModel{}
	m.FromDomain(a)
	return m
}

// ExecutionModel is the persistence model for the Execution aggregate root.
type ExecutionModel struct {
	AggregateModel
	PlanID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_executions_plan"`
	FacilityID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ProgramID      uuid.UUID `gorm:"type:uuid;not null;index"`
	FiscalYearID   uuid.UUID `gorm:"type:uuid;not null;index"`
	FacilityName   string    `gorm:"type:varchar(200);not null"`
	FacilityType   string    `gorm:"type:varchar(20);not null"`
	DistrictName   string    `gorm:"type:varchar(100)"`
	ProvinceName   string    `gorm:"type:varchar(100)"`
	ProgramName    string    `gorm:"type:varchar(100)"`
	FiscalYearName string    `gorm:"type:varchar(20)"`
	WorkflowColumns
	TotalReceipts     decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalExpenditures decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	BalanceDifference decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	IsBalanced        bool                 `gorm:"not null;default:true"`
	Items             []ExecutionItemModel `gorm:"foreignKey:ExecutionID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (ExecutionModel) TableName() string {
	return "executions"
}

// ToDomain converts the persistence model to a domain Execution.
func (m *ExecutionModel) ToDomain() *budget.Execution {
	e := &budget.Execution{
		BaseAggregateRoot: m.root(),
		PlanID:            m.PlanID,
		FacilityID:        m.FacilityID,
		ProgramID:         m.ProgramID,
		FiscalYearID:      m.FiscalYearID,
		FacilityName:      m.FacilityName,
		FacilityType:      m.FacilityType,
		DistrictName:      m.DistrictName,
		ProvinceName:      m.ProvinceName,
		ProgramName:       m.ProgramName,
		FiscalYearName:    m.FiscalYearName,
		Workflow:          m.WorkflowColumns.toDomain(),
		TotalReceipts:     m.TotalReceipts,
		TotalExpenditures: m.TotalExpenditures,
		BalanceDifference: m.BalanceDifference,
		IsBalanced:        m.IsBalanced,
		Items:             make([]budget.ExecutionItem, len(m.Items)),
	}
	for i := range m.Items {
		e.Items[i] = *m.Items[i].ToDomain()
	}
	e.Items = budget.PreOrder(e.Items)
	return e
}

// FromDomain populates the persistence model from a domain Execution.
func (m *ExecutionModel) FromDomain(e *budget.Execution) {
	m.setRoot(e.BaseAggregateRoot)
	m.PlanID = e.PlanID
	m.FacilityID = e.FacilityID
	m.ProgramID = e.ProgramID
	m.FiscalYearID = e.FiscalYearID
	m.FacilityName = e.FacilityName
	m.FacilityType = e.FacilityType
	m.DistrictName = e.DistrictName
	m.ProvinceName = e.ProvinceName
	m.ProgramName = e.ProgramName
	m.FiscalYearName = e.FiscalYearName
	m.WorkflowColumns.fromDomain(e.Workflow)
	m.TotalReceipts = e.TotalReceipts
	m.TotalExpenditures = e.TotalExpenditures
	m.BalanceDifference = e.BalanceDifference
	m.IsBalanced = e.IsBalanced
	m.Items = make([]ExecutionItemModel, len(e.Items))
	for i := range e.Items {
		m.Items[i] = *ExecutionItemModelFromDomain(&e.Items[i])
	}
}

// ExecutionModelFromDomain creates a new persistence model from a domain Execution.
func ExecutionModelFromDomain(e *budget.Execution) *ExecutionModel {
	m := &ExecutionModel{}
	m.FromDomain(e)
	return m
}

// ExecutionItemModel is the persistence model for the ExecutionItem entity.
// (execution_id, item_code) is unique.
type ExecutionItemModel struct {
	ID                uuid.UUID              `gorm:"type:uuid;primary_key"`
	ExecutionID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_execution_items_code,priority:1"`
	ItemCode          string                 `gorm:"type:varchar(20);not null;uniqueIndex:idx_execution_items_code,priority:2"`
	Title             string                 `gorm:"type:varchar(200);not null"`
	ParentID          *uuid.UUID             `gorm:"type:uuid;index"`
	IsCategory        bool                   `gorm:"not null;default:false"`
	IndentLevel       int                    `gorm:"not null;default:0"`
	SortOrder         int                    `gorm:"not null;default:0"`
	Category          budget.AccountCategory `gorm:"type:varchar(20);not null"`
	Q1                decimal.Decimal        `gorm:"type:decimal(18,2);not null;default:0"`
	Q2                decimal.Decimal        `gorm:"type:decimal(18,2);not null;default:0"`
	Q3                decimal.Decimal        `gorm:"type:decimal(18,2);not null;default:0"`
	Q4                decimal.Decimal        `gorm:"type:decimal(18,2);not null;default:0"`
	CumulativeBalance decimal.Decimal        `gorm:"type:decimal(18,2);not null;default:0"`
	CreatedAt         time.Time              `gorm:"not null"`
	UpdatedAt         time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExecutionItemModel) TableName() string {
	return "execution_items"
}

// ToDomain converts the persistence model to a domain ExecutionItem.
func (m *ExecutionItemModel) ToDomain() *budget.ExecutionItem {
	return &budget.ExecutionItem{
		ID:                m.ID,
		ExecutionID:       m.ExecutionID,
		ItemCode:          m.ItemCode,
		Title:             m.Title,
		ParentID:          m.ParentID,
		IsCategory:        m.IsCategory,
		IndentLevel:       m.IndentLevel,
		SortOrder:         m.SortOrder,
		Category:          m.Category,
		Values:            valueobject.NewQuarterly(m.Q1, m.Q2, m.Q3, m.Q4),
		CumulativeBalance: m.CumulativeBalance,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain ExecutionItem.
func (m *ExecutionItemModel) FromDomain(i *budget.ExecutionItem) {
	m.ID = i.ID
	m.ExecutionID = i.ExecutionID
	m.ItemCode = i.ItemCode
	m.Title = i.Title
	m.ParentID = i.ParentID
	m.IsCategory = i.IsCategory
	m.IndentLevel = i.IndentLevel
	m.SortOrder = i.SortOrder
	m.Category = i.Category
	m.Q1 = i.Values.Q1()
	m.Q2 = i.Values.Q2()
	m.Q3 = i.Values.Q3()
	m.Q4 = i.Values.Q4()
	m.CumulativeBalance = i.CumulativeBalance
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}

// ExecutionItemModelFromDomain creates a new persistence model from a domain ExecutionItem.
func ExecutionItemModelFromDomain(i *budget.ExecutionItem) *ExecutionItemModel {
	m := &ExecutionItemModel{}
	m.FromDomain(i)
	return m
}

// ExecutionTemplateModel stores a program's execution ledger template.
type ExecutionTemplateModel struct {
	BaseModel
	ProgramID uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex"`
	Nodes     []ExecutionTemplateNodeModel `gorm:"foreignKey:TemplateID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (ExecutionTemplateModel) TableName() string {
	return "execution_templates"
}

// ToDomain converts the persistence model to a domain ExecutionTemplate.
// Nodes come back in their stored position order.
func (m *ExecutionTemplateModel) ToDomain() *budget.ExecutionTemplate {
	t := &budget.ExecutionTemplate{
		ID:        m.ID,
		ProgramID: m.ProgramID,
		Nodes:     make([]budget.TemplateNode, len(m.Nodes)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for i, n := range m.Nodes {
		t.Nodes[i] = budget.TemplateNode{
			Code:       n.Code,
			Title:      n.Title,
			ParentCode: n.ParentCode,
			IsCategory: n.IsCategory,
			SortOrder:  n.SortOrder,
		}
	}
	return t
}

// ExecutionTemplateModelFromDomain creates a new persistence model from a domain ExecutionTemplate.
func ExecutionTemplateModelFromDomain(t *budget.ExecutionTemplate) *ExecutionTemplateModel {
	m := &ExecutionTemplateModel{
		BaseModel: BaseModel{ID: t.ID, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt},
		ProgramID: t.ProgramID,
		Nodes:     make([]ExecutionTemplateNodeModel, len(t.Nodes)),
	}
	for i, n := range t.Nodes {
		m.Nodes[i] = ExecutionTemplateNodeModel{
			ID:         uuid.New(),
			TemplateID: t.ID,
			Position:   i,
			Code:       n.Code,
			Title:      n.Title,
			ParentCode: n.ParentCode,
			IsCategory: n.IsCategory,
			SortOrder:  n.SortOrder,
		}
	}
	return m
}

// ExecutionTemplateNodeModel is one node row of a stored template.
type ExecutionTemplateNodeModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	TemplateID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position   int       `gorm:"not null"`
	Code       string    `gorm:"type:varchar(20);not null"`
	Title      string    `gorm:"type:varchar(200);not null"`
	ParentCode string    `gorm:"type:varchar(20)"`
	IsCategory bool      `gorm:"not null;default:false"`
	SortOrder  int       `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ExecutionTemplateNodeModel) TableName() string {
	return "execution_template_nodes"
}
