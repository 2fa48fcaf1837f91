package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormExecutionRepository implements ExecutionRepository using GORM
type GormExecutionRepository struct {
	db *gorm.DB
}

// NewGormExecutionRepository creates a new GormExecutionRepository
func NewGormExecutionRepository(db *gorm.DB) *GormExecutionRepository {
	return &GormExecutionRepository{db: db}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("indent_level ASC, sort_order ASC, item_code ASC")
	})
}

// FindByID finds an execution with its full item forest
func (r *GormExecutionRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Execution, error) {
	var model models.ExecutionModel
	if err := preloadItems(r.db.WithContext(ctx)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("execution not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPlanID finds the execution created from a plan
func (r *GormExecutionRepository) FindByPlanID(ctx context.Context, planID uuid.UUID) (*budget.Execution, error) {
	var model models.ExecutionModel
	if err := preloadItems(r.db.WithContext(ctx)).First(&model, "plan_id = ?", planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("execution not found for plan")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists executions matching the filter; items are not loaded
func (r *GormExecutionRepository) FindAll(ctx context.Context, filter budget.ListFilter) ([]budget.Execution, int64, error) {
	f := filter.Filter.Normalize()
	query := applyListFilter(r.db.WithContext(ctx).Model(&models.ExecutionModel{}), filter)
	if f.Search != "" {
		query = query.Where("facility_name LIKE ?", "%"+f.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.ExecutionModel
	if err := query.Order(executionSortColumns.orderBy(f)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	executions := make([]budget.Execution, len(rows))
	for i := range rows {
		executions[i] = *rows[i].ToDomain()
	}
	return executions, total, nil
}

// ExistsByPlanID checks whether an execution was already created for the plan
func (r *GormExecutionRepository) ExistsByPlanID(ctx context.Context, planID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ExecutionModel{}).
		Where("plan_id = ?", planID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a new execution with its item forest.
// Items are inserted in pre-order so parents exist before their children.
func (r *GormExecutionRepository) Save(ctx context.Context, execution *budget.Execution) error {
	model := models.ExecutionModelFromDomain(execution)
	items := model.Items
	model.Items = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(items, 100).Error
	})
	if isUniqueViolation(err) {
		return shared.NewConflictError("an execution already exists for this plan")
	}
	return err
}

// SaveWithLock saves with optimistic locking (version check).
// Only workflow columns, balance totals and item values change after creation;
// the tree shape is immutable. Item rows are written only for edited leaves
// and their ancestors.
func (r *GormExecutionRepository) SaveWithLock(ctx context.Context, execution *budget.Execution) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int
		res := tx.Model(&models.ExecutionModel{}).
			Where("id = ?", execution.ID).
			Select("version").
			Scan(&currentVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.NewNotFoundError("execution not found")
		}

		if currentVersion != execution.Version {
			return shared.NewDomainError(shared.CodeConcurrency, "The execution has been modified by another user")
		}

		model := models.ExecutionModelFromDomain(execution)
		model.Version = currentVersion + 1
		model.UpdatedAt = time.Now()

		result := tx.Model(&models.ExecutionModel{}).
			Where("id = ? AND version = ?", execution.ID, currentVersion).
			Updates(map[string]interface{}{
				"status":             model.Status,
				"submitted_by":       model.SubmittedBy,
				"submitted_at":       model.SubmittedAt,
				"approved_by":        model.ApprovedBy,
				"approved_at":        model.ApprovedAt,
				"rejected_by":        model.RejectedBy,
				"rejected_at":        model.RejectedAt,
				"rejection_comment":  model.RejectionComment,
				"total_receipts":     model.TotalReceipts,
				"total_expenditures": model.TotalExpenditures,
				"balance_difference": model.BalanceDifference,
				"is_balanced":        model.IsBalanced,
				"version":            model.Version,
				"updated_at":         model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.CodeConcurrency, "The execution has been modified by another user")
		}

		for i := range model.Items {
			item := &model.Items[i]
			if !execution.ItemChanged(item.ID) {
				continue
			}
			if err := tx.Model(&models.ExecutionItemModel{}).
				Where("id = ? AND execution_id = ?", item.ID, execution.ID).
				Updates(map[string]interface{}{
					"q1":                 item.Q1,
					"q2":                 item.Q2,
					"q3":                 item.Q3,
					"q4":                 item.Q4,
					"cumulative_balance": item.CumulativeBalance,
					"updated_at":         item.UpdatedAt,
				}).Error; err != nil {
				return err
			}
		}

		execution.Version = model.Version
		execution.UpdatedAt = model.UpdatedAt
		return nil
	})
	if err != nil {
		return err
	}
	execution.ClearChanges()
	return nil
}

// CountByStatus returns the number of executions in each workflow status
func (r *GormExecutionRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx).Model(&models.ExecutionModel{}))
}

// Ensure GormExecutionRepository implements ExecutionRepository
var _ budget.ExecutionRepository = (*GormExecutionRepository)(nil)
