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

// GormPlanRepository implements PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// FindByID finds a plan with its activities
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*budget.Plan, error) {
	var model models.PlanModel
	if err := r.db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("plan not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists plans matching the filter; activities are not loaded
func (r *GormPlanRepository) FindAll(ctx context.Context, filter budget.ListFilter) ([]budget.Plan, int64, error) {
	f := filter.Filter.Normalize()
	query := applyListFilter(r.db.WithContext(ctx).Model(&models.PlanModel{}), filter)
	if f.Search != "" {
		query = query.Where("facility_name LIKE ?", "%"+f.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.PlanModel
	if err := query.Order(planSortColumns.orderBy(f)).
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	plans := make([]budget.Plan, len(rows))
	for i := range rows {
		plans[i] = *rows[i].ToDomain()
	}
	return plans, total, nil
}

// ExistsForTuple checks whether a plan exists for the facility, program and fiscal year
func (r *GormPlanRepository) ExistsForTuple(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PlanModel{}).
		Where("facility_id = ? AND program_id = ? AND fiscal_year_id = ?", facilityID, programID, fiscalYearID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts a new plan and its activities
func (r *GormPlanRepository) Save(ctx context.Context, plan *budget.Plan) error {
	model := models.PlanModelFromDomain(plan)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if isUniqueViolation(err) {
		return shared.NewConflictError("a plan already exists for this facility, program and fiscal year")
	}
	return err
}

// SaveWithLock saves with optimistic locking (version check).
// The plan row, its total and every activity are written in one transaction.
func (r *GormPlanRepository) SaveWithLock(ctx context.Context, plan *budget.Plan) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var currentVersion int
		res := tx.Model(&models.PlanModel{}).
			Where("id = ?", plan.ID).
			Select("version").
			Scan(&currentVersion)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.NewNotFoundError("plan not found")
		}

		if currentVersion != plan.Version {
			return shared.NewDomainError(shared.CodeConcurrency, "The plan has been modified by another user")
		}

		model := models.PlanModelFromDomain(plan)
		model.Version = currentVersion + 1
		model.UpdatedAt = time.Now()

		result := tx.Model(&models.PlanModel{}).
			Where("id = ? AND version = ?", plan.ID, currentVersion).
			Updates(map[string]interface{}{
				"status":            model.Status,
				"submitted_by":      model.SubmittedBy,
				"submitted_at":      model.SubmittedAt,
				"approved_by":       model.ApprovedBy,
				"approved_at":       model.ApprovedAt,
				"rejected_by":       model.RejectedBy,
				"rejected_at":       model.RejectedAt,
				"rejection_comment": model.RejectionComment,
				"total_budget":      model.TotalBudget,
				"version":           model.Version,
				"updated_at":        model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError(shared.CodeConcurrency, "The plan has been modified by another user")
		}

		// Delete activities not in the current list
		currentIDs := make([]uuid.UUID, len(model.Activities))
		for i := range model.Activities {
			currentIDs[i] = model.Activities[i].ID
		}
		del := tx.Where("plan_id = ?", plan.ID)
		if len(currentIDs) > 0 {
			del = del.Where("id NOT IN ?", currentIDs)
		}
		if err := del.Delete(&models.PlanActivityModel{}).Error; err != nil {
			return err
		}

		for i := range model.Activities {
			if err := tx.Save(&model.Activities[i]).Error; err != nil {
				return err
			}
		}

		plan.Version = model.Version
		plan.UpdatedAt = model.UpdatedAt
		return nil
	})
}

// Delete removes a plan and cascades to its activities
func (r *GormPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", id).Delete(&models.PlanActivityModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.PlanModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewNotFoundError("plan not found")
		}
		return nil
	})
}

// CountByStatus returns the number of plans in each workflow status
func (r *GormPlanRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	return countByStatus(r.db.WithContext(ctx).Model(&models.PlanModel{}))
}

func countByStatus(query *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// applyListFilter adds the shared plan/execution list predicates
func applyListFilter(query *gorm.DB, filter budget.ListFilter) *gorm.DB {
	if filter.FacilityID != nil {
		query = query.Where("facility_id = ?", *filter.FacilityID)
	}
	if filter.ProgramID != nil {
		query = query.Where("program_id = ?", *filter.ProgramID)
	}
	if filter.FiscalYearID != nil {
		query = query.Where("fiscal_year_id = ?", *filter.FiscalYearID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// Ensure GormPlanRepository implements PlanRepository
var _ budget.PlanRepository = (*GormPlanRepository)(nil)
