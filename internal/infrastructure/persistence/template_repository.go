package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTemplateRepository implements TemplateRepository using GORM
type GormTemplateRepository struct {
	db *gorm.DB
}

// NewGormTemplateRepository creates a new GormTemplateRepository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db}
}

// FindByProgramID returns the stored template of a program
func (r *GormTemplateRepository) FindByProgramID(ctx context.Context, programID uuid.UUID) (*budget.ExecutionTemplate, error) {
	var model models.ExecutionTemplateModel
	if err := r.db.WithContext(ctx).
		Preload("Nodes", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&model, "program_id = ?", programID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("no execution template stored for program")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save replaces the template of the program, nodes included
func (r *GormTemplateRepository) Save(ctx context.Context, template *budget.ExecutionTemplate) error {
	model := models.ExecutionTemplateModelFromDomain(template)
	nodes := model.Nodes
	model.Nodes = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []uuid.UUID
		if err := tx.Model(&models.ExecutionTemplateModel{}).
			Where("program_id = ?", template.ProgramID).
			Pluck("id", &existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			if err := tx.Where("template_id IN ?", existing).Delete(&models.ExecutionTemplateNodeModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", existing).Delete(&models.ExecutionTemplateModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(nodes) == 0 {
			return nil
		}
		return tx.CreateInBatches(nodes, 100).Error
	})
}

// Ensure GormTemplateRepository implements TemplateRepository
var _ budget.TemplateRepository = (*GormTemplateRepository)(nil)
