package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/reference"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReferenceRepository reads and seeds facilities, programs and fiscal years
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewGormReferenceRepository creates a new GormReferenceRepository
func NewGormReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

type facilityContextRow struct {
	FacilityName string
	FacilityType string
	DistrictName string
	ProvinceName string
}

// ResolvePlanContext loads the display metadata a new plan copies
func (r *GormReferenceRepository) ResolvePlanContext(ctx context.Context, facilityID, programID, fiscalYearID uuid.UUID) (budget.PlanContext, error) {
	db := r.db.WithContext(ctx)

	var row facilityContextRow
	res := db.Table("facilities").
		Select("facilities.name AS facility_name, facilities.facility_type AS facility_type, districts.name AS district_name, provinces.name AS province_name").
		Joins("LEFT JOIN districts ON districts.id = facilities.district_id").
		Joins("LEFT JOIN provinces ON provinces.id = districts.province_id").
		Where("facilities.id = ?", facilityID).
		Scan(&row)
	if res.Error != nil {
		return budget.PlanContext{}, res.Error
	}
	if res.RowsAffected == 0 {
		return budget.PlanContext{}, shared.NewNotFoundError("facility not found")
	}

	var program models.ProgramModel
	if err := db.First(&program, "id = ?", programID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return budget.PlanContext{}, shared.NewNotFoundError("program not found")
		}
		return budget.PlanContext{}, err
	}

	var fy models.FiscalYearModel
	if err := db.First(&fy, "id = ?", fiscalYearID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return budget.PlanContext{}, shared.NewNotFoundError("fiscal year not found")
		}
		return budget.PlanContext{}, err
	}

	return budget.PlanContext{
		FacilityID:     facilityID,
		ProgramID:      programID,
		FiscalYearID:   fiscalYearID,
		FacilityName:   row.FacilityName,
		FacilityType:   row.FacilityType,
		DistrictName:   row.DistrictName,
		ProvinceName:   row.ProvinceName,
		ProgramName:    program.Name,
		FiscalYearName: fy.Name,
	}, nil
}

// ListFacilities lists facilities, optionally within one district
func (r *GormReferenceRepository) ListFacilities(ctx context.Context, districtID *uuid.UUID) ([]reference.Facility, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.FacilityModel{}).Order("name ASC")
	if districtID != nil {
		query = query.Where("district_id = ?", *districtID)
	}

	var rows []models.FacilityModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []reference.Facility{}, nil
	}

	facilityIDs := make([]uuid.UUID, len(rows))
	districtIDs := make([]uuid.UUID, 0, len(rows))
	for i := range rows {
		facilityIDs[i] = rows[i].ID
		districtIDs = append(districtIDs, rows[i].DistrictID)
	}

	var districts []models.DistrictModel
	if err := db.Where("id IN ?", districtIDs).Find(&districts).Error; err != nil {
		return nil, err
	}
	provinceOf := make(map[uuid.UUID]uuid.UUID, len(districts))
	for _, d := range districts {
		provinceOf[d.ID] = d.ProvinceID
	}

	var links []models.FacilityProgramModel
	if err := db.Where("facility_id IN ?", facilityIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	programsOf := make(map[uuid.UUID][]uuid.UUID)
	for _, l := range links {
		programsOf[l.FacilityID] = append(programsOf[l.FacilityID], l.ProgramID)
	}

	facilities := make([]reference.Facility, len(rows))
	for i := range rows {
		f := rows[i].ToDomain()
		f.ProvinceID = provinceOf[f.DistrictID]
		f.ProgramIDs = programsOf[f.ID]
		facilities[i] = f
	}
	return facilities, nil
}

// ListPrograms lists all programs ordered by code
func (r *GormReferenceRepository) ListPrograms(ctx context.Context) ([]reference.Program, error) {
	var rows []models.ProgramModel
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	programs := make([]reference.Program, len(rows))
	for i := range rows {
		programs[i] = rows[i].ToDomain()
	}
	return programs, nil
}

// ListFiscalYears lists fiscal years, most recent first
func (r *GormReferenceRepository) ListFiscalYears(ctx context.Context) ([]reference.FiscalYear, error) {
	var rows []models.FiscalYearModel
	if err := r.db.WithContext(ctx).Order("start_date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	years := make([]reference.FiscalYear, len(rows))
	for i := range rows {
		years[i] = rows[i].ToDomain()
	}
	return years, nil
}

// FindProgramByCode finds a program by its code
func (r *GormReferenceRepository) FindProgramByCode(ctx context.Context, code string) (*reference.Program, error) {
	var model models.ProgramModel
	if err := r.db.WithContext(ctx).First(&model, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("program not found")
		}
		return nil, err
	}
	p := model.ToDomain()
	return &p, nil
}

func upsert(db *gorm.DB, value interface{}) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(value).Error
}

// UpsertProvince inserts or updates a province
func (r *GormReferenceRepository) UpsertProvince(ctx context.Context, p *reference.Province) error {
	return upsert(r.db.WithContext(ctx), &models.ProvinceModel{ID: p.ID, Name: p.Name, Code: p.Code})
}

// UpsertDistrict inserts or updates a district
func (r *GormReferenceRepository) UpsertDistrict(ctx context.Context, d *reference.District) error {
	return upsert(r.db.WithContext(ctx), &models.DistrictModel{
		ID:         d.ID,
		ProvinceID: d.ProvinceID,
		Name:       d.Name,
		Code:       d.Code,
	})
}

// UpsertFacility inserts or updates a facility and replaces its program links
func (r *GormReferenceRepository) UpsertFacility(ctx context.Context, f *reference.Facility) error {
	if !f.FacilityType.IsValid() {
		return shared.NewValidationError("unknown facility type " + string(f.FacilityType))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, &models.FacilityModel{
			ID:           f.ID,
			Name:         f.Name,
			Code:         f.Code,
			FacilityType: string(f.FacilityType),
			DistrictID:   f.DistrictID,
			IsActive:     f.IsActive,
		}); err != nil {
			return err
		}
		if err := tx.Where("facility_id = ?", f.ID).Delete(&models.FacilityProgramModel{}).Error; err != nil {
			return err
		}
		for _, programID := range f.ProgramIDs {
			if err := tx.Create(&models.FacilityProgramModel{FacilityID: f.ID, ProgramID: programID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertProgram inserts or updates a program
func (r *GormReferenceRepository) UpsertProgram(ctx context.Context, p *reference.Program) error {
	return upsert(r.db.WithContext(ctx), &models.ProgramModel{
		ID:          p.ID,
		Name:        p.Name,
		Code:        p.Code,
		Description: p.Description,
		IsActive:    p.IsActive,
	})
}

// UpsertFiscalYear inserts or updates a fiscal year
func (r *GormReferenceRepository) UpsertFiscalYear(ctx context.Context, fy *reference.FiscalYear) error {
	return upsert(r.db.WithContext(ctx), &models.FiscalYearModel{
		ID:        fy.ID,
		Name:      fy.Name,
		StartDate: fy.StartDate,
		EndDate:   fy.EndDate,
		IsCurrent: fy.IsCurrent,
		IsActive:  fy.IsActive,
	})
}

var (
	_ budget.ReferenceDirectory = (*GormReferenceRepository)(nil)
	_ reference.Repository      = (*GormReferenceRepository)(nil)
	_ reference.Seeder          = (*GormReferenceRepository)(nil)
)
