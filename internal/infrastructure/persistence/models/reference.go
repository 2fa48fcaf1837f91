package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/reference"
)

// ProvinceModel is the persistence model for provinces
type ProvinceModel struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Code string    `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (ProvinceModel) TableName() string {
	return "provinces"
}

// DistrictModel is the persistence model for districts
type DistrictModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ProvinceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:varchar(100);not null"`
	Code       string    `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (DistrictModel) TableName() string {
	return "districts"
}

// FacilityModel is the persistence model for facilities
type FacilityModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Name         string    `gorm:"type:varchar(200);not null"`
	Code         string    `gorm:"type:varchar(50)"`
	FacilityType string    `gorm:"type:varchar(20);not null"`
	DistrictID   uuid.UUID `gorm:"type:uuid;not null;index"`
	IsActive     bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (FacilityModel) TableName() string {
	return "facilities"
}

// ToDomain converts the persistence model to a domain Facility.
// ProvinceID and ProgramIDs are filled by the repository.
func (m *FacilityModel) ToDomain() reference.Facility {
	return reference.Facility{
		ID:           m.ID,
		Name:         m.Name,
		Code:         m.Code,
		FacilityType: reference.FacilityType(m.FacilityType),
		DistrictID:   m.DistrictID,
		IsActive:     m.IsActive,
	}
}

// FacilityProgramModel links a facility to the programs it runs
type FacilityProgramModel struct {
	FacilityID uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProgramID  uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// TableName returns the table name for GORM
func (FacilityProgramModel) TableName() string {
	return "facility_programs"
}

// ProgramModel is the persistence model for programs
type ProgramModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Name        string    `gorm:"type:varchar(100);not null"`
	Code        string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ProgramModel) TableName() string {
	return "programs"
}

// ToDomain converts the persistence model to a domain Program
func (m *ProgramModel) ToDomain() reference.Program {
	return reference.Program{
		ID:          m.ID,
		Name:        m.Name,
		Code:        m.Code,
		Description: m.Description,
		IsActive:    m.IsActive,
	}
}

// FiscalYearModel is the persistence model for fiscal years
type FiscalYearModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	StartDate time.Time `gorm:"not null"`
	EndDate   time.Time `gorm:"not null"`
	IsCurrent bool      `gorm:"not null;default:false"`
	IsActive  bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (FiscalYearModel) TableName() string {
	return "fiscal_years"
}

// ToDomain converts the persistence model to a domain FiscalYear
func (m *FiscalYearModel) ToDomain() reference.FiscalYear {
	return reference.FiscalYear{
		ID:        m.ID,
		Name:      m.Name,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		IsCurrent: m.IsCurrent,
		IsActive:  m.IsActive,
	}
}
