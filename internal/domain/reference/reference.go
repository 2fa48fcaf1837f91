// Package reference holds the read-only geographic and program reference data
// that plans are created against. The budget engine only consumes it.
package reference

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FacilityType distinguishes hospitals from health centers
type FacilityType string

const (
	FacilityTypeHospital     FacilityType = "hospital"
	FacilityTypeHealthCenter FacilityType = "health_center"
)

// IsValid checks if the facility type is known
func (t FacilityType) IsValid() bool {
	return t == FacilityTypeHospital || t == FacilityTypeHealthCenter
}

// Province is a top-level geographic region
type Province struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Code string    `json:"code,omitempty"`
}

// District is an administrative district within a province
type District struct {
	ID         uuid.UUID `json:"id"`
	ProvinceID uuid.UUID `json:"province_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code,omitempty"`
}

// Facility is a healthcare facility
type Facility struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Code         string       `json:"code,omitempty"`
	FacilityType FacilityType `json:"facility_type"`
	DistrictID   uuid.UUID    `json:"district_id"`
	ProvinceID   uuid.UUID    `json:"province_id"`
	IsActive     bool         `json:"is_active"`
	ProgramIDs   []uuid.UUID  `json:"program_ids,omitempty"`
}

// SupportsProgram reports whether the facility runs the program
func (f *Facility) SupportsProgram(programID uuid.UUID) bool {
	for _, id := range f.ProgramIDs {
		if id == programID {
			return true
		}
	}
	return false
}

// Program is a healthcare program (HIV, TB, Malaria...)
type Program struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
}

// FiscalYear is a budgeting period
type FiscalYear struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsCurrent bool      `json:"is_current"`
	IsActive  bool      `json:"is_active"`
}

// Contains reports whether t falls inside the fiscal year
func (fy *FiscalYear) Contains(t time.Time) bool {
	return !t.Before(fy.StartDate) && t.Before(fy.EndDate)
}

// Repository reads reference data
type Repository interface {
	ListFacilities(ctx context.Context, districtID *uuid.UUID) ([]Facility, error)
	ListPrograms(ctx context.Context) ([]Program, error)
	ListFiscalYears(ctx context.Context) ([]FiscalYear, error)
	FindProgramByCode(ctx context.Context, code string) (*Program, error)
}

// Seeder writes reference data; used by the seeding command only
type Seeder interface {
	UpsertProvince(ctx context.Context, p *Province) error
	UpsertDistrict(ctx context.Context, d *District) error
	UpsertFacility(ctx context.Context, f *Facility) error
	UpsertProgram(ctx context.Context, p *Program) error
	UpsertFiscalYear(ctx context.Context, fy *FiscalYear) error
}
