package reference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/reference"
	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Service exposes the read-only reference directory
type Service struct {
	repo reference.Repository
}

// NewService creates a new reference Service
func NewService(repo reference.Repository) *Service {
	return &Service{repo: repo}
}

// ListFacilities lists facilities, optionally limited to one district
func (s *Service) ListFacilities(ctx context.Context, districtID *uuid.UUID) ([]reference.Facility, error) {
	return s.repo.ListFacilities(ctx, districtID)
}

// ListPrograms lists all programs
func (s *Service) ListPrograms(ctx context.Context) ([]reference.Program, error) {
	return s.repo.ListPrograms(ctx)
}

// ListFiscalYears lists all fiscal years
func (s *Service) ListFiscalYears(ctx context.Context) ([]reference.FiscalYear, error) {
	return s.repo.ListFiscalYears(ctx)
}

// FindProgramByCode looks a program up by its short code
func (s *Service) FindProgramByCode(ctx context.Context, code string) (*reference.Program, error) {
	return s.repo.FindProgramByCode(ctx, code)
}

// Dataset is a reference data file as loaded by the seeding command
type Dataset struct {
	Provinces   []reference.Province   `json:"provinces"`
	Districts   []reference.District   `json:"districts"`
	Programs    []reference.Program    `json:"programs"`
	FiscalYears []reference.FiscalYear `json:"fiscal_years"`
	Facilities  []reference.Facility   `json:"facilities"`
}

// SeedSummary counts the rows written by Seed
type SeedSummary struct {
	Provinces   int `json:"provinces"`
	Districts   int `json:"districts"`
	Programs    int `json:"programs"`
	FiscalYears int `json:"fiscal_years"`
	Facilities  int `json:"facilities"`
}

// Seeder loads reference datasets
type Seeder struct {
	seeder reference.Seeder
}

// NewSeeder creates a new Seeder
func NewSeeder(seeder reference.Seeder) *Seeder {
	return &Seeder{seeder: seeder}
}

// Seed upserts the dataset parents first. Rows are idempotent on id.
func (s *Seeder) Seed(ctx context.Context, ds Dataset) (SeedSummary, error) {
	var sum SeedSummary
	if err := ds.validate(); err != nil {
		return sum, err
	}

	for i := range ds.Provinces {
		if err := s.seeder.UpsertProvince(ctx, &ds.Provinces[i]); err != nil {
			return sum, fmt.Errorf("province %s: %w", ds.Provinces[i].Name, err)
		}
		sum.Provinces++
	}
	for i := range ds.Districts {
		if err := s.seeder.UpsertDistrict(ctx, &ds.Districts[i]); err != nil {
			return sum, fmt.Errorf("district %s: %w", ds.Districts[i].Name, err)
		}
		sum.Districts++
	}
	for i := range ds.Programs {
		if err := s.seeder.UpsertProgram(ctx, &ds.Programs[i]); err != nil {
			return sum, fmt.Errorf("program %s: %w", ds.Programs[i].Code, err)
		}
		sum.Programs++
	}
	for i := range ds.FiscalYears {
		if err := s.seeder.UpsertFiscalYear(ctx, &ds.FiscalYears[i]); err != nil {
			return sum, fmt.Errorf("fiscal year %s: %w", ds.FiscalYears[i].Name, err)
		}
		sum.FiscalYears++
	}
	for i := range ds.Facilities {
		if err := s.seeder.UpsertFacility(ctx, &ds.Facilities[i]); err != nil {
			return sum, fmt.Errorf("facility %s: %w", ds.Facilities[i].Name, err)
		}
		sum.Facilities++
	}

	logger.L(ctx).Info("reference data seeded",
		zap.Int("provinces", sum.Provinces),
		zap.Int("districts", sum.Districts),
		zap.Int("programs", sum.Programs),
		zap.Int("fiscal_years", sum.FiscalYears),
		zap.Int("facilities", sum.Facilities),
	)
	return sum, nil
}

func (ds Dataset) validate() error {
	for _, p := range ds.Provinces {
		if p.ID == uuid.Nil || p.Name == "" {
			return shared.NewValidationError("every province needs an id and a name")
		}
	}
	for _, d := range ds.Districts {
		if d.ID == uuid.Nil || d.ProvinceID == uuid.Nil || d.Name == "" {
			return shared.NewValidationError("every district needs an id, a province id and a name")
		}
	}
	for _, p := range ds.Programs {
		if p.ID == uuid.Nil || p.Code == "" || p.Name == "" {
			return shared.NewValidationError("every program needs an id, a code and a name")
		}
	}
	for _, fy := range ds.FiscalYears {
		if fy.ID == uuid.Nil || fy.Name == "" {
			return shared.NewValidationError("every fiscal year needs an id and a name")
		}
		if !fy.EndDate.After(fy.StartDate) {
			return shared.NewValidationError(fmt.Sprintf("fiscal year %s ends before it starts", fy.Name))
		}
	}
	for _, f := range ds.Facilities {
		if f.ID == uuid.Nil || f.DistrictID == uuid.Nil || f.Name == "" {
			return shared.NewValidationError("every facility needs an id, a district id and a name")
		}
	}
	return nil
}
