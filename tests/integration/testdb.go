// Package integration runs the budget service against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/reference"
	"github.com/healthbudget/backend/internal/infrastructure/config"
	"github.com/healthbudget/backend/internal/infrastructure/logger"
	"github.com/healthbudget/backend/internal/infrastructure/migration"
	"github.com/healthbudget/backend/internal/infrastructure/persistence"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	pgImage    = "postgres:16-alpine"
	pgDatabase = "healthbudget_test"
	pgUser     = "postgres"
	pgPassword = "postgres"
)

// postgres is the one container shared by every test in the package. It is
// started and migrated by the first NewTestDB call.
var postgres struct {
	mu        sync.Mutex
	container *tcpostgres.PostgresContainer
	cfg       config.DatabaseConfig
}

// TestDB is a per-test connection to the shared, migrated database
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
	db *persistence.Database
}

// NewTestDB connects to the shared container with every budget and reference
// table emptied. It skips in -short mode.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test needs docker; skipped in short mode")
	}

	postgres.mu.Lock()
	defer postgres.mu.Unlock()
	if postgres.container == nil {
		startPostgres(t)
	}

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	db, err := persistence.Open(&postgres.cfg, logger.NewGormLogger(zaptest.NewLogger(t), level))
	require.NoError(t, err, "connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	tdb := &TestDB{DB: db.DB, t: t, db: db}
	tdb.truncate()
	return tdb
}

func startPostgres(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	c, err := tcpostgres.Run(ctx, pgImage,
		tcpostgres.WithDatabase(pgDatabase),
		tcpostgres.WithUsername(pgUser),
		tcpostgres.WithPassword(pgPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	postgres.container = c
	postgres.cfg = config.DatabaseConfig{
		Driver:          config.DriverPostgres,
		Host:            host,
		Port:            port.Int(),
		User:            pgUser,
		Password:        pgPassword,
		DBName:          pgDatabase,
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5,
	}

	sqlDB, err := sql.Open("postgres", postgres.cfg.DSN())
	require.NoError(t, err)
	defer sqlDB.Close()
	m, err := migration.New(sqlDB, "", zap.NewNop())
	require.NoError(t, err, "create migrator")
	require.NoError(t, m.Up(), "apply schema")
}

// Database is the handle the server would hold
func (tdb *TestDB) Database() *persistence.Database {
	return tdb.db
}

// truncate empties every table but the migration ledger in one statement
func (tdb *TestDB) truncate() {
	tdb.t.Helper()
	var tables []string
	require.NoError(tdb.t, tdb.DB.Raw(
		`SELECT quote_ident(tablename) FROM pg_tables
		 WHERE schemaname = 'public' AND tablename <> 'schema_migrations'`,
	).Scan(&tables).Error)
	if len(tables) == 0 {
		return
	}
	stmt := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	require.NoError(tdb.t, tdb.DB.Exec(stmt).Error)
}

// ReferenceFixture is one facility wired to one program and fiscal year
type ReferenceFixture struct {
	Province   reference.Province
	District   reference.District
	Facility   reference.Facility
	Program    reference.Program
	FiscalYear reference.FiscalYear
}

// SeedReference writes a minimal reference directory
func (tdb *TestDB) SeedReference() ReferenceFixture {
	tdb.t.Helper()
	ctx := context.Background()
	repo := persistence.NewGormReferenceRepository(tdb.DB)

	province := reference.Province{ID: uuid.New(), Name: "Kigali", Code: "KGL"}
	district := reference.District{ID: uuid.New(), ProvinceID: province.ID, Name: "Gasabo"}
	program := reference.Program{ID: uuid.New(), Name: "HIV", Code: "hiv", IsActive: true}
	f := ReferenceFixture{
		Province: province,
		District: district,
		Program:  program,
		Facility: reference.Facility{
			ID:           uuid.New(),
			Name:         "Kibagabaga Hospital",
			FacilityType: reference.FacilityTypeHospital,
			DistrictID:   district.ID,
			IsActive:     true,
			ProgramIDs:   []uuid.UUID{program.ID},
		},
		FiscalYear: reference.FiscalYear{
			ID:        uuid.New(),
			Name:      "2024-25",
			StartDate: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
			IsCurrent: true,
			IsActive:  true,
		},
	}

	for _, upsert := range []func() error{
		func() error { return repo.UpsertProvince(ctx, &f.Province) },
		func() error { return repo.UpsertDistrict(ctx, &f.District) },
		func() error { return repo.UpsertProgram(ctx, &f.Program) },
		func() error { return repo.UpsertFiscalYear(ctx, &f.FiscalYear) },
		func() error { return repo.UpsertFacility(ctx, &f.Facility) },
	} {
		require.NoError(tdb.t, upsert())
	}
	return f
}

// CleanupSharedContainer terminates the shared container. TestMain calls it.
func CleanupSharedContainer() {
	postgres.mu.Lock()
	defer postgres.mu.Unlock()
	if postgres.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = postgres.container.Terminate(ctx)
	postgres.container = nil
}
