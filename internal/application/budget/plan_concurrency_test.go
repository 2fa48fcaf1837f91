package budget

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/infrastructure/lock"
	"github.com/healthbudget/backend/internal/infrastructure/persistence"
	"github.com/healthbudget/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqlitePlans backs a PlanService with the gorm repositories on in-memory SQLite
func sqlitePlans(t *testing.T) (*PlanService, *persistence.GormPlanRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, one database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.PlanModel{}, &models.PlanActivityModel{}))

	plans := persistence.NewGormPlanRepository(db)
	svc := NewPlanService(plans, persistence.NewGormExecutionRepository(db), nil, Runtime{
		Locker:    lock.NewLocalLocker(),
		Publisher: &recordingPublisher{},
		Metrics:   newRecordingMetrics(),
	})
	return svc, plans
}

func TestPlanService_ConcurrentSiblingActivityEdits(t *testing.T) {
	ctx := context.Background()
	svc, plans := sqlitePlans(t)

	plan, err := budget.NewPlan(testPlanContext())
	require.NoError(t, err)
	var existing []uuid.UUID
	for range 2 {
		a, err := plan.AddActivity(activityRequest(100, 0, 0, 0).ToInput())
		require.NoError(t, err)
		existing = append(existing, a.ID)
	}
	require.NoError(t, plans.Save(ctx, plan))

	const adds = 6
	var wg sync.WaitGroup
	errs := make(chan error, adds+len(existing))
	for range adds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddActivity(ctx, plan.ID, activityRequest(10, 10, 10, 10))
			errs <- err
		}()
	}
	for _, id := range existing {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.UpdateActivity(ctx, plan.ID, id, activityRequest(50, 50, 50, 50))
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	stored, err := plans.FindByID(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, stored.Activities, len(existing)+adds)

	sum := decimal.Zero
	for _, a := range stored.Activities {
		sum = sum.Add(a.TotalBudget)
	}
	// 2 x 200 updated + 6 x 40 added
	assert.True(t, decimal.NewFromInt(640).Equal(sum), "activity sum %s", sum)
	assert.True(t, stored.TotalBudget.Equal(sum), "plan total %s, activity sum %s", stored.TotalBudget, sum)
	assert.Equal(t, plan.Version+adds+len(existing), stored.Version)
}
