package plans

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

func setupPlansTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  display_name TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  referred_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	plansTable := `
CREATE TABLE IF NOT EXISTS commission_plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  version INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  tags TEXT,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	rates := `
CREATE TABLE IF NOT EXISTS commission_rates (
  id TEXT PRIMARY KEY,
  plan_id TEXT NOT NULL,
  distributor_level INTEGER NOT NULL,
  percentage NUMERIC NOT NULL,
  min_trading_volume NUMERIC,
  max_commission NUMERIC,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	assignments := `
CREATE TABLE IF NOT EXISTS user_commission_plans (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  assigned_at DATETIME NOT NULL,
  expires_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  assigned_by TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	rateIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_rates_active_plan_level
  ON commission_rates (plan_id, distributor_level) WHERE is_active;`
	planIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_commission_plans_name_version
  ON commission_plans (name, version);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(plansTable).Error)
	require.NoError(t, db.Exec(rates).Error)
	require.NoError(t, db.Exec(assignments).Error)
	require.NoError(t, db.Exec(rateIndex).Error)
	require.NoError(t, db.Exec(planIndex).Error)
	return db
}

func newPlan(t *testing.T, db *gorm.DB, name string, version int) *models.CommissionPlan {
	t.Helper()

	plan := &models.CommissionPlan{
		ID:        uuid.New(),
		Name:      name,
		Version:   version,
		IsActive:  true,
		CreatedBy: uuid.New(),
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func newRate(t *testing.T, db *gorm.DB, planID uuid.UUID, level int, percentage string) *models.CommissionRate {
	t.Helper()

	rate := &models.CommissionRate{
		ID:               uuid.New(),
		PlanID:           planID,
		DistributorLevel: level,
		Percentage:       decimal.RequireFromString(percentage),
		IsActive:         true,
		CreatedBy:        uuid.New(),
	}
	require.NoError(t, db.Create(rate).Error)
	return rate
}

func TestMaxPlanVersion(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	name := fmt.Sprintf("starter-%s", uuid.NewString())
	newPlan(t, db, name, 1)
	newPlan(t, db, name, 2)

	version, err := repo.MaxPlanVersion(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	version, err = repo.MaxPlanVersion(ctx, "never-created-"+uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, 0, version)
}

func TestActiveRateRetirement(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := newPlan(t, db, fmt.Sprintf("plan-%s", uuid.NewString()), 1)
	rate := newRate(t, db, plan.ID, 1, "5.00")

	found, err := repo.ActiveRate(ctx, plan.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, rate.ID, found.ID)
	assert.True(t, found.Percentage.Equal(decimal.RequireFromString("5.00")))

	require.NoError(t, repo.DeactivateRate(ctx, rate.ID))

	_, err = repo.ActiveRate(ctx, plan.ID, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	all, err := repo.ActiveRates(ctx)
	require.NoError(t, err)
	for _, row := range all {
		assert.NotEqual(t, rate.ID, row.ID)
	}
}

func TestSecondActiveRateSameLevelRejected(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := newPlan(t, db, fmt.Sprintf("plan-%s", uuid.NewString()), 1)
	newRate(t, db, plan.ID, 2, "3.00")

	_, err := repo.InsertRate(ctx, &models.CommissionRate{
		ID:               uuid.New(),
		PlanID:           plan.ID,
		DistributorLevel: 2,
		Percentage:       decimal.RequireFromString("4.00"),
		IsActive:         true,
		CreatedBy:        uuid.New(),
	})
	assert.Error(t, err)
}

func TestActiveAssignmentsByUser(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	plan := newPlan(t, db, fmt.Sprintf("plan-%s", uuid.NewString()), 1)

	earlier := time.Now().UTC().Add(-48 * time.Hour)
	later := time.Now().UTC().Add(-24 * time.Hour)

	first := &models.UserCommissionPlan{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		AssignedAt: earlier,
		IsActive:   true,
		AssignedBy: uuid.New(),
	}
	second := &models.UserCommissionPlan{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		AssignedAt: later,
		IsActive:   true,
		AssignedBy: uuid.New(),
	}
	retired := &models.UserCommissionPlan{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		AssignedAt: later,
		IsActive:   false,
		AssignedBy: uuid.New(),
	}
	_, err := repo.InsertAssignment(ctx, first)
	require.NoError(t, err)
	_, err = repo.InsertAssignment(ctx, second)
	require.NoError(t, err)
	require.NoError(t, db.Create(retired).Error)

	assignments, err := repo.ActiveAssignmentsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, first.ID, assignments[0].ID)
	assert.Equal(t, second.ID, assignments[1].ID)
}

func TestUpdateAssignmentTrimsWindow(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	plan := newPlan(t, db, fmt.Sprintf("plan-%s", uuid.NewString()), 1)
	assignment := &models.UserCommissionPlan{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		AssignedAt: time.Now().UTC().Add(-72 * time.Hour),
		IsActive:   true,
		AssignedBy: uuid.New(),
	}
	_, err := repo.InsertAssignment(ctx, assignment)
	require.NoError(t, err)

	cutoff := time.Now().UTC()
	require.NoError(t, repo.UpdateAssignment(ctx, assignment.ID, map[string]any{"expires_at": cutoff}))

	assignments, err := repo.ActiveAssignmentsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].ExpiresAt)
	assert.WithinDuration(t, cutoff, *assignments[0].ExpiresAt, time.Second)
}

func TestUpdatePlanRetires(t *testing.T) {
	db := setupPlansTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	plan := newPlan(t, db, fmt.Sprintf("plan-%s", uuid.NewString()), 1)

	require.NoError(t, repo.UpdatePlan(ctx, plan.ID, map[string]any{"is_active": false}))

	found, err := repo.FindPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, found.IsActive)

	actives, err := repo.ActivePlans(ctx)
	require.NoError(t, err)
	for _, row := range actives {
		assert.NotEqual(t, plan.ID, row.ID)
	}
}
