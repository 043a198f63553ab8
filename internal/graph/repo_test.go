package graph

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

func setupGraphTestDB(t *testing.T) *gorm.DB {
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
	edges := `
CREATE TABLE IF NOT EXISTS distributor_edges (
  id TEXT PRIMARY KEY,
  distributor_id TEXT NOT NULL,
  upline_id TEXT,
  level INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  attached_by TEXT,
  detached_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	activeIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_distributor_edges_active_distributor
  ON distributor_edges (distributor_id) WHERE is_active;`
	roles := `
CREATE TABLE IF NOT EXISTS user_role_assignments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  assigned_by TEXT,
  assigned_at DATETIME
);`
	roleIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_user_role_assignments_user_role
  ON user_role_assignments (user_id, role);`
	require.NoError(t, db.Exec(users).Error)
	require.NoError(t, db.Exec(edges).Error)
	require.NoError(t, db.Exec(activeIndex).Error)
	require.NoError(t, db.Exec(roles).Error)
	require.NoError(t, db.Exec(roleIndex).Error)
	return db
}

func newGraphUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:          uuid.New(),
		Email:       fmt.Sprintf("%s@example.com", uuid.NewString()),
		DisplayName: "Distributor",
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newActiveEdge(t *testing.T, db *gorm.DB, distributorID uuid.UUID, uplineID *uuid.UUID, level int) *models.DistributorEdge {
	t.Helper()

	edge := &models.DistributorEdge{
		ID:            uuid.New(),
		DistributorID: distributorID,
		UplineID:      uplineID,
		Level:         level,
		IsActive:      true,
	}
	require.NoError(t, db.Create(edge).Error)
	return edge
}

func TestActiveEdgeLifecycle(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	master := newGraphUser(t, db)
	edge := newActiveEdge(t, db, master.ID, nil, 0)

	found, err := repo.ActiveEdgeByDistributor(ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, edge.ID, found.ID)
	assert.Nil(t, found.UplineID)
	assert.Equal(t, 0, found.Level)

	detachedAt := time.Now().UTC()
	require.NoError(t, repo.DeactivateEdge(ctx, edge.ID, detachedAt))

	_, err = repo.ActiveEdgeByDistributor(ctx, master.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var stored models.DistributorEdge
	require.NoError(t, db.Where("id = ?", edge.ID).First(&stored).Error)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.DetachedAt)
}

func TestSecondActiveEdgeRejected(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	distributor := newGraphUser(t, db)
	newActiveEdge(t, db, distributor.ID, nil, 0)

	_, err := repo.InsertEdge(ctx, &models.DistributorEdge{
		ID:            uuid.New(),
		DistributorID: distributor.ID,
		UplineID:      nil,
		Level:         0,
		IsActive:      true,
	})
	assert.Error(t, err)
}

func TestActiveEdgesSkipsDetached(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	master := newGraphUser(t, db)
	child := newGraphUser(t, db)
	former := newGraphUser(t, db)

	masterEdge := newActiveEdge(t, db, master.ID, nil, 0)
	childEdge := newActiveEdge(t, db, child.ID, &master.ID, 1)
	formerEdge := newActiveEdge(t, db, former.ID, &master.ID, 1)
	require.NoError(t, repo.DeactivateEdge(ctx, formerEdge.ID, time.Now().UTC()))

	edges, err := repo.ActiveEdges(ctx)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool, len(edges))
	for _, edge := range edges {
		ids[edge.ID] = true
	}
	assert.True(t, ids[masterEdge.ID])
	assert.True(t, ids[childEdge.ID])
	assert.False(t, ids[formerEdge.ID])
}

func TestActiveEdgesByUplines(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	master := newGraphUser(t, db)
	left := newGraphUser(t, db)
	right := newGraphUser(t, db)
	grandchild := newGraphUser(t, db)

	newActiveEdge(t, db, master.ID, nil, 0)
	leftEdge := newActiveEdge(t, db, left.ID, &master.ID, 1)
	rightEdge := newActiveEdge(t, db, right.ID, &master.ID, 1)
	grandEdge := newActiveEdge(t, db, grandchild.ID, &left.ID, 2)

	edges, err := repo.ActiveEdgesByUplines(ctx, []uuid.UUID{master.ID})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	found := map[uuid.UUID]bool{edges[0].ID: true, edges[1].ID: true}
	assert.True(t, found[leftEdge.ID])
	assert.True(t, found[rightEdge.ID])

	edges, err = repo.ActiveEdgesByUplines(ctx, []uuid.UUID{left.ID, right.ID})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, grandEdge.ID, edges[0].ID)

	edges, err = repo.ActiveEdgesByUplines(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestUpdateEdgeLevel(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	master := newGraphUser(t, db)
	child := newGraphUser(t, db)
	newActiveEdge(t, db, master.ID, nil, 0)
	edge := newActiveEdge(t, db, child.ID, &master.ID, 5)

	require.NoError(t, repo.UpdateEdgeLevel(ctx, edge.ID, 1))

	found, err := repo.ActiveEdgeByDistributor(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.Level)
}

func TestFindUser(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := newGraphUser(t, db)

	found, err := repo.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email)

	_, err = repo.FindUser(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHasRole(t *testing.T) {
	db := setupGraphTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := newGraphUser(t, db)
	require.NoError(t, db.Create(&models.UserRoleAssignment{
		ID:     uuid.New(),
		UserID: user.ID,
		Role:   enums.RoleMasterDistributor,
	}).Error)

	has, err := repo.HasRole(ctx, user.ID, enums.RoleMasterDistributor)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasRole(ctx, user.ID, enums.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = repo.HasRole(ctx, uuid.New(), enums.RoleMasterDistributor)
	require.NoError(t, err)
	assert.False(t, has)
}
