package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

func setupCredentialsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	table := `
CREATE TABLE IF NOT EXISTS service_credentials (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  key_id TEXT NOT NULL,
  secret_hash TEXT NOT NULL,
  scopes TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  last_used_at DATETIME,
  created_by TEXT NOT NULL,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	require.NoError(t, db.Exec(table).Error)

	nameIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_service_credentials_name ON service_credentials (name)`
	require.NoError(t, db.Exec(nameIndex).Error)

	keyIndex := `
CREATE UNIQUE INDEX IF NOT EXISTS ux_service_credentials_key_id ON service_credentials (key_id)`
	require.NoError(t, db.Exec(keyIndex).Error)

	return db
}

func insertCredential(t *testing.T, repo *Repository, name string) *models.ServiceCredential {
	t.Helper()
	credential := &models.ServiceCredential{
		ID:         uuid.New(),
		Name:       name,
		KeyID:      "ulk_" + uuid.NewString()[:12],
		SecretHash: "$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		Scopes:     pq.StringArray{enums.ScopeEventsWrite.String()},
		IsActive:   true,
		CreatedBy:  uuid.New(),
	}
	require.NoError(t, repo.Create(context.Background(), credential))
	return credential
}

func TestCreateAndFindByKeyID(t *testing.T) {
	repo := NewRepository(setupCredentialsTestDB(t))

	created := insertCredential(t, repo, "intake-"+uuid.NewString())

	found, err := repo.FindByKeyID(context.Background(), created.KeyID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Name, found.Name)
	assert.Equal(t, created.SecretHash, found.SecretHash)
	assert.Equal(t, []string{enums.ScopeEventsWrite.String()}, []string(found.Scopes))
	assert.True(t, found.IsActive)
	assert.Nil(t, found.LastUsedAt)

	_, err = repo.FindByKeyID(context.Background(), "ulk_missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := NewRepository(setupCredentialsTestDB(t))

	name := "intake-" + uuid.NewString()
	insertCredential(t, repo, name)

	duplicate := &models.ServiceCredential{
		ID:         uuid.New(),
		Name:       name,
		KeyID:      "ulk_" + uuid.NewString()[:12],
		SecretHash: "$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		CreatedBy:  uuid.New(),
	}
	require.Error(t, repo.Create(context.Background(), duplicate))
}

func TestTouchLastUsed(t *testing.T) {
	repo := NewRepository(setupCredentialsTestDB(t))

	created := insertCredential(t, repo, "intake-"+uuid.NewString())
	usedAt := time.Date(2026, 8, 22, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastUsed(context.Background(), created.ID, usedAt))

	found, err := repo.FindByKeyID(context.Background(), created.KeyID)
	require.NoError(t, err)
	require.NotNil(t, found.LastUsedAt)
	assert.True(t, found.LastUsedAt.Equal(usedAt))
}
