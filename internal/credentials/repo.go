package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
)

// Repository exposes service-credential persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a credentials repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new credential row.
func (r *Repository) Create(ctx context.Context, credential *models.ServiceCredential) error {
	return r.db.WithContext(ctx).Create(credential).Error
}

// FindByKeyID retrieves the credential matching the wire key identifier.
func (r *Repository) FindByKeyID(ctx context.Context, keyID string) (*models.ServiceCredential, error) {
	var credential models.ServiceCredential
	if err := r.db.WithContext(ctx).Where("key_id = ?", keyID).First(&credential).Error; err != nil {
		return nil, err
	}
	return &credential, nil
}

// TouchLastUsed refreshes the credential's last_used_at timestamp.
func (r *Repository) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ServiceCredential{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).Error
}
