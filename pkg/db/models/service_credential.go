package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ServiceCredential identifies a machine caller of the revenue-event API.
// KeyID travels in the wire token; SecretHash is the argon2id digest of the
// secret half, which is shown exactly once at issue time.
type ServiceCredential struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name       string         `gorm:"column:name;not null;uniqueIndex"`
	KeyID      string         `gorm:"column:key_id;not null;uniqueIndex"`
	SecretHash string         `gorm:"column:secret_hash;not null"`
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[];default:ARRAY[]::text[]"`
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
	CreatedBy  uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
