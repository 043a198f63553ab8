package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. Role membership lives in
// user_role_assignments; the trading side of the platform owns everything
// else about the account.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string     `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string     `gorm:"column:display_name;not null"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	ReferredBy  *uuid.UUID `gorm:"column:referred_by;type:uuid"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
