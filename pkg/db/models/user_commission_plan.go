package models

import (
	"time"

	"github.com/google/uuid"
)

// UserCommissionPlan assigns a plan to a user for a window. AssignedAt is
// inclusive, ExpiresAt exclusive when set; at most one assignment per user
// may be active at any instant.
type UserCommissionPlan struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID     uuid.UUID  `gorm:"column:plan_id;type:uuid;not null"`
	AssignedAt time.Time  `gorm:"column:assigned_at;not null"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	IsActive   bool       `gorm:"column:is_active;not null;default:true"`
	AssignedBy uuid.UUID  `gorm:"column:assigned_by;type:uuid;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
