package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// UserRoleAssignment grants one role to one user. Grants are non-exclusive
// and unique per (user_id, role); the identity platform writes them, this
// service reads them for placement eligibility.
type UserRoleAssignment struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID      `gorm:"column:user_id;type:uuid;not null;index"`
	Role       enums.UserRole `gorm:"column:role;type:user_role_enum;not null"`
	AssignedBy *uuid.UUID     `gorm:"column:assigned_by;type:uuid"`
	AssignedAt time.Time      `gorm:"column:assigned_at;autoCreateTime"`
}
