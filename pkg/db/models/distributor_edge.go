package models

import (
	"time"

	"github.com/google/uuid"
)

// DistributorEdge links a distributor to its upline. Level is the
// distributor's own depth counted from a master distributor (level 0); when
// an upline is present it must equal the upline's level plus one. Edges are
// soft-deactivated on detach so historical attribution survives; a partial
// unique index guarantees at most one active edge per distributor.
type DistributorEdge struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DistributorID uuid.UUID  `gorm:"column:distributor_id;type:uuid;not null;index"`
	UplineID      *uuid.UUID `gorm:"column:upline_id;type:uuid;index"`
	Level         int        `gorm:"column:level;not null"`
	IsActive      bool       `gorm:"column:is_active;not null;default:true"`
	AttachedBy    *uuid.UUID `gorm:"column:attached_by;type:uuid"`
	DetachedAt    *time.Time `gorm:"column:detached_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
