package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CommissionPlan is a named, versioned set of per-level rates. Plans are
// append-mostly: retiring one means deactivating it, never rewriting rates
// in place.
type CommissionPlan struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"column:name;not null;uniqueIndex:ux_commission_plans_name_version"`
	Version   int            `gorm:"column:version;not null;default:1;uniqueIndex:ux_commission_plans_name_version"`
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	CreatedBy uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
