package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionRate prices one distributor level inside a plan. Several rows
// may exist per (plan, level) across time; at most one is active. Optional
// gates: MinTradingVolume must be met by the event's context volume, and
// MaxCommission caps the computed payout.
type CommissionRate struct {
	ID               uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PlanID           uuid.UUID        `gorm:"column:plan_id;type:uuid;not null;index:ix_commission_rates_plan_level"`
	DistributorLevel int              `gorm:"column:distributor_level;not null;index:ix_commission_rates_plan_level"`
	Percentage       decimal.Decimal  `gorm:"column:percentage;type:numeric(5,2);not null"`
	MinTradingVolume *decimal.Decimal `gorm:"column:min_trading_volume;type:numeric(18,8)"`
	MaxCommission    *decimal.Decimal `gorm:"column:max_commission;type:numeric(18,8)"`
	IsActive         bool             `gorm:"column:is_active;not null;default:true"`
	CreatedBy        uuid.UUID        `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
