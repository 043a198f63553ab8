package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletDiscrepancy reports drift between a wallet's cached balance and the
// balance recomputed from completed transactions. Discrepancies are
// reports, not corrections; remediation happens outside this system.
type WalletDiscrepancy struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RunID           uuid.UUID       `gorm:"column:run_id;type:uuid;not null;index"`
	WalletID        uuid.UUID       `gorm:"column:wallet_id;type:uuid;not null;index"`
	StoredBalance   decimal.Decimal `gorm:"column:stored_balance;type:numeric(18,8);not null"`
	ComputedBalance decimal.Decimal `gorm:"column:computed_balance;type:numeric(18,8);not null"`
	Drift           decimal.Decimal `gorm:"column:drift;type:numeric(18,8);not null"`
	DetectedAt      time.Time       `gorm:"column:detected_at;autoCreateTime"`
}
