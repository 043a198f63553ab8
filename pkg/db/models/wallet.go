package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// Wallet holds one user's balance in one currency. Balance is derived but
// cached: it must always equal the signed sum of completed transactions
// touching the wallet, and only the ledger writer mutates it.
type Wallet struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_wallets_user_currency"`
	Currency  enums.Currency  `gorm:"column:currency;type:text;not null;uniqueIndex:ux_wallets_user_currency"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(18,8);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
