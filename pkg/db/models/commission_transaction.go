package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// CommissionTransaction is the immutable ledger record of one payout
// attempt. (ReferenceID, Type, ToUserID) is the idempotency key: a partial
// unique index over completed rows guarantees at most one settled payout
// per key while letting failed attempts pile up underneath for audit.
type CommissionTransaction struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FromUserID    uuid.UUID               `gorm:"column:from_user_id;type:uuid;not null"`
	ToUserID      uuid.UUID               `gorm:"column:to_user_id;type:uuid;not null;index:ix_commission_transactions_to_user"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:numeric(18,8);not null"`
	Currency      enums.Currency          `gorm:"column:currency;type:text;not null"`
	Type          enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null;default:'pending'"`
	ReferenceID   string                  `gorm:"column:reference_id;not null;index:ix_commission_transactions_reference"`
	SourceType    *enums.RevenueEventType `gorm:"column:source_type;type:revenue_event_type_enum"`
	SourceLevel   *int                    `gorm:"column:source_level"`
	FailureReason *string                 `gorm:"column:failure_reason"`
	ProcessedAt   *time.Time              `gorm:"column:processed_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
