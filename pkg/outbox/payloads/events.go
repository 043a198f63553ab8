package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// CommissionCompletedEvent is emitted when a commission settles into a wallet.
type CommissionCompletedEvent struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	ReferenceID   string                  `json:"reference_id"`
	FromUserID    uuid.UUID               `json:"from_user_id"`
	ToUserID      uuid.UUID               `json:"to_user_id"`
	Amount        decimal.Decimal         `json:"amount"`
	Currency      enums.Currency          `json:"currency"`
	SourceType    *enums.RevenueEventType `json:"source_type,omitempty"`
	SourceLevel   *int                    `json:"source_level,omitempty"`
	ProcessedAt   time.Time               `json:"processed_at"`
}

// CommissionFailedEvent is emitted when a payout attempt reaches FAILED.
type CommissionFailedEvent struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	ReferenceID   string          `json:"reference_id"`
	ToUserID      uuid.UUID       `json:"to_user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      enums.Currency  `json:"currency"`
	Reason        string          `json:"reason,omitempty"`
}

// WalletDiscrepancyFoundEvent reports one wallet whose cached balance drifted
// from the recomputed ledger sum.
type WalletDiscrepancyFoundEvent struct {
	RunID           uuid.UUID       `json:"run_id"`
	WalletID        uuid.UUID       `json:"wallet_id"`
	UserID          uuid.UUID       `json:"user_id"`
	Currency        enums.Currency  `json:"currency"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Drift           decimal.Decimal `json:"drift"`
}

// ReconciliationCompletedEvent summarizes one finished balance sweep.
type ReconciliationCompletedEvent struct {
	RunID              uuid.UUID `json:"run_id"`
	WalletsChecked     int       `json:"wallets_checked"`
	DiscrepanciesFound int       `json:"discrepancies_found"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// DistributorAttachedEvent is emitted when a distributor joins an upline.
type DistributorAttachedEvent struct {
	EdgeID        uuid.UUID  `json:"edge_id"`
	DistributorID uuid.UUID  `json:"distributor_id"`
	UplineID      *uuid.UUID `json:"upline_id,omitempty"`
	Level         int        `json:"level"`
	AttachedBy    *uuid.UUID `json:"attached_by,omitempty"`
}

// DistributorDetachedEvent is emitted when an edge is deactivated.
type DistributorDetachedEvent struct {
	EdgeID        uuid.UUID  `json:"edge_id"`
	DistributorID uuid.UUID  `json:"distributor_id"`
	UplineID      *uuid.UUID `json:"upline_id,omitempty"`
	Level         int        `json:"level"`
	DetachedAt    time.Time  `json:"detached_at"`
}
