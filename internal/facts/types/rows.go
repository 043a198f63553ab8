package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// CommissionFactRow mirrors the commission_facts BigQuery schema. Amounts are
// stored as exact decimal strings so the warehouse never rounds a payout.
type CommissionFactRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	TransactionID string             `bigquery:"transaction_id"`
	ReferenceID   string             `bigquery:"reference_id"`
	FromUserID    *string            `bigquery:"from_user_id"`
	ToUserID      string             `bigquery:"to_user_id"`
	Amount        string             `bigquery:"amount"`
	Currency      enums.Currency     `bigquery:"currency"`
	SourceType    *string            `bigquery:"source_type"`
	SourceLevel   *int64             `bigquery:"source_level"`
	FailureReason *string            `bigquery:"failure_reason"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// WalletDiscrepancyFactRow mirrors the wallet_discrepancy_facts BigQuery schema.
type WalletDiscrepancyFactRow struct {
	EventID         string             `bigquery:"event_id"`
	OccurredAt      time.Time          `bigquery:"occurred_at"`
	RunID           string             `bigquery:"run_id"`
	WalletID        string             `bigquery:"wallet_id"`
	UserID          string             `bigquery:"user_id"`
	Currency        enums.Currency     `bigquery:"currency"`
	StoredBalance   string             `bigquery:"stored_balance"`
	ComputedBalance string             `bigquery:"computed_balance"`
	Drift           string             `bigquery:"drift"`
	Payload         cbigquery.NullJSON `bigquery:"payload"`
}
