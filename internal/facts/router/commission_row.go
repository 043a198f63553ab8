package router

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	factswriter "github.com/rafaelcoron/uplevel-backend/internal/facts/writer"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

func buildCommissionRow(envelope types.Envelope, transactionID, referenceID, toUserID string, amount decimal.Decimal, currency enums.Currency, occurred time.Time, payload any) (types.CommissionFactRow, error) {
	if occurred.IsZero() {
		occurred = envelope.OccurredAt
	}

	payloadJSON, err := factswriter.EncodeJSON(payload)
	if err != nil {
		return types.CommissionFactRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.CommissionFactRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		OccurredAt:    occurred.UTC(),
		TransactionID: transactionID,
		ReferenceID:   referenceID,
		ToUserID:      toUserID,
		Amount:        amount.String(),
		Currency:      currency,
		Payload:       payloadJSON,
	}, nil
}
