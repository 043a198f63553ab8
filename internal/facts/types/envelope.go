package types

import (
	"encoding/json"
	"time"

	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// Envelope is the canonical commission facts Pub/Sub envelope. The payload
// field carries the typed event body exactly as the outbox row stored it,
// and Version is the payload schema version the producer stamped.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	Version       int                       `json:"version"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
