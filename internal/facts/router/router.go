package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/registry"
)

// ErrUnsupportedEventType marks events that flow on the facts topic but have
// no BigQuery sink. The worker acks them without retrying.
var ErrUnsupportedEventType = errors.New("unsupported facts event type")

// Writer delivers BigQuery rows produced by facts handlers.
type Writer interface {
	InsertCommission(ctx context.Context, row types.CommissionFactRow) error
	InsertDiscrepancy(ctx context.Context, row types.WalletDiscrepancyFactRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router dispatches facts envelopes to the configured handler per event type.
// Payloads are decoded through a versioned decoder registry keyed on the
// schema version the producer stamped into the envelope.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
	decoders *registry.DecoderRegistry
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventCommissionCompleted:    newCommissionCompletedHandler(writer, logg),
		enums.EventCommissionFailed:       newCommissionFailedHandler(writer, logg),
		enums.EventWalletDiscrepancyFound: newDiscrepancyFoundHandler(writer, logg),
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; !ok || custom == nil {
			continue
		}
		handlers[event] = custom
	}

	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventCommissionCompleted, 1, decodeJSON[payloads.CommissionCompletedEvent]())
	decoders.Register(enums.EventCommissionFailed, 1, decodeJSON[payloads.CommissionFailedEvent]())
	decoders.Register(enums.EventWalletDiscrepancyFound, 1, decodeJSON[payloads.WalletDiscrepancyFoundEvent]())

	return &Router{
		handlers: handlers,
		decoders: decoders,
		logg:     logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}

	// Envelopes predating the version stamp decode as v1.
	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	payload, err := r.decoders.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return handler.Handle(ctx, envelope, payload)
}

func decodeJSON[T any]() func(json.RawMessage) (interface{}, error) {
	return func(payload json.RawMessage) (interface{}, error) {
		var event T
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return &event, nil
	}
}
