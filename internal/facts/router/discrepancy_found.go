package router

import (
	"context"
	"fmt"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	factswriter "github.com/rafaelcoron/uplevel-backend/internal/facts/writer"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

type discrepancyFoundHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newDiscrepancyFoundHandler(writer Writer, logg *logger.Logger) Handler {
	return &discrepancyFoundHandler{writer: writer, logg: logg}
}

func (h *discrepancyFoundHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.WalletDiscrepancyFoundEvent)
	if !ok {
		return fmt.Errorf("invalid payload for wallet_discrepancy_found")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"run_id":     event.RunID,
		"wallet_id":  event.WalletID,
		"drift":      event.Drift.String(),
	}
	logCtx := h.logg.WithFields(ctx, fields)

	payloadJSON, err := factswriter.EncodeJSON(event)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode discrepancy payload", err)
		return fmt.Errorf("encode payload json: %w", err)
	}

	row := types.WalletDiscrepancyFactRow{
		EventID:         envelope.EventID,
		OccurredAt:      envelope.OccurredAt.UTC(),
		RunID:           event.RunID.String(),
		WalletID:        event.WalletID.String(),
		UserID:          event.UserID.String(),
		Currency:        event.Currency,
		StoredBalance:   event.StoredBalance.String(),
		ComputedBalance: event.ComputedBalance.String(),
		Drift:           event.Drift.String(),
		Payload:         payloadJSON,
	}

	if err := h.writer.InsertDiscrepancy(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert discrepancy fact row", err)
		return err
	}

	h.logg.Info(logCtx, "wallet_discrepancy_found handler inserted fact row")
	return nil
}
