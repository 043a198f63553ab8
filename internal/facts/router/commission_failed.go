package router

import (
	"context"
	"fmt"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

type commissionFailedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCommissionFailedHandler(writer Writer, logg *logger.Logger) Handler {
	return &commissionFailedHandler{writer: writer, logg: logg}
}

func (h *commissionFailedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CommissionFailedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for commission_failed")
	}
	fields := map[string]any{
		"event_type":     envelope.EventType,
		"transaction_id": event.TransactionID,
		"to_user_id":     event.ToUserID,
		"amount":         event.Amount.String(),
		"reason":         event.Reason,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildCommissionRow(
		envelope,
		event.TransactionID.String(),
		event.ReferenceID,
		event.ToUserID.String(),
		event.Amount,
		event.Currency,
		envelope.OccurredAt,
		event,
	)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commission fact row", err)
		return err
	}
	row.FailureReason = stringPtr(event.Reason)

	if err := h.writer.InsertCommission(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commission fact row", err)
		return err
	}

	h.logg.Info(logCtx, "commission_failed handler inserted fact row")
	return nil
}
