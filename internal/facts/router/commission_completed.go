package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

type commissionCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCommissionCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &commissionCompletedHandler{writer: writer, logg: logg}
}

func (h *commissionCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CommissionCompletedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for commission_completed")
	}
	fields := map[string]any{
		"event_type":     envelope.EventType,
		"transaction_id": event.TransactionID,
		"to_user_id":     event.ToUserID,
		"amount":         event.Amount.String(),
		"processed_at":   event.ProcessedAt,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildCommissionRow(
		envelope,
		event.TransactionID.String(),
		event.ReferenceID,
		event.ToUserID.String(),
		event.Amount,
		event.Currency,
		event.ProcessedAt,
		event,
	)
	if err != nil {
		h.logg.Error(logCtx, "failed to build commission fact row", err)
		return err
	}
	if event.FromUserID != uuid.Nil {
		row.FromUserID = stringPtr(event.FromUserID.String())
	}
	if event.SourceType != nil {
		row.SourceType = stringPtr(string(*event.SourceType))
	}
	if event.SourceLevel != nil {
		row.SourceLevel = int64Ptr(int64(*event.SourceLevel))
	}

	if err := h.writer.InsertCommission(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert commission fact row", err)
		return err
	}

	h.logg.Info(logCtx, "commission_completed handler inserted fact row")
	return nil
}
