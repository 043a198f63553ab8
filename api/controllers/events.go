package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/commission"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type revenueEventRequest struct {
	OriginatingUserID uuid.UUID        `json:"originating_user_id" validate:"required"`
	Amount            decimal.Decimal  `json:"amount" validate:"required"`
	Currency          string           `json:"currency" validate:"required"`
	ReferenceID       string           `json:"reference_id" validate:"required,max=255"`
	Type              string           `json:"type" validate:"required"`
	ContextVolume     *decimal.Decimal `json:"context_volume,omitempty"`
}

func (r revenueEventRequest) toEvent() (commission.RevenueEvent, error) {
	currency, err := enums.ParseCurrency(strings.TrimSpace(r.Currency))
	if err != nil {
		return commission.RevenueEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	eventType, err := enums.ParseRevenueEventType(strings.TrimSpace(r.Type))
	if err != nil {
		return commission.RevenueEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event type")
	}
	return commission.RevenueEvent{
		OriginatingUserID: r.OriginatingUserID,
		Amount:            r.Amount,
		Currency:          currency,
		ReferenceID:       strings.TrimSpace(r.ReferenceID),
		Type:              eventType,
		ContextVolume:     r.ContextVolume,
	}, nil
}

type payoutOutcomeResponse struct {
	ToUserID      uuid.UUID               `json:"to_user_id"`
	Level         int                     `json:"level"`
	Amount        decimal.Decimal         `json:"amount"`
	TransactionID *uuid.UUID              `json:"transaction_id,omitempty"`
	Status        enums.TransactionStatus `json:"status"`
	Reason        string                  `json:"reason,omitempty"`
}

type distributionResponse struct {
	ReferenceID string                  `json:"reference_id"`
	Settled     int                     `json:"settled"`
	Outcomes    []payoutOutcomeResponse `json:"outcomes"`
}

func distributionResponseFromResult(result *commission.DistributionResult) distributionResponse {
	resp := distributionResponse{
		ReferenceID: result.ReferenceID,
		Settled:     result.Settled(),
		Outcomes:    make([]payoutOutcomeResponse, 0, len(result.Outcomes)),
	}
	for _, outcome := range result.Outcomes {
		item := payoutOutcomeResponse{
			ToUserID: outcome.ToUserID,
			Level:    outcome.Level,
			Amount:   outcome.Amount,
			Status:   outcome.Status,
			Reason:   outcome.Reason,
		}
		if outcome.TransactionID != uuid.Nil {
			id := outcome.TransactionID
			item.TransactionID = &id
		}
		resp.Outcomes = append(resp.Outcomes, item)
	}
	return resp
}

// RevenueEventIntake accepts one platform revenue event and settles the
// upline payouts it produces. Unsettled payouts surface as a 503 whose
// details still carry every per-payout outcome; a retry with the same
// reference re-executes only the payouts that did not settle.
func RevenueEventIntake(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		var payload revenueEventRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := payload.toEvent()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Distribute(r.Context(), event)
		if err != nil {
			if result == nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			failure := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "some payouts did not settle").
				WithDetails(distributionResponseFromResult(result))
			responses.WriteError(r.Context(), logg, w, failure)
			return
		}

		responses.WriteSuccess(w, distributionResponseFromResult(result))
	}
}
