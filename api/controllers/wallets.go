package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/api/responses"
	"github.com/rafaelcoron/uplevel-backend/api/validators"
	"github.com/rafaelcoron/uplevel-backend/internal/wallets"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

type walletBalanceResponse struct {
	UserID   uuid.UUID       `json:"user_id"`
	Currency enums.Currency  `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type transactionResponse struct {
	ID            uuid.UUID               `json:"id"`
	FromUserID    uuid.UUID               `json:"from_user_id"`
	ToUserID      uuid.UUID               `json:"to_user_id"`
	Amount        decimal.Decimal         `json:"amount"`
	Currency      enums.Currency          `json:"currency"`
	Type          enums.TransactionType   `json:"type"`
	Status        enums.TransactionStatus `json:"status"`
	ReferenceID   string                  `json:"reference_id"`
	SourceType    *enums.RevenueEventType `json:"source_type,omitempty"`
	SourceLevel   *int                    `json:"source_level,omitempty"`
	FailureReason *string                 `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time              `json:"processed_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func transactionResponseFromModel(m models.CommissionTransaction) transactionResponse {
	return transactionResponse{
		ID:            m.ID,
		FromUserID:    m.FromUserID,
		ToUserID:      m.ToUserID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Type:          m.Type,
		Status:        m.Status,
		ReferenceID:   m.ReferenceID,
		SourceType:    m.SourceType,
		SourceLevel:   m.SourceLevel,
		FailureReason: m.FailureReason,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
	}
}

type transactionListResponse struct {
	Items  []transactionResponse `json:"items"`
	Cursor string                `json:"cursor,omitempty"`
}

func parseWalletUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return userID, nil
}

// WalletBalance returns the cached balance for one user wallet. Non-admin
// callers may only read their own wallets.
func WalletBalance(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		userID, err := parseWalletUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !actor.canActFor(userID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user"))
			return
		}

		rawCurrency := strings.TrimSpace(r.URL.Query().Get("currency"))
		if rawCurrency == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "currency query parameter is required"))
			return
		}
		currency, err := enums.ParseCurrency(rawCurrency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		balance, err := svc.Balance(r.Context(), userID, currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, walletBalanceResponse{
			UserID:   userID,
			Currency: currency,
			Balance:  balance,
		})
	}
}

// WalletTransactions returns one cursor page of the user's ledger history,
// newest first. Currency is optional and narrows the page to one wallet.
func WalletTransactions(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallets service unavailable"))
			return
		}

		userID, err := parseWalletUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !actor.canActFor(userID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user"))
			return
		}

		params := wallets.HistoryParams{
			UserID: userID,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if rawCurrency := strings.TrimSpace(r.URL.Query().Get("currency")); rawCurrency != "" {
			currency, err := enums.ParseCurrency(rawCurrency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
				return
			}
			params.Currency = &currency
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		result, err := svc.Transactions(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := transactionListResponse{
			Items:  make([]transactionResponse, 0, len(result.Items)),
			Cursor: result.Cursor,
		}
		for _, item := range result.Items {
			resp.Items = append(resp.Items, transactionResponseFromModel(item))
		}
		responses.WriteSuccess(w, resp)
	}
}
