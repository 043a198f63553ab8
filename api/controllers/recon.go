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
	"github.com/rafaelcoron/uplevel-backend/internal/recon"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

type reconRunResponse struct {
	ID                 uuid.UUID            `json:"id"`
	Status             enums.ReconRunStatus `json:"status"`
	WalletsChecked     int                  `json:"wallets_checked"`
	DiscrepanciesFound int                  `json:"discrepancies_found"`
	StartedAt          time.Time            `json:"started_at"`
	FinishedAt         *time.Time           `json:"finished_at,omitempty"`
	LastError          *string              `json:"last_error,omitempty"`
}

func reconRunResponseFromModel(m models.ReconciliationRun) reconRunResponse {
	return reconRunResponse{
		ID:                 m.ID,
		Status:             m.Status,
		WalletsChecked:     m.WalletsChecked,
		DiscrepanciesFound: m.DiscrepanciesFound,
		StartedAt:          m.StartedAt,
		FinishedAt:         m.FinishedAt,
		LastError:          m.LastError,
	}
}

type reconRunListResponse struct {
	Items  []reconRunResponse `json:"items"`
	Cursor string             `json:"cursor,omitempty"`
}

type discrepancyListResponse struct {
	RunID         uuid.UUID             `json:"run_id"`
	Discrepancies []discrepancyResponse `json:"discrepancies"`
}

type discrepancyResponse struct {
	ID              uuid.UUID       `json:"id"`
	RunID           uuid.UUID       `json:"run_id"`
	WalletID        uuid.UUID       `json:"wallet_id"`
	StoredBalance   decimal.Decimal `json:"stored_balance"`
	ComputedBalance decimal.Decimal `json:"computed_balance"`
	Drift           decimal.Decimal `json:"drift"`
	DetectedAt      time.Time       `json:"detected_at"`
}

func discrepancyResponseFromModel(m models.WalletDiscrepancy) discrepancyResponse {
	return discrepancyResponse{
		ID:              m.ID,
		RunID:           m.RunID,
		WalletID:        m.WalletID,
		StoredBalance:   m.StoredBalance,
		ComputedBalance: m.ComputedBalance,
		Drift:           m.Drift,
		DetectedAt:      m.DetectedAt,
	}
}

// ReconRuns returns one cursor page of reconciliation runs, newest first.
func ReconRuns(svc recon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recon service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Runs(r.Context(), recon.RunsParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := reconRunListResponse{
			Items:  make([]reconRunResponse, 0, len(result.Items)),
			Cursor: result.Cursor,
		}
		for _, item := range result.Items {
			resp.Items = append(resp.Items, reconRunResponseFromModel(item))
		}
		responses.WriteSuccess(w, resp)
	}
}

// ReconRunDiscrepancies returns every discrepancy one run detected.
func ReconRunDiscrepancies(svc recon.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "recon service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "runID"))
		if raw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "run id is required"))
			return
		}
		runID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid run id"))
			return
		}

		items, err := svc.Discrepancies(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := discrepancyListResponse{
			RunID:         runID,
			Discrepancies: make([]discrepancyResponse, 0, len(items)),
		}
		for _, item := range items {
			resp.Discrepancies = append(resp.Discrepancies, discrepancyResponseFromModel(item))
		}
		responses.WriteSuccess(w, resp)
	}
}
