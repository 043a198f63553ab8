package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/internal/recon"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

func TestReconRunsReturnsPage(t *testing.T) {
	finished := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubReconService{
		runs: &recon.RunsResult{
			Items: []models.ReconciliationRun{
				{
					ID:             uuid.New(),
					Status:         enums.ReconRunStatusCompleted,
					WalletsChecked: 120,
					StartedAt:      finished.Add(-time.Minute),
					FinishedAt:     &finished,
				},
			},
			Cursor: "more",
		},
	}
	handler := ReconRuns(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recon/runs?limit=10&cursor=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.gotParams.Limit != 10 || stub.gotParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", stub.gotParams)
	}

	var envelope struct {
		Data reconRunListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].WalletsChecked != 120 {
		t.Fatalf("unexpected items %+v", envelope.Data.Items)
	}
	if envelope.Data.Cursor != "more" {
		t.Fatalf("unexpected cursor %q", envelope.Data.Cursor)
	}
}

func TestReconRunDiscrepanciesRejectsInvalidRunID(t *testing.T) {
	handler := ReconRunDiscrepancies(&stubReconService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recon/runs/not-a-uuid/discrepancies", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("runID", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid run id, got %d", rec.Code)
	}
}

func TestReconRunDiscrepanciesSuccess(t *testing.T) {
	runID := uuid.New()
	stub := &stubReconService{
		discrepancies: []models.WalletDiscrepancy{
			{
				ID:              uuid.New(),
				RunID:           runID,
				WalletID:        uuid.New(),
				StoredBalance:   decimal.RequireFromString("100.00"),
				ComputedBalance: decimal.RequireFromString("95.00"),
				Drift:           decimal.RequireFromString("5.00"),
			},
		},
	}
	handler := ReconRunDiscrepancies(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recon/runs/"+runID.String()+"/discrepancies", nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("runID", runID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.gotRunID != runID {
		t.Fatalf("unexpected run id %s", stub.gotRunID)
	}

	var envelope struct {
		Data discrepancyListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(envelope.Data.Discrepancies))
	}
	if !envelope.Data.Discrepancies[0].Drift.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("unexpected drift %s", envelope.Data.Discrepancies[0].Drift)
	}
}

type stubReconService struct {
	run           *models.ReconciliationRun
	runs          *recon.RunsResult
	discrepancies []models.WalletDiscrepancy
	err           error
	runCalls      int
	gotParams     recon.RunsParams
	gotRunID      uuid.UUID
}

func (s *stubReconService) Run(ctx context.Context) (*models.ReconciliationRun, error) {
	s.runCalls++
	return s.run, s.err
}

func (s *stubReconService) Runs(ctx context.Context, params recon.RunsParams) (*recon.RunsResult, error) {
	s.gotParams = params
	return s.runs, s.err
}

func (s *stubReconService) Discrepancies(ctx context.Context, runID uuid.UUID) ([]models.WalletDiscrepancy, error) {
	s.gotRunID = runID
	return s.discrepancies, s.err
}
