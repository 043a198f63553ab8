package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
)

func TestAdminReconTriggerReturnsFinishedRun(t *testing.T) {
	finished := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubReconService{
		run: &models.ReconciliationRun{
			ID:                 uuid.New(),
			Status:             enums.ReconRunStatusCompleted,
			WalletsChecked:     50,
			DiscrepanciesFound: 2,
			StartedAt:          finished.Add(-time.Minute),
			FinishedAt:         &finished,
		},
	}
	handler := AdminReconTrigger(stub, testLogger())

	req := adminRequest(http.MethodPost, "/api/v1/admin/recon/runs", nil, uuid.New(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.runCalls != 1 {
		t.Fatal("expected Run to be invoked once")
	}

	var envelope struct {
		Data reconRunResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.DiscrepanciesFound != 2 || envelope.Data.FinishedAt == nil {
		t.Fatalf("unexpected run payload %+v", envelope.Data)
	}
}

func TestAdminReconTriggerPropagatesErrors(t *testing.T) {
	stub := &stubReconService{err: pkgerrors.New(pkgerrors.CodeDependency, "page wallets")}
	handler := AdminReconTrigger(stub, testLogger())

	req := adminRequest(http.MethodPost, "/api/v1/admin/recon/runs", nil, uuid.New(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
