package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

func TestRouterSkipsEventsWithoutSink(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{
		EventType: enums.EventReconciliationCompleted,
		Payload:   []byte(`{"run_id":"00000000-0000-0000-0000-000000000001"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}

	env.EventType = enums.EventDistributorAttached
	if err := router.Handle(context.Background(), env); !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error for distributor event, got %v", err)
	}
}

func TestRouterRoutesToHandler(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventCommissionCompleted: handler,
	})
	payload := payloads.CommissionCompletedEvent{
		TransactionID: uuid.New(),
		ToUserID:      uuid.New(),
		Amount:        decimal.RequireFromString("4.2"),
		Currency:      enums.CurrencyUSDT,
	}
	data, _ := json.Marshal(payload)
	env := types.Envelope{
		EventType: enums.EventCommissionCompleted,
		Payload:   data,
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router := newTestRouter(t, nil)
	env := types.Envelope{EventType: enums.EventCommissionFailed}
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestRouterRejectsUnknownSchemaVersion(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, map[enums.OutboxEventType]Handler{
		enums.EventCommissionCompleted: handler,
	})
	env := types.Envelope{
		EventType: enums.EventCommissionCompleted,
		Version:   2,
		Payload:   []byte(`{}`),
	}
	err := router.Handle(context.Background(), env)
	if err == nil {
		t.Fatal("expected error for unregistered version")
	}
	if errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("version mismatch should not read as unsupported event: %v", err)
	}
	if handler.called {
		t.Fatal("handler must not run without a decoded payload")
	}
}

func newTestRouter(t *testing.T, overrides map[enums.OutboxEventType]Handler) *Router {
	t.Helper()
	router, err := NewRouter(&fakeWriter{}, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

type stubHandler struct {
	called bool
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	return nil
}
