package commission

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	"github.com/rafaelcoron/uplevel-backend/internal/ledger"
	"github.com/rafaelcoron/uplevel-backend/internal/plans"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type stubChain struct {
	entries []graph.UplineEntry
	err     error
	calls   int
}

func (s *stubChain) UplineChain(_ context.Context, _ uuid.UUID, _ int) ([]graph.UplineEntry, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]graph.UplineEntry(nil), s.entries...), nil
}

type rateKey struct {
	userID uuid.UUID
	level  int
}

type stubRates struct {
	rates map[rateKey]*plans.RateView
}

func (s *stubRates) ActiveRate(_ context.Context, userID uuid.UUID, level int, _ time.Time) (*plans.RateView, error) {
	view, ok := s.rates[rateKey{userID: userID, level: level}]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeRateNotFound, "no active rate for level")
	}
	cp := *view
	return &cp, nil
}

func (s *stubRates) set(userID uuid.UUID, level int, view *plans.RateView) {
	if s.rates == nil {
		s.rates = make(map[rateKey]*plans.RateView)
	}
	s.rates[rateKey{userID: userID, level: level}] = view
}

type stubUsers struct {
	users map[uuid.UUID]*models.User
}

func (s *stubUsers) FindUser(_ context.Context, userID uuid.UUID) (*models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *stubUsers) add(userID uuid.UUID, active bool) {
	if s.users == nil {
		s.users = make(map[uuid.UUID]*models.User)
	}
	s.users[userID] = &models.User{
		ID:          userID,
		Email:       userID.String() + "@example.com",
		DisplayName: "distributor " + userID.String()[:8],
		IsActive:    active,
	}
}

type stubApplier struct {
	mu      sync.Mutex
	applied []ledger.Proposal
	errFor  map[uuid.UUID]error
}

func (s *stubApplier) Apply(_ context.Context, proposal ledger.Proposal) (*models.CommissionTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errFor[proposal.ToUserID]; ok {
		return nil, err
	}
	s.applied = append(s.applied, proposal)
	processedAt := time.Now().UTC()
	return &models.CommissionTransaction{
		ID:          uuid.New(),
		FromUserID:  proposal.FromUserID,
		ToUserID:    proposal.ToUserID,
		Amount:      proposal.Amount,
		Currency:    proposal.Currency,
		Type:        proposal.Type,
		Status:      enums.TransactionStatusCompleted,
		ReferenceID: proposal.ReferenceID,
		SourceType:  proposal.SourceType,
		SourceLevel: proposal.SourceLevel,
		ProcessedAt: &processedAt,
	}, nil
}

func (s *stubApplier) failFor(userID uuid.UUID, err error) {
	if s.errFor == nil {
		s.errFor = make(map[uuid.UUID]error)
	}
	s.errFor[userID] = err
}

type commissionFixture struct {
	chain   *stubChain
	rates   *stubRates
	users   *stubUsers
	applier *stubApplier
	svc     Service
}

func newCommissionFixture(t *testing.T) *commissionFixture {
	t.Helper()
	fixture := &commissionFixture{
		chain:   &stubChain{},
		rates:   &stubRates{},
		users:   &stubUsers{},
		applier: &stubApplier{},
	}
	svc, err := NewService(ServiceParams{
		Graph:  fixture.chain,
		Rates:  fixture.rates,
		Users:  fixture.users,
		Ledger: fixture.applier,
		Logger: logger.New(logger.Options{ServiceName: "commission-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

// seedUpline wires a three-hop upline for an originator at level four:
// nearest ancestor at level three, then two and one, each active with a
// flat percentage at their own level.
func (f *commissionFixture) seedUpline(t *testing.T) (originator, nearest, middle, far uuid.UUID) {
	t.Helper()
	originator = uuid.New()
	nearest = uuid.New()
	middle = uuid.New()
	far = uuid.New()
	f.chain.entries = []graph.UplineEntry{
		{UserID: nearest, Level: 3},
		{UserID: middle, Level: 2},
		{UserID: far, Level: 1},
	}
	f.users.add(nearest, true)
	f.users.add(middle, true)
	f.users.add(far, true)
	f.rates.set(nearest, 3, percentRate("1.5"))
	f.rates.set(middle, 2, percentRate("1"))
	f.rates.set(far, 1, percentRate("0.5"))
	return originator, nearest, middle, far
}

func percentRate(pct string) *plans.RateView {
	return &plans.RateView{
		PlanID:     uuid.New(),
		Percentage: decimal.RequireFromString(pct),
	}
}

func tradeEvent(originator uuid.UUID, amount string) RevenueEvent {
	return RevenueEvent{
		OriginatingUserID: originator,
		Amount:            decimal.RequireFromString(amount),
		Currency:          enums.CurrencyUSDT,
		ReferenceID:       "trade-" + uuid.NewString(),
		Type:              enums.RevenueEventTradeFee,
	}
}

func TestProposePaysEachChainEntry(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, nearest, middle, far := fixture.seedUpline(t)

	event := tradeEvent(originator, "1000")
	payouts, err := fixture.svc.Propose(context.Background(), event)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 3 {
		t.Fatalf("expected 3 payouts, got %d", len(payouts))
	}

	wantRecipients := []uuid.UUID{nearest, middle, far}
	wantLevels := []int{3, 2, 1}
	wantAmounts := []string{"15", "10", "5"}
	for i, payout := range payouts {
		if payout.ToUserID != wantRecipients[i] {
			t.Fatalf("payout %d recipient = %s, want %s", i, payout.ToUserID, wantRecipients[i])
		}
		if payout.SourceLevel != wantLevels[i] {
			t.Fatalf("payout %d level = %d, want %d", i, payout.SourceLevel, wantLevels[i])
		}
		if !payout.Amount.Equal(decimal.RequireFromString(wantAmounts[i])) {
			t.Fatalf("payout %d amount = %s, want %s", i, payout.Amount, wantAmounts[i])
		}
		if payout.FromUserID != originator {
			t.Fatalf("payout %d from = %s, want originator", i, payout.FromUserID)
		}
		if payout.Type != enums.TransactionTypeCommission {
			t.Fatalf("payout %d type = %s", i, payout.Type)
		}
		if payout.SourceType != enums.RevenueEventTradeFee {
			t.Fatalf("payout %d source type = %s", i, payout.SourceType)
		}
		if payout.Currency != enums.CurrencyUSDT {
			t.Fatalf("payout %d currency = %s", i, payout.Currency)
		}
		if payout.ReferenceID != event.ReferenceID {
			t.Fatalf("payout %d reference = %s", i, payout.ReferenceID)
		}
	}
}

func TestProposeContinuesPastRateGap(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, nearest, middle, far := fixture.seedUpline(t)
	delete(fixture.rates.rates, rateKey{userID: middle, level: 2})

	payouts, err := fixture.svc.Propose(context.Background(), tradeEvent(originator, "1000"))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected the gap to drop one level only, got %d payouts", len(payouts))
	}
	if payouts[0].ToUserID != nearest || payouts[1].ToUserID != far {
		t.Fatalf("expected payouts to %s and %s, got %s and %s", nearest, far, payouts[0].ToUserID, payouts[1].ToUserID)
	}
}

func TestProposeSkipsInactiveOrUnknownRecipients(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, nearest, middle, far := fixture.seedUpline(t)
	fixture.users.add(middle, false)

	root := uuid.New()
	fixture.chain.entries = append(fixture.chain.entries, graph.UplineEntry{UserID: root, Level: 0})
	fixture.rates.set(root, 0, percentRate("0.25"))

	payouts, err := fixture.svc.Propose(context.Background(), tradeEvent(originator, "1000"))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	if payouts[0].ToUserID != nearest || payouts[1].ToUserID != far {
		t.Fatalf("expected only active known recipients to be paid")
	}
}

func TestProposeCapsShareAtRateMaximum(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator := uuid.New()
	upline := uuid.New()
	fixture.chain.entries = []graph.UplineEntry{{UserID: upline, Level: 1}}
	fixture.users.add(upline, true)

	maxShare := decimal.RequireFromString("10")
	fixture.rates.set(upline, 1, &plans.RateView{
		PlanID:        uuid.New(),
		Percentage:    decimal.RequireFromString("30"),
		MaxCommission: &maxShare,
	})

	payouts, err := fixture.svc.Propose(context.Background(), tradeEvent(originator, "100"))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected 1 payout, got %d", len(payouts))
	}
	if !payouts[0].Amount.Equal(maxShare) {
		t.Fatalf("expected capped amount 10, got %s", payouts[0].Amount)
	}
}

func TestProposeEnforcesVolumeGate(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator := uuid.New()
	upline := uuid.New()
	fixture.chain.entries = []graph.UplineEntry{{UserID: upline, Level: 1}}
	fixture.users.add(upline, true)

	minVolume := decimal.RequireFromString("50")
	fixture.rates.set(upline, 1, &plans.RateView{
		PlanID:           uuid.New(),
		Percentage:       decimal.RequireFromString("2"),
		MinTradingVolume: &minVolume,
	})

	ctx := context.Background()

	payouts, err := fixture.svc.Propose(ctx, tradeEvent(originator, "1000"))
	if err != nil {
		t.Fatalf("propose without volume: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected gated rate to skip when no volume supplied, got %d payouts", len(payouts))
	}

	short := tradeEvent(originator, "1000")
	shortVolume := decimal.RequireFromString("49.99")
	short.ContextVolume = &shortVolume
	payouts, err = fixture.svc.Propose(ctx, short)
	if err != nil {
		t.Fatalf("propose below gate: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected volume below gate to skip, got %d payouts", len(payouts))
	}

	cleared := tradeEvent(originator, "1000")
	clearedVolume := decimal.RequireFromString("50")
	cleared.ContextVolume = &clearedVolume
	payouts, err = fixture.svc.Propose(ctx, cleared)
	if err != nil {
		t.Fatalf("propose at gate: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected volume at gate to pay, got %d payouts", len(payouts))
	}
	if !payouts[0].Amount.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("expected amount 20, got %s", payouts[0].Amount)
	}
}

func TestProposeSkipsZeroShares(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator := uuid.New()
	upline := uuid.New()
	fixture.chain.entries = []graph.UplineEntry{{UserID: upline, Level: 1}}
	fixture.users.add(upline, true)
	fixture.rates.set(upline, 1, percentRate("0"))

	payouts, err := fixture.svc.Propose(context.Background(), tradeEvent(originator, "1000"))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected zero-percent rate to produce no payout, got %d", len(payouts))
	}
}

func TestProposeValidatesEvent(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, _, _, _ := fixture.seedUpline(t)

	cases := []struct {
		name  string
		event RevenueEvent
	}{
		{name: "missing originator", event: RevenueEvent{
			Amount:      decimal.RequireFromString("10"),
			Currency:    enums.CurrencyUSDT,
			ReferenceID: "trade-x",
			Type:        enums.RevenueEventTradeFee,
		}},
		{name: "blank reference", event: RevenueEvent{
			OriginatingUserID: originator,
			Amount:            decimal.RequireFromString("10"),
			Currency:          enums.CurrencyUSDT,
			ReferenceID:       "   ",
			Type:              enums.RevenueEventTradeFee,
		}},
		{name: "invalid event type", event: RevenueEvent{
			OriginatingUserID: originator,
			Amount:            decimal.RequireFromString("10"),
			Currency:          enums.CurrencyUSDT,
			ReferenceID:       "trade-x",
			Type:              enums.RevenueEventType("airdrop"),
		}},
		{name: "invalid currency", event: RevenueEvent{
			OriginatingUserID: originator,
			Amount:            decimal.RequireFromString("10"),
			Currency:          enums.Currency("DOGE"),
			ReferenceID:       "trade-x",
			Type:              enums.RevenueEventTradeFee,
		}},
		{name: "non-positive amount", event: RevenueEvent{
			OriginatingUserID: originator,
			Amount:            decimal.Zero,
			Currency:          enums.CurrencyUSDT,
			ReferenceID:       "trade-x",
			Type:              enums.RevenueEventTradeFee,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payouts, err := fixture.svc.Propose(context.Background(), tc.event)
			if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if payouts != nil {
				t.Fatalf("expected no payouts, got %d", len(payouts))
			}
		})
	}
	if fixture.chain.calls != 0 {
		t.Fatalf("expected invalid events to never reach the graph, got %d calls", fixture.chain.calls)
	}
}

func TestProposeEmptyChainYieldsNoPayouts(t *testing.T) {
	fixture := newCommissionFixture(t)

	payouts, err := fixture.svc.Propose(context.Background(), tradeEvent(uuid.New(), "1000"))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected no payouts for an originator without upline, got %d", len(payouts))
	}
}

func TestProposeIsRepeatable(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, _, _, _ := fixture.seedUpline(t)
	event := tradeEvent(originator, "333.33")

	first, err := fixture.svc.Propose(context.Background(), event)
	if err != nil {
		t.Fatalf("first propose: %v", err)
	}
	second, err := fixture.svc.Propose(context.Background(), event)
	if err != nil {
		t.Fatalf("second propose: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("expected identical runs, got %d and %d payouts", len(first), len(second))
	}
	for i := range first {
		if first[i].ToUserID != second[i].ToUserID || !first[i].Amount.Equal(second[i].Amount) {
			t.Fatalf("payout %d diverged between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDistributeSettlesEveryPayout(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, nearest, _, _ := fixture.seedUpline(t)
	event := tradeEvent(originator, "1000")

	result, err := fixture.svc.Distribute(context.Background(), event)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if result.ReferenceID != event.ReferenceID {
		t.Fatalf("result reference = %s, want %s", result.ReferenceID, event.ReferenceID)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	if result.Settled() != 3 {
		t.Fatalf("expected 3 settled, got %d", result.Settled())
	}
	for i, outcome := range result.Outcomes {
		if outcome.Status != enums.TransactionStatusCompleted {
			t.Fatalf("outcome %d status = %s", i, outcome.Status)
		}
		if outcome.TransactionID == uuid.Nil {
			t.Fatalf("outcome %d missing transaction id", i)
		}
	}

	if len(fixture.applier.applied) != 3 {
		t.Fatalf("expected 3 ledger applies, got %d", len(fixture.applier.applied))
	}
	got := fixture.applier.applied[0]
	if got.ToUserID != nearest {
		t.Fatalf("first apply recipient = %s, want %s", got.ToUserID, nearest)
	}
	if got.SourceLevel == nil || *got.SourceLevel != 3 {
		t.Fatalf("first apply source level = %v, want 3", got.SourceLevel)
	}
	if got.SourceType == nil || *got.SourceType != enums.RevenueEventTradeFee {
		t.Fatalf("first apply source type = %v", got.SourceType)
	}
}

func TestDistributeIsolatesFailedPayouts(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, nearest, middle, far := fixture.seedUpline(t)
	fixture.applier.failFor(middle, pkgerrors.New(pkgerrors.CodeDependency, "wallet credit failed"))

	result, err := fixture.svc.Distribute(context.Background(), tradeEvent(originator, "1000"))
	if err == nil {
		t.Fatal("expected aggregated error for the failed payout")
	}
	if !strings.Contains(err.Error(), "level 2") {
		t.Fatalf("expected error to name the failed level, got %v", err)
	}
	if result == nil {
		t.Fatal("expected a complete result alongside the error")
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}
	if result.Settled() != 2 {
		t.Fatalf("expected 2 settled, got %d", result.Settled())
	}

	byUser := make(map[uuid.UUID]PayoutOutcome, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		byUser[outcome.ToUserID] = outcome
	}
	if byUser[nearest].Status != enums.TransactionStatusCompleted || byUser[far].Status != enums.TransactionStatusCompleted {
		t.Fatal("expected the surrounding payouts to settle")
	}
	failed := byUser[middle]
	if failed.Status != enums.TransactionStatusFailed {
		t.Fatalf("expected failed status, got %s", failed.Status)
	}
	if failed.Reason != "wallet credit failed" {
		t.Fatalf("expected reason from ledger error, got %q", failed.Reason)
	}
	if len(fixture.applier.applied) != 2 {
		t.Fatalf("expected 2 successful applies, got %d", len(fixture.applier.applied))
	}
}

func TestDistributeMarksInFlightRivalsPending(t *testing.T) {
	fixture := newCommissionFixture(t)
	originator, _, _, far := fixture.seedUpline(t)
	fixture.applier.failFor(far, pkgerrors.New(pkgerrors.CodeConflict, "another attempt for this payout is in flight"))

	result, err := fixture.svc.Distribute(context.Background(), tradeEvent(originator, "1000"))
	if err == nil {
		t.Fatal("expected aggregated error for the in-flight payout")
	}
	if result.Settled() != 2 {
		t.Fatalf("expected 2 settled, got %d", result.Settled())
	}

	var pending *PayoutOutcome
	for i := range result.Outcomes {
		if result.Outcomes[i].ToUserID == far {
			pending = &result.Outcomes[i]
		}
	}
	if pending == nil {
		t.Fatal("expected an outcome for the in-flight payout")
	}
	if pending.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending status for in-flight rival, got %s", pending.Status)
	}
	if !strings.Contains(pending.Reason, "in flight") {
		t.Fatalf("expected in-flight reason, got %q", pending.Reason)
	}
}

func TestDistributeRejectsInvalidEvent(t *testing.T) {
	fixture := newCommissionFixture(t)
	fixture.seedUpline(t)

	event := tradeEvent(uuid.New(), "100")
	event.Amount = decimal.RequireFromString("-5")

	result, err := fixture.svc.Distribute(context.Background(), event)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected no result for an invalid event")
	}
	if len(fixture.applier.applied) != 0 {
		t.Fatalf("expected no ledger applies, got %d", len(fixture.applier.applied))
	}
}
