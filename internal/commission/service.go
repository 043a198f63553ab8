package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/internal/graph"
	"github.com/rafaelcoron/uplevel-backend/internal/ledger"
	"github.com/rafaelcoron/uplevel-backend/internal/plans"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/metrics"
)

// Proposal outcomes reported per upline entry.
const (
	outcomePaid         = "paid"
	outcomeRateMiss     = "rate_miss"
	outcomeInactiveUser = "inactive_user"
	outcomeVolumeGate   = "volume_gate"
	outcomeZeroAmount   = "zero_amount"
)

// RevenueEvent is one revenue occurrence reported by the platform. The
// ReferenceID ties every payout derived from the event back to its source
// and doubles as the idempotency key downstream. ContextVolume optionally
// carries the trailing trading volume used by gated plan rates.
type RevenueEvent struct {
	OriginatingUserID uuid.UUID
	Amount            decimal.Decimal
	Currency          enums.Currency
	ReferenceID       string
	Type              enums.RevenueEventType
	ContextVolume     *decimal.Decimal
}

// ProposedPayout is one upline share computed from a revenue event.
type ProposedPayout struct {
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Amount      decimal.Decimal
	Currency    enums.Currency
	Type        enums.TransactionType
	ReferenceID string
	SourceType  enums.RevenueEventType
	SourceLevel int
}

func (p ProposedPayout) proposal() ledger.Proposal {
	sourceType := p.SourceType
	sourceLevel := p.SourceLevel
	return ledger.Proposal{
		FromUserID:  p.FromUserID,
		ToUserID:    p.ToUserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Type:        p.Type,
		ReferenceID: p.ReferenceID,
		SourceType:  &sourceType,
		SourceLevel: &sourceLevel,
	}
}

// PayoutOutcome reports what happened to one proposed payout. Status is
// completed for settled payouts, pending when a rival attempt was still in
// flight, failed otherwise.
type PayoutOutcome struct {
	ToUserID      uuid.UUID
	Level         int
	Amount        decimal.Decimal
	TransactionID uuid.UUID
	Status        enums.TransactionStatus
	Reason        string
}

// DistributionResult groups the per-payout outcomes of one revenue event.
type DistributionResult struct {
	ReferenceID string
	Outcomes    []PayoutOutcome
}

// Settled counts the outcomes that hold a completed transaction.
func (r *DistributionResult) Settled() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.Status == enums.TransactionStatusCompleted {
			n++
		}
	}
	return n
}

type uplineProvider interface {
	UplineChain(ctx context.Context, userID uuid.UUID, maxDepth int) ([]graph.UplineEntry, error)
}

type rateResolver interface {
	ActiveRate(ctx context.Context, userID uuid.UUID, level int, asOf time.Time) (*plans.RateView, error)
}

type userDirectory interface {
	FindUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type payoutApplier interface {
	Apply(ctx context.Context, proposal ledger.Proposal) (*models.CommissionTransaction, error)
}

// Service turns revenue events into commission payouts for the upline.
type Service interface {
	// Propose computes the payouts a revenue event produces without
	// touching any wallet.
	Propose(ctx context.Context, event RevenueEvent) ([]ProposedPayout, error)
	// Distribute computes and settles the payouts for a revenue event.
	// The result carries every per-payout outcome even when the returned
	// error is non-nil.
	Distribute(ctx context.Context, event RevenueEvent) (*DistributionResult, error)
}

// ServiceParams groups dependencies for the commission service.
type ServiceParams struct {
	Graph   uplineProvider
	Rates   rateResolver
	Users   userDirectory
	Ledger  payoutApplier
	Logger  *logger.Logger
	Metrics *metrics.CommissionMetrics
}

type service struct {
	graph   uplineProvider
	rates   rateResolver
	users   userDirectory
	ledger  payoutApplier
	logg    *logger.Logger
	metrics *metrics.CommissionMetrics
}

// NewService builds a commission service.
func NewService(params ServiceParams) (Service, error) {
	if params.Graph == nil {
		return nil, errors.New("upline provider required")
	}
	if params.Rates == nil {
		return nil, errors.New("rate resolver required")
	}
	if params.Users == nil {
		return nil, errors.New("user directory required")
	}
	if params.Ledger == nil {
		return nil, errors.New("payout applier required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &service{
		graph:   params.Graph,
		rates:   params.Rates,
		users:   params.Users,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// Propose walks the originator's upline and computes each share. It has no
// side effects: rerunning it against unchanged graph and plan state yields
// the same payouts in the same nearest-first order. Skips are expected
// outcomes rather than errors. A level with no active rate, an inactive
// recipient, an unmet volume gate, or a share rounding to zero drops that
// level and the walk continues to the next one.
func (s *service) Propose(ctx context.Context, event RevenueEvent) ([]ProposedPayout, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	entries, err := s.graph.UplineChain(ctx, event.OriginatingUserID, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payouts := make([]ProposedPayout, 0, len(entries))
	for _, entry := range entries {
		user, err := s.users.FindUser(ctx, entry.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.metrics.IncProposal(outcomeInactiveUser)
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load upline user")
		}
		if !user.IsActive {
			s.metrics.IncProposal(outcomeInactiveUser)
			continue
		}

		rate, err := s.rates.ActiveRate(ctx, entry.UserID, entry.Level, now)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeRateNotFound) {
				s.metrics.IncProposal(outcomeRateMiss)
				continue
			}
			return nil, err
		}
		if !rate.VolumeGateSatisfied(event.ContextVolume) {
			s.metrics.IncProposal(outcomeVolumeGate)
			continue
		}

		amount := rate.Commission(event.Amount)
		if amount.Sign() <= 0 {
			s.metrics.IncProposal(outcomeZeroAmount)
			continue
		}

		s.metrics.IncProposal(outcomePaid)
		payouts = append(payouts, ProposedPayout{
			FromUserID:  event.OriginatingUserID,
			ToUserID:    entry.UserID,
			Amount:      amount,
			Currency:    event.Currency,
			Type:        enums.TransactionTypeCommission,
			ReferenceID: event.ReferenceID,
			SourceType:  event.Type,
			SourceLevel: entry.Level,
		})
	}
	return payouts, nil
}

// Distribute computes the payouts for a revenue event and settles each one
// through the ledger. Payouts are isolated: one failed credit never blocks
// the rest of the chain. The returned error aggregates the payouts that did
// not settle so callers can decide whether to retry the event; the result
// is complete either way.
func (s *service) Distribute(ctx context.Context, event RevenueEvent) (*DistributionResult, error) {
	payouts, err := s.Propose(ctx, event)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveDistribute(event.Type.String(), time.Since(started))
	}()

	result := &DistributionResult{
		ReferenceID: event.ReferenceID,
		Outcomes:    make([]PayoutOutcome, 0, len(payouts)),
	}
	var failures error
	for _, payout := range payouts {
		txn, err := s.ledger.Apply(ctx, payout.proposal())
		if err != nil {
			failures = multierr.Append(failures, fmt.Errorf("level %d payout to %s: %w", payout.SourceLevel, payout.ToUserID, err))
			result.Outcomes = append(result.Outcomes, failedOutcome(payout, err))
			continue
		}
		result.Outcomes = append(result.Outcomes, PayoutOutcome{
			ToUserID:      payout.ToUserID,
			Level:         payout.SourceLevel,
			Amount:        txn.Amount,
			TransactionID: txn.ID,
			Status:        txn.Status,
		})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reference_id": event.ReferenceID,
		"source_type":  event.Type,
		"proposed":     len(payouts),
		"settled":      result.Settled(),
	})
	if failures != nil {
		s.logg.Error(logCtx, "distribution finished with unsettled payouts", failures)
	} else {
		s.logg.Info(logCtx, "distribution finished")
	}
	return result, failures
}

func failedOutcome(payout ProposedPayout, err error) PayoutOutcome {
	outcome := PayoutOutcome{
		ToUserID: payout.ToUserID,
		Level:    payout.SourceLevel,
		Amount:   payout.Amount,
		Status:   enums.TransactionStatusFailed,
		Reason:   err.Error(),
	}
	if typed := pkgerrors.As(err); typed != nil {
		outcome.Reason = typed.Message()
		if typed.Code() == pkgerrors.CodeConflict {
			outcome.Status = enums.TransactionStatusPending
		}
	}
	return outcome
}

func validateEvent(event RevenueEvent) error {
	if event.OriginatingUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "originating user id required")
	}
	if strings.TrimSpace(event.ReferenceID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	if !event.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid revenue event type %q", event.Type))
	}
	if !event.Currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", event.Currency))
	}
	if event.Amount.Sign() <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
