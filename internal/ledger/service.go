package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/rafaelcoron/uplevel-backend/pkg/db"
	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/metrics"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
)

// completedReferenceIndex is the partial unique index enforcing at most one
// completed transaction per (reference_id, type, to_user_id).
const completedReferenceIndex = "ux_commission_transactions_completed_reference"

const staleReason = "superseded by a newer attempt"

const (
	outcomeCompleted = "completed"
	outcomeDuplicate = "duplicate"
	outcomeConflict  = "conflict"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Proposal describes one payout to settle. (ReferenceID, Type, ToUserID) is
// the idempotency key: at most one proposal per key ever completes.
type Proposal struct {
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Amount      decimal.Decimal
	Currency    enums.Currency
	Type        enums.TransactionType
	ReferenceID string
	SourceType  *enums.RevenueEventType
	SourceLevel *int
}

// walletOwner is the user whose wallet the settlement touches. Credits land
// in the recipient wallet, debits leave the sender wallet.
func (p Proposal) walletOwner() uuid.UUID {
	if p.Type.IsDebit() {
		return p.FromUserID
	}
	return p.ToUserID
}

// signedAmount is the balance delta the settlement applies.
func (p Proposal) signedAmount() decimal.Decimal {
	if p.Type.IsDebit() {
		return p.Amount.Neg()
	}
	return p.Amount
}

// Service settles payout proposals into the transaction ledger with
// exactly-once wallet credits.
type Service interface {
	Apply(ctx context.Context, proposal Proposal) (*models.CommissionTransaction, error)
}

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo              Repository
	Tx                txRunner
	Outbox            outboxPublisher
	Logger            *logger.Logger
	Metrics           *metrics.LedgerMetrics
	StalePendingAfter time.Duration
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	stale   time.Duration
	locks   *keyedMutex
}

// NewService builds a ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("ledger repository required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.StalePendingAfter <= 0 {
		return nil, errors.New("stale pending window must be positive")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		stale:   params.StalePendingAfter,
		locks:   newKeyedMutex(),
	}, nil
}

// Apply settles a proposal. A proposal whose key already completed returns
// the settled row unchanged. Failed prior attempts do not block a fresh
// one; a pending prior attempt younger than the stale window does, with
// CodeConflict.
func (s *service) Apply(ctx context.Context, proposal Proposal) (*models.CommissionTransaction, error) {
	if err := validateIdentity(proposal); err != nil {
		return nil, err
	}

	started := time.Now()
	defer func() {
		s.metrics.ObserveApplyDuration(proposal.Type.String(), time.Since(started))
	}()

	if reason := rejectReason(proposal); reason != "" {
		if err := s.recordRejected(ctx, proposal, reason); err != nil {
			return nil, err
		}
		s.metrics.IncApply(outcomeInvalid)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, reason)
	}

	winner, err := s.completedWinner(ctx, proposal)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		s.metrics.IncApply(outcomeDuplicate)
		return winner, nil
	}

	if err := s.resolvePending(ctx, proposal); err != nil {
		return nil, err
	}

	attempt := newTransaction(proposal)
	if _, err := s.repo.InsertTransaction(ctx, attempt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert pending transaction")
	}

	return s.settle(ctx, attempt, proposal)
}

func validateIdentity(p Proposal) error {
	if p.ToUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient user id required")
	}
	if p.FromUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source user id required")
	}
	if strings.TrimSpace(p.ReferenceID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	if !p.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", p.Type))
	}
	return nil
}

// rejectReason screens the fields that make a proposal permanently
// unsettleable. Empty means well formed.
func rejectReason(p Proposal) string {
	if !p.Currency.IsValid() {
		return fmt.Sprintf("unsupported currency %q", p.Currency)
	}
	if p.Amount.Sign() <= 0 {
		return "amount must be positive"
	}
	return ""
}

func newTransaction(p Proposal) *models.CommissionTransaction {
	return &models.CommissionTransaction{
		ID:          uuid.New(),
		FromUserID:  p.FromUserID,
		ToUserID:    p.ToUserID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Type:        p.Type,
		Status:      enums.TransactionStatusPending,
		ReferenceID: p.ReferenceID,
		SourceType:  p.SourceType,
		SourceLevel: p.SourceLevel,
	}
}

// recordRejected persists a born-failed row so rejected proposals stay
// auditable, and publishes the failure fact in the same transaction.
func (s *service) recordRejected(ctx context.Context, proposal Proposal, reason string) error {
	row := newTransaction(proposal)
	row.Status = enums.TransactionStatusFailed
	row.FailureReason = &reason
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.InsertTransaction(ctx, row); err != nil {
			return err
		}
		return s.emitFailed(ctx, tx, row, reason)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record rejected proposal")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transaction_id": row.ID.String(),
		"reference_id":   proposal.ReferenceID,
		"reason":         reason,
	})
	s.logg.Warn(logCtx, "payout proposal rejected")
	return nil
}

func (s *service) completedWinner(ctx context.Context, proposal Proposal) (*models.CommissionTransaction, error) {
	winner, err := s.repo.CompletedByKey(ctx, proposal.ReferenceID, proposal.Type, proposal.ToUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up settled payout")
	}
	return winner, nil
}

// resolvePending clears the road for a fresh attempt. A pending row younger
// than the stale window belongs to an attempt that may still settle, so the
// caller must back off. Older rows come from crashed attempts and are
// parked as failed.
func (s *service) resolvePending(ctx context.Context, proposal Proposal) error {
	pending, err := s.repo.PendingByKey(ctx, proposal.ReferenceID, proposal.Type, proposal.ToUserID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up pending payouts")
	}
	if len(pending) == 0 {
		return nil
	}

	for _, row := range pending {
		if time.Since(row.CreatedAt) < s.stale {
			s.metrics.IncApply(outcomeConflict)
			return pkgerrors.New(pkgerrors.CodeConflict, "another attempt for this payout is in flight")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := range pending {
			row := &pending[i]
			if err := repo.MarkFailed(ctx, row.ID, staleReason); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// The row left pending while we looked. The key check on
					// the fresh attempt decides who won.
					continue
				}
				return err
			}
			if err := s.emitFailed(ctx, tx, row, staleReason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "supersede stale payouts")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reference_id": proposal.ReferenceID,
		"count":        len(pending),
	})
	s.logg.Warn(logCtx, "superseded stale pending payout attempts")
	return nil
}

// settle drives the attempt through its atomic phase: one storage
// transaction flips the row to completed and moves the wallet balance,
// serialized per wallet by the keyed mutex. Cancellation is ignored past
// this point so a timed out caller cannot split the credit from the row.
func (s *service) settle(ctx context.Context, attempt *models.CommissionTransaction, proposal Proposal) (*models.CommissionTransaction, error) {
	key := walletKey{UserID: proposal.walletOwner(), Currency: proposal.Currency}
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	settleCtx := context.WithoutCancel(ctx)
	processedAt := time.Now().UTC()
	err := s.tx.WithTx(settleCtx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkCompleted(settleCtx, attempt.ID, processedAt); err != nil {
			return err
		}
		if err := repo.UpsertWalletBalance(settleCtx, key.UserID, key.Currency, proposal.signedAmount()); err != nil {
			return err
		}
		return s.emitCompleted(settleCtx, tx, attempt, processedAt)
	})
	if err == nil {
		attempt.Status = enums.TransactionStatusCompleted
		attempt.ProcessedAt = &processedAt
		s.metrics.IncApply(outcomeCompleted)
		logCtx := s.logg.WithFields(settleCtx, map[string]any{
			"transaction_id": attempt.ID.String(),
			"reference_id":   attempt.ReferenceID,
			"to_user_id":     attempt.ToUserID.String(),
			"amount":         attempt.Amount.String(),
			"currency":       attempt.Currency,
		})
		s.logg.Info(logCtx, "payout settled")
		return attempt, nil
	}

	if dbpkg.IsUniqueViolation(err, completedReferenceIndex) {
		return s.resolveLostRace(settleCtx, attempt, proposal)
	}

	s.failAttempt(settleCtx, attempt, "settlement failed: "+err.Error())
	s.metrics.IncApply(outcomeFailed)
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle transaction")
}

// resolveLostRace handles the window where a rival attempt completed the
// same key between our check and our update. The rival row is the settled
// truth; our attempt is parked as failed.
func (s *service) resolveLostRace(ctx context.Context, attempt *models.CommissionTransaction, proposal Proposal) (*models.CommissionTransaction, error) {
	winner, err := s.repo.CompletedByKey(ctx, proposal.ReferenceID, proposal.Type, proposal.ToUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read settled rival")
	}
	s.failAttempt(ctx, attempt, "lost settle race to "+winner.ID.String())
	s.metrics.IncApply(outcomeDuplicate)
	return winner, nil
}

// failAttempt parks the attempt as failed outside the broken transaction so
// no pending row dangles. Best effort: if this write fails too, the row is
// left to the stale sweep of the next attempt.
func (s *service) failAttempt(ctx context.Context, attempt *models.CommissionTransaction, reason string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkFailed(ctx, attempt.ID, reason); err != nil {
			return err
		}
		return s.emitFailed(ctx, tx, attempt, reason)
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Error(ctx, "failed to park broken payout attempt", err)
		}
		return
	}
	attempt.Status = enums.TransactionStatusFailed
	attempt.FailureReason = &reason
}

func (s *service) emitCompleted(ctx context.Context, tx *gorm.DB, txn *models.CommissionTransaction, processedAt time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionCompleted,
		AggregateType: enums.AggregateCommissionTransaction,
		AggregateID:   txn.ID,
		Version:       1,
		Data: payloads.CommissionCompletedEvent{
			TransactionID: txn.ID,
			ReferenceID:   txn.ReferenceID,
			FromUserID:    txn.FromUserID,
			ToUserID:      txn.ToUserID,
			Amount:        txn.Amount,
			Currency:      txn.Currency,
			SourceType:    txn.SourceType,
			SourceLevel:   txn.SourceLevel,
			ProcessedAt:   processedAt,
		},
	})
}

func (s *service) emitFailed(ctx context.Context, tx *gorm.DB, txn *models.CommissionTransaction, reason string) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionFailed,
		AggregateType: enums.AggregateCommissionTransaction,
		AggregateID:   txn.ID,
		Version:       1,
		Data: payloads.CommissionFailedEvent{
			TransactionID: txn.ID,
			ReferenceID:   txn.ReferenceID,
			ToUserID:      txn.ToUserID,
			Amount:        txn.Amount,
			Currency:      txn.Currency,
			Reason:        reason,
		},
	})
}
