package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
	"github.com/rafaelcoron/uplevel-backend/pkg/metrics"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox"
	"github.com/rafaelcoron/uplevel-backend/pkg/outbox/payloads"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

const defaultPageSize = 200

var errBalanceDrift = errors.New("stored balance diverges from completed transactions")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs balance sweeps and serves their reports.
type Service interface {
	// Run sweeps every wallet once and records drift reports. The returned
	// run reflects the final bookkeeping even when the error is non-nil.
	Run(ctx context.Context) (*models.ReconciliationRun, error)
	Runs(ctx context.Context, params RunsParams) (*RunsResult, error)
	Discrepancies(ctx context.Context, runID uuid.UUID) ([]models.WalletDiscrepancy, error)
}

// RunsParams configures pagination for the sweep history.
type RunsParams struct {
	Limit  int
	Cursor string
}

// RunsResult wraps returned runs and the cursor for the next page.
type RunsResult struct {
	Items  []models.ReconciliationRun `json:"items"`
	Cursor string                     `json:"cursor"`
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Metrics  *metrics.ReconMetrics
	PageSize int
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	logg     *logger.Logger
	metrics  *metrics.ReconMetrics
	pageSize int
}

// NewService builds a reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("recon repository required")
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
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
		pageSize: pageSize,
	}, nil
}

// Run pages through every wallet and compares the cached balance against
// the signed sum of completed transactions that touched it. Drift produces
// a report and a fact, never a correction. Per-wallet errors are collected
// so one broken wallet cannot hide drift in the rest of the sweep.
func (s *service) Run(ctx context.Context) (*models.ReconciliationRun, error) {
	started := time.Now().UTC()
	run := &models.ReconciliationRun{
		ID:        uuid.New(),
		Status:    enums.ReconRunStatusRunning,
		StartedAt: started,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reconciliation run")
	}

	var (
		sweepErr           error
		walletsChecked     int
		discrepanciesFound int
		afterID            uuid.UUID
	)
	for {
		wallets, err := s.repo.WalletsPage(ctx, afterID, s.pageSize)
		if err != nil {
			sweepErr = multierr.Append(sweepErr, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "page wallets"))
			break
		}
		if len(wallets) == 0 {
			break
		}
		for i := range wallets {
			wallet := &wallets[i]
			drifted, err := s.checkWallet(ctx, run.ID, wallet)
			if err != nil {
				sweepErr = multierr.Append(sweepErr, fmt.Errorf("wallet %s: %w", wallet.ID, err))
				continue
			}
			walletsChecked++
			if drifted {
				discrepanciesFound++
			}
		}
		afterID = wallets[len(wallets)-1].ID
		if len(wallets) < s.pageSize {
			break
		}
	}

	status := enums.ReconRunStatusCompleted
	var lastError *string
	if sweepErr != nil {
		status = enums.ReconRunStatusFailed
		msg := sweepErr.Error()
		lastError = &msg
	}
	finishedAt := time.Now().UTC()
	finish := finishRunUpdate{
		RunID:              run.ID,
		Status:             status,
		WalletsChecked:     walletsChecked,
		DiscrepanciesFound: discrepanciesFound,
		FinishedAt:         finishedAt,
		LastError:          lastError,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).FinishRun(ctx, finish); err != nil {
			return err
		}
		if status != enums.ReconRunStatusCompleted {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationCompleted,
			AggregateType: enums.AggregateReconciliationRun,
			AggregateID:   run.ID,
			Version:       1,
			Data: payloads.ReconciliationCompletedEvent{
				RunID:              run.ID,
				WalletsChecked:     walletsChecked,
				DiscrepanciesFound: discrepanciesFound,
				StartedAt:          started,
				FinishedAt:         finishedAt,
			},
		})
	})
	if err != nil {
		sweepErr = multierr.Append(sweepErr, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finish reconciliation run"))
		status = enums.ReconRunStatusFailed
		msg := sweepErr.Error()
		lastError = &msg
		fallback := finish
		fallback.Status = status
		fallback.LastError = lastError
		if ferr := s.repo.FinishRun(ctx, fallback); ferr != nil && !errors.Is(ferr, gorm.ErrRecordNotFound) {
			s.logg.Error(ctx, "failed to close reconciliation run", ferr)
		}
	}

	run.Status = status
	run.WalletsChecked = walletsChecked
	run.DiscrepanciesFound = discrepanciesFound
	run.FinishedAt = &finishedAt
	run.LastError = lastError

	s.metrics.IncRun(status.String())
	s.metrics.ObserveRunDuration(time.Since(started))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"run_id":              run.ID.String(),
		"status":              status,
		"wallets_checked":     walletsChecked,
		"discrepancies_found": discrepanciesFound,
	})
	switch {
	case sweepErr != nil:
		s.logg.Error(logCtx, "reconciliation finished with errors", sweepErr)
	case discrepanciesFound > 0:
		s.logg.Warn(logCtx, "reconciliation found drifted wallets")
	default:
		s.logg.Info(logCtx, "reconciliation completed clean")
	}
	return run, sweepErr
}

func (s *service) checkWallet(ctx context.Context, runID uuid.UUID, wallet *models.Wallet) (bool, error) {
	computed, err := s.repo.ComputedBalance(ctx, wallet.UserID, wallet.Currency)
	if err != nil {
		return false, fmt.Errorf("recompute balance: %w", err)
	}
	drift := wallet.Balance.Sub(computed)
	if drift.IsZero() {
		return false, nil
	}

	discrepancy := &models.WalletDiscrepancy{
		ID:              uuid.New(),
		RunID:           runID,
		WalletID:        wallet.ID,
		StoredBalance:   wallet.Balance,
		ComputedBalance: computed,
		Drift:           drift,
		DetectedAt:      time.Now().UTC(),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).InsertDiscrepancy(ctx, discrepancy); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWalletDiscrepancyFound,
			AggregateType: enums.AggregateWallet,
			AggregateID:   wallet.ID,
			Version:       1,
			Data: payloads.WalletDiscrepancyFoundEvent{
				RunID:           runID,
				WalletID:        wallet.ID,
				UserID:          wallet.UserID,
				Currency:        wallet.Currency,
				StoredBalance:   wallet.Balance,
				ComputedBalance: computed,
				Drift:           drift,
			},
		})
	})
	if err != nil {
		return false, fmt.Errorf("record discrepancy: %w", err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"run_id":    runID.String(),
		"wallet_id": wallet.ID.String(),
		"user_id":   wallet.UserID.String(),
		"currency":  wallet.Currency,
		"stored":    wallet.Balance.String(),
		"computed":  computed.String(),
		"drift":     drift.String(),
	})
	s.logg.Error(logCtx, "wallet balance drift detected", errBalanceDrift)
	s.metrics.IncDiscrepancy()
	return true, nil
}

func (s *service) Runs(ctx context.Context, params RunsParams) (*RunsResult, error) {
	query := listRunsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	runs, next, err := s.repo.ListRuns(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reconciliation runs")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &RunsResult{Items: runs, Cursor: cursor}, nil
}

func (s *service) Discrepancies(ctx context.Context, runID uuid.UUID) ([]models.WalletDiscrepancy, error) {
	if runID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "run id required")
	}
	if _, err := s.repo.FindRun(ctx, runID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reconciliation run not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reconciliation run")
	}

	discrepancies, err := s.repo.ListDiscrepancies(ctx, runID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discrepancies")
	}
	return discrepancies, nil
}
