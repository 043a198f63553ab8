package cron

import (
	"context"
	"fmt"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/logger"
)

type walletReconciler interface {
	Run(ctx context.Context) (*models.ReconciliationRun, error)
}

// ReconcileJobParams configure the wallet reconciliation job.
type ReconcileJobParams struct {
	Logger *logger.Logger
	Recon  walletReconciler
}

// NewReconcileJob wraps the reconciliation service for the scheduler.
func NewReconcileJob(params ReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Recon == nil {
		return nil, fmt.Errorf("recon service required")
	}
	return &reconcileJob{
		logg:  params.Logger,
		recon: params.Recon,
	}, nil
}

type reconcileJob struct {
	logg  *logger.Logger
	recon walletReconciler
}

func (j *reconcileJob) Name() string { return "wallet-reconcile" }

func (j *reconcileJob) Run(ctx context.Context) error {
	run, err := j.recon.Run(ctx)
	if err != nil {
		return fmt.Errorf("wallet reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"run_id":              run.ID.String(),
		"wallets_checked":     run.WalletsChecked,
		"discrepancies_found": run.DiscrepanciesFound,
	})
	j.logg.Info(logCtx, "wallet reconciliation sweep recorded")
	return nil
}
