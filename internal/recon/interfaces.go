package recon

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

// Repository exposes persistence helpers for reconciliation sweeps. The
// sweep reads wallets and transactions but writes only run bookkeeping and
// discrepancy reports; balances are off limits.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRun(ctx context.Context, run *models.ReconciliationRun) error
	FinishRun(ctx context.Context, update finishRunUpdate) error
	FindRun(ctx context.Context, runID uuid.UUID) (*models.ReconciliationRun, error)
	ListRuns(ctx context.Context, params listRunsParams) ([]models.ReconciliationRun, *pagination.Cursor, error)
	WalletsPage(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error)
	ComputedBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error)
	InsertDiscrepancy(ctx context.Context, discrepancy *models.WalletDiscrepancy) error
	ListDiscrepancies(ctx context.Context, runID uuid.UUID) ([]models.WalletDiscrepancy, error)
}
