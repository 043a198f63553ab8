package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type finishRunUpdate struct {
	RunID              uuid.UUID
	Status             enums.ReconRunStatus
	WalletsChecked     int
	DiscrepanciesFound int
	FinishedAt         time.Time
	LastError          *string
}

type listRunsParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repository) CreateRun(ctx context.Context, run *models.ReconciliationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// FinishRun closes a running sweep. Finished runs are immutable, so the
// update is guarded on the running status.
func (r *repository) FinishRun(ctx context.Context, update finishRunUpdate) error {
	result := r.db.WithContext(ctx).
		Model(&models.ReconciliationRun{}).
		Where("id = ? AND status = ?", update.RunID, enums.ReconRunStatusRunning).
		Updates(map[string]any{
			"status":              update.Status,
			"wallets_checked":     update.WalletsChecked,
			"discrepancies_found": update.DiscrepanciesFound,
			"finished_at":         update.FinishedAt,
			"last_error":          update.LastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindRun(ctx context.Context, runID uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	if err := r.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) ListRuns(ctx context.Context, params listRunsParams) ([]models.ReconciliationRun, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.ReconciliationRun{})
	if params.Cursor != nil {
		query = query.Where("(started_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var runs []models.ReconciliationRun
	if err := query.Order("started_at DESC, id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, nil, err
	}

	if len(runs) > normalized {
		next := runs[normalized]
		runs = runs[:normalized]
		return runs, &pagination.Cursor{CreatedAt: next.StartedAt, ID: next.ID}, nil
	}
	return runs, nil, nil
}

// WalletsPage walks the wallet table in primary key order so a sweep
// visits every row exactly once regardless of concurrent inserts behind
// the cursor.
func (r *repository) WalletsPage(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}

// ComputedBalance rebuilds one wallet balance from scratch: completed
// credits received minus completed debits sent, in the wallet currency.
func (r *repository) ComputedBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Select("COALESCE(SUM(CASE WHEN to_user_id = ? AND type IN ? THEN amount WHEN from_user_id = ? AND type IN ? THEN -amount ELSE 0 END), 0)",
			userID, enums.CreditTransactionTypes(), userID, enums.DebitTransactionTypes()).
		Where("status = ? AND currency = ? AND (to_user_id = ? OR from_user_id = ?)",
			enums.TransactionStatusCompleted, currency, userID, userID).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repository) InsertDiscrepancy(ctx context.Context, discrepancy *models.WalletDiscrepancy) error {
	return r.db.WithContext(ctx).Create(discrepancy).Error
}

func (r *repository) ListDiscrepancies(ctx context.Context, runID uuid.UUID) ([]models.WalletDiscrepancy, error) {
	var discrepancies []models.WalletDiscrepancy
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("detected_at ASC, id ASC").
		Find(&discrepancies).Error
	return discrepancies, err
}
