package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.CommissionTransaction) (*models.CommissionTransaction, error) {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

func (r *repository) CompletedByKey(ctx context.Context, referenceID string, txType enums.TransactionType, toUserID uuid.UUID) (*models.CommissionTransaction, error) {
	var txn models.CommissionTransaction
	if err := r.db.WithContext(ctx).
		Where("reference_id = ? AND type = ? AND to_user_id = ? AND status = ?",
			referenceID, txType, toUserID, enums.TransactionStatusCompleted).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) PendingByKey(ctx context.Context, referenceID string, txType enums.TransactionType, toUserID uuid.UUID) ([]models.CommissionTransaction, error) {
	var txns []models.CommissionTransaction
	if err := r.db.WithContext(ctx).
		Where("reference_id = ? AND type = ? AND to_user_id = ? AND status = ?",
			referenceID, txType, toUserID, enums.TransactionStatusPending).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// MarkCompleted transitions a pending row to completed. Terminal rows are
// never touched; gorm.ErrRecordNotFound reports that no pending row with
// the id exists.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":       enums.TransactionStatusCompleted,
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkFailed transitions a pending row to failed with the given reason,
// under the same pending-only guard as MarkCompleted.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionTransaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":         enums.TransactionStatusFailed,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertWalletBalance creates the wallet on first credit or moves the
// existing balance by delta in a single statement.
func (r *repository) UpsertWalletBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, delta decimal.Decimal) error {
	wallet := models.Wallet{
		ID:       uuid.New(),
		UserID:   userID,
		Currency: currency,
		Balance:  delta,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "currency"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("balance + ?", delta),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&wallet).Error
}
