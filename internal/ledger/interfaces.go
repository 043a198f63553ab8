package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
)

// Repository manages persistence for commission transactions and wallet
// balances. Status transitions only ever move a row out of pending;
// completed and failed rows are immutable.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertTransaction(ctx context.Context, txn *models.CommissionTransaction) (*models.CommissionTransaction, error)
	CompletedByKey(ctx context.Context, referenceID string, txType enums.TransactionType, toUserID uuid.UUID) (*models.CommissionTransaction, error)
	PendingByKey(ctx context.Context, referenceID string, txType enums.TransactionType, toUserID uuid.UUID) ([]models.CommissionTransaction, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	UpsertWalletBalance(ctx context.Context, userID uuid.UUID, currency enums.Currency, delta decimal.Decimal) error
}
