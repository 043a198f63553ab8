package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

// Repository exposes read helpers for wallets and their transaction
// history. Writes stay with the ledger; this side of the domain never
// mutates a balance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.CommissionTransaction, *pagination.Cursor, error)
}
