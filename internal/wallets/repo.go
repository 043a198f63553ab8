package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallets repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// listTransactionsParams scopes a history page to the rows that moved the
// user's wallets: credits received plus debits sent.
type listTransactionsParams struct {
	UserID   uuid.UUID
	Currency *enums.Currency
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repository) FindWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) ListTransactions(ctx context.Context, params listTransactionsParams) ([]models.CommissionTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.CommissionTransaction{}).
		Where("(to_user_id = ? AND type IN ?) OR (from_user_id = ? AND type IN ?)",
			params.UserID, enums.CreditTransactionTypes(),
			params.UserID, enums.DebitTransactionTypes())
	if params.Currency != nil {
		query = query.Where("currency = ?", *params.Currency)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.CommissionTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		return rows, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return rows, nil, nil
}
