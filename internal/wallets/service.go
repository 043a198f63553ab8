package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rafaelcoron/uplevel-backend/pkg/db/models"
	"github.com/rafaelcoron/uplevel-backend/pkg/enums"
	pkgerrors "github.com/rafaelcoron/uplevel-backend/pkg/errors"
	"github.com/rafaelcoron/uplevel-backend/pkg/pagination"
)

// Service exposes the wallet read surface.
type Service interface {
	Balance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error)
	Transactions(ctx context.Context, params HistoryParams) (*HistoryResult, error)
}

type service struct {
	repo Repository
}

// HistoryParams configures one transaction history page. A nil Currency
// spans every wallet the user holds.
type HistoryParams struct {
	UserID   uuid.UUID
	Currency *enums.Currency
	Limit    int
	Cursor   string
}

// HistoryResult wraps returned transactions and the cursor for the next page.
type HistoryResult struct {
	Items  []models.CommissionTransaction `json:"items"`
	Cursor string                         `json:"cursor"`
}

// NewService wires wallet read dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("wallets repository required")
	}
	return &service{repo: repo}, nil
}

// Balance returns the cached balance for one (user, currency) pair.
// Wallets are created lazily on first credit, so an absent row reads as
// zero rather than not found.
func (s *service) Balance(ctx context.Context, userID uuid.UUID, currency enums.Currency) (decimal.Decimal, error) {
	if userID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !currency.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	wallet, err := s.repo.FindWallet(ctx, userID, currency)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet.Balance, nil
}

func (s *service) Transactions(ctx context.Context, params HistoryParams) (*HistoryResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Currency != nil && !params.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", *params.Currency))
	}

	query := listTransactionsParams{
		UserID:   params.UserID,
		Currency: params.Currency,
		Limit:    params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &HistoryResult{Items: rows, Cursor: cursor}, nil
}
