package router

import (
	"context"

	"github.com/rafaelcoron/uplevel-backend/internal/facts/types"
)

type fakeWriter struct {
	commissions   []types.CommissionFactRow
	discrepancies []types.WalletDiscrepancyFactRow
}

func (f *fakeWriter) InsertCommission(_ context.Context, row types.CommissionFactRow) error {
	f.commissions = append(f.commissions, row)
	return nil
}

func (f *fakeWriter) InsertDiscrepancy(_ context.Context, row types.WalletDiscrepancyFactRow) error {
	f.discrepancies = append(f.discrepancies, row)
	return nil
}
