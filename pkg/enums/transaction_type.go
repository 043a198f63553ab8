package enums

import "fmt"

// TransactionType maps to the transaction_type_enum enum in Postgres.
// The type is part of the ledger idempotency key alongside reference id
// and recipient.
type TransactionType string

const (
	TransactionTypeCommission       TransactionType = "commission"
	TransactionTypeWithdrawal       TransactionType = "withdrawal"
	TransactionTypeAdjustmentCredit TransactionType = "adjustment_credit"
	TransactionTypeAdjustmentDebit  TransactionType = "adjustment_debit"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeCommission,
	TransactionTypeWithdrawal,
	TransactionTypeAdjustmentCredit,
	TransactionTypeAdjustmentDebit,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether the type adds funds to the recipient wallet.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeCommission || t == TransactionTypeAdjustmentCredit
}

// IsDebit reports whether the type removes funds from the sender wallet.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeAdjustmentDebit
}

// CreditTransactionTypes lists the types that credit the recipient wallet.
func CreditTransactionTypes() []TransactionType {
	return []TransactionType{TransactionTypeCommission, TransactionTypeAdjustmentCredit}
}

// DebitTransactionTypes lists the types that debit the sender wallet.
func DebitTransactionTypes() []TransactionType {
	return []TransactionType{TransactionTypeWithdrawal, TransactionTypeAdjustmentDebit}
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
