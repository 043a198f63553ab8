package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCommissionTransaction OutboxAggregateType = "commission_transaction"
	AggregateWallet                OutboxAggregateType = "wallet"
	AggregateDistributorEdge       OutboxAggregateType = "distributor_edge"
	AggregateReconciliationRun     OutboxAggregateType = "reconciliation_run"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCommissionTransaction,
	AggregateWallet,
	AggregateDistributorEdge,
	AggregateReconciliationRun,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum enum in Postgres.
type OutboxEventType string

const (
	EventCommissionCompleted     OutboxEventType = "commission_completed"
	EventCommissionFailed        OutboxEventType = "commission_failed"
	EventWalletDiscrepancyFound  OutboxEventType = "wallet_discrepancy_found"
	EventReconciliationCompleted OutboxEventType = "reconciliation_completed"
	EventDistributorAttached     OutboxEventType = "distributor_attached"
	EventDistributorDetached     OutboxEventType = "distributor_detached"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCommissionCompleted,
	EventCommissionFailed,
	EventWalletDiscrepancyFound,
	EventReconciliationCompleted,
	EventDistributorAttached,
	EventDistributorDetached,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
