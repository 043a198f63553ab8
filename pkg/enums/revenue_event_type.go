package enums

import "fmt"

// RevenueEventType identifies what kind of platform revenue triggered a
// commission run.
type RevenueEventType string

const (
	RevenueEventTradeFee            RevenueEventType = "trade_fee"
	RevenueEventSubscriptionPayment RevenueEventType = "subscription_payment"
)

var validRevenueEventTypes = []RevenueEventType{
	RevenueEventTradeFee,
	RevenueEventSubscriptionPayment,
}

// String implements fmt.Stringer.
func (t RevenueEventType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical source enum.
func (t RevenueEventType) IsValid() bool {
	for _, candidate := range validRevenueEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseRevenueEventType converts raw input into RevenueEventType.
func ParseRevenueEventType(value string) (RevenueEventType, error) {
	for _, candidate := range validRevenueEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue event type %q", value)
}
