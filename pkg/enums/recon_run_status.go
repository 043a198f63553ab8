package enums

import "fmt"

// ReconRunStatus tracks the lifecycle of a reconciliation sweep.
type ReconRunStatus string

const (
	ReconRunStatusRunning   ReconRunStatus = "running"
	ReconRunStatusCompleted ReconRunStatus = "completed"
	ReconRunStatusFailed    ReconRunStatus = "failed"
)

var validReconRunStatuses = []ReconRunStatus{
	ReconRunStatusRunning,
	ReconRunStatusCompleted,
	ReconRunStatusFailed,
}

// String implements fmt.Stringer.
func (s ReconRunStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReconRunStatus.
func (s ReconRunStatus) IsValid() bool {
	for _, candidate := range validReconRunStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReconRunStatus converts raw input into ReconRunStatus.
func ParseReconRunStatus(value string) (ReconRunStatus, error) {
	for _, candidate := range validReconRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reconciliation run status %q", value)
}
