package enums

import "fmt"

// CredentialScope gates what a service credential may call.
type CredentialScope string

const (
	ScopeEventsWrite CredentialScope = "events:write"
	ScopeReconRead   CredentialScope = "recon:read"
)

var validCredentialScopes = []CredentialScope{
	ScopeEventsWrite,
	ScopeReconRead,
}

// String implements fmt.Stringer.
func (s CredentialScope) String() string {
	return string(s)
}

// IsValid reports whether the scope is recognized.
func (s CredentialScope) IsValid() bool {
	for _, candidate := range validCredentialScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseCredentialScope converts raw input into CredentialScope.
func ParseCredentialScope(value string) (CredentialScope, error) {
	for _, candidate := range validCredentialScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credential scope %q", value)
}
