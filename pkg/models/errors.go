package models

import "fmt"

// AuthenticationError reports a missing credential for the selected provider.
// It is raised at construction time, never per call.
type AuthenticationError struct {
	Provider string
	Variable string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("models: no credential configured for provider %s (set %s)", e.Provider, e.Variable)
}

// ProviderError wraps any other upstream failure: network, quota, or a
// malformed response.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("models: provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
