package ai

import "errors"

var (
	// ErrNoCredentialAvailable is returned when neither a caller credential
	// nor a fallback credential exists.
	ErrNoCredentialAvailable = errors.New("no credential available")

	// ErrCredentialRejected is returned when the provider refuses the credential.
	ErrCredentialRejected = errors.New("credential rejected by provider")

	// ErrProviderUnavailable is returned on network failures, timeouts,
	// rate limiting, 5xx responses and open circuit breakers.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrEmptyResponse is returned when a call succeeds but yields no content.
	ErrEmptyResponse = errors.New("empty response from model")
)
