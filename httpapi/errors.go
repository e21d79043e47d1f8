package httpapi

import "errors"

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSecretRequired is returned when an Authenticator has no signing secret.
	ErrSecretRequired = errors.New("signing secret required")

	// ErrIngesterRequired is returned when a Server has no ingester.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrRetrieverRequired is returned when a Server has no retriever.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrIdeaStoreRequired is returned when a Server has no idea store.
	ErrIdeaStoreRequired = errors.New("idea store required")

	// ErrAuthenticatorRequired is returned when a Server has no authenticator.
	ErrAuthenticatorRequired = errors.New("authenticator required")
)

// Error codes specific to the HTTP surface. Ingestion codes are reused for
// everything else.
const (
	CodeUnauthorized = "Unauthorized"
	CodeUnknownView  = "UnknownView"
	CodeNotFound     = "NotFound"
	CodeTooLarge     = "RequestTooLarge"
)
