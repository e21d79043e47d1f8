package ai

import "context"

// Prompt is the fixed instruction pair sent to a chat model.
type Prompt struct {
	// System carries the extraction contract and output schema.
	System string

	// User carries the text to analyze.
	User string
}

// Client sends a prompt to a chat model and returns its raw text output.
// Implementations must be thread-safe for concurrent use.
type Client interface {
	// Complete calls the model once with the given credential.
	// It never retries. Errors wrap ErrCredentialRejected,
	// ErrProviderUnavailable or ErrEmptyResponse and never contain key material.
	Complete(ctx context.Context, cred Credential, prompt Prompt) (string, error)
}
