package mock

import (
	"context"
	"sync"

	"github.com/poiesic/quarry/ai"
)

// EmptyExtraction is the default response: a well-formed extraction with no entries.
const EmptyExtraction = `{"quotes":[],"nodes":[],"edges":[],"quote_node_links":[]}`

// MockClient is a test double for ai.Client.
// It allows custom behavior injection via function fields and is safe for
// concurrent use.
type MockClient struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns the configured response.
	CompleteFunc func(ctx context.Context, cred ai.Credential, prompt ai.Prompt) (string, error)

	mu          sync.Mutex
	response    string
	callCount   int
	credentials []ai.Credential
	prompts     []ai.Prompt
}

var _ ai.Client = (*MockClient)(nil)

// NewMockClient creates a mock client that returns EmptyExtraction.
// Note: Returns concrete type to allow test assertions.
func NewMockClient() *MockClient {
	return &MockClient{response: EmptyExtraction}
}

// WithResponse sets the fixed response returned when CompleteFunc is nil.
func (m *MockClient) WithResponse(response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = response
	return m
}

// WithCompleteFunc sets custom behavior and returns the mock for chaining.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, cred ai.Credential, prompt ai.Prompt) (string, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = fn
	return m
}

// Complete records the call and returns the configured result.
func (m *MockClient) Complete(ctx context.Context, cred ai.Credential, prompt ai.Prompt) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.credentials = append(m.credentials, cred)
	m.prompts = append(m.prompts, prompt)
	response := m.response
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, cred, prompt)
	}
	return response, nil
}

// CallCount returns the number of times Complete was called.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Credentials returns the credentials Complete was called with, in call order.
func (m *MockClient) Credentials() []ai.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ai.Credential, len(m.credentials))
	copy(out, m.credentials)
	return out
}

// Prompts returns the prompts Complete was called with, in call order.
func (m *MockClient) Prompts() []ai.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ai.Prompt, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded calls and custom functions.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.credentials = nil
	m.prompts = nil
	m.response = EmptyExtraction
	m.CompleteFunc = nil
}
