// Package mock provides test double implementations of AI service interfaces.
//
// This package contains a mock implementation of ai.Client for use in unit
// tests. The mock lets tests run without a model endpoint and gives
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Fixed response
//	client := mock.NewMockClient().WithResponse(`{"quotes":[],"nodes":[],"edges":[],"quote_node_links":[]}`)
//
//	// Custom behavior injection
//	client := mock.NewMockClient()
//	client.CompleteFunc = func(ctx context.Context, cred ai.Credential, p ai.Prompt) (string, error) {
//	    return "", ai.ErrProviderUnavailable
//	}
//
//	// Assertions
//	count := client.CallCount()
//	creds := client.Credentials()
//
// # Default Behavior
//
// Without a response or CompleteFunc, MockClient returns an extraction with
// empty arrays, which parses successfully and materializes nothing.
package mock
