// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ai provides the language-model abstractions used by Quarry.
//
// The package defines the Client interface that sends one prompt pair to a
// chat model, the Credential value that authorizes a call, and the Resolver
// that decides which credential a request uses.
//
// # Credentials
//
// A caller-supplied key always wins and is tagged with the provider
// "user-supplied". Without one, the Resolver walks the configured fallbacks
// in order. With neither, Resolve fails with ErrNoCredentialAvailable before
// any network traffic happens.
//
// Secrets never print. Credential and Secret implement fmt.Stringer,
// fmt.GoStringer, slog.LogValuer and json.Marshaler, all of which emit a
// redacted placeholder. The raw key is only reachable through Reveal, which
// the transport calls when it builds the HTTP client.
//
// # Implementation Packages
//
//   - ai/openai: production Client using OpenAI-compatible chat APIs
//   - ai/mock: test double with injectable behavior and call recording
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewClient) return the ai.Client interface to
// keep callers decoupled from the transport. Test constructors
// (mock.NewMockClient) return concrete types so tests can inspect calls.
//
// # Errors
//
// Every failure a Client surfaces wraps exactly one of ErrCredentialRejected,
// ErrProviderUnavailable or ErrEmptyResponse. Provider error bodies are never
// propagated.
package ai
