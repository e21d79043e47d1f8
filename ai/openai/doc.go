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


// Package openai provides an ai.Client implementation using OpenAI-compatible APIs.
//
// This package uses the langchaingo library to talk to OpenAI or
// OpenAI-compatible services (such as Ollama, LocalAI, or vLLM). Every call
// runs in JSON mode at temperature 0, is bounded by Config.Timeout and passes
// through a circuit breaker kept per provider.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("qwen2.5:7b"),
//	    ai.WithFallback("ollama", "none"),
//	)
//
//	client, err := openai.NewClient(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cred, err := ai.NewResolver(config).Resolve(userKey)
//	text, err := client.Complete(ctx, cred, prompt)
//
// # Error Classification
//
// HTTP 401 and 403 become ai.ErrCredentialRejected. Timeouts, cancellation,
// network errors, 429, 5xx and an open breaker become
// ai.ErrProviderUnavailable. A reply without content becomes
// ai.ErrEmptyResponse. Rejected credentials do not count as breaker failures.
package openai
