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


package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Fallback is a server-side credential used when the caller supplies none.
// Host and Model are optional; empty values inherit from Config.
type Fallback struct {
	Provider string
	Key      Secret
	Host     string
	Model    string
}

// Config holds configuration for the language-model client.
type Config struct {
	// Host is the base URL for the OpenAI-compatible chat API.
	// Caller-supplied credentials are always sent here.
	// Example: "https://api.openai.com/v1", "http://localhost:11434/v1"
	Host string

	// Model is the chat model identifier.
	// Example: "gpt-4o-mini", "qwen2.5:7b"
	Model string

	// Timeout bounds a single model call. A call that exceeds it fails with
	// ErrProviderUnavailable. Default: 60s
	Timeout time.Duration

	// Fallbacks are tried in order when the caller supplies no credential.
	Fallbacks []Fallback

	// BreakerFailureRatio is the share of failed calls that opens a provider's
	// circuit breaker once BreakerMinRequests calls have been counted.
	// Default: 0.6
	BreakerFailureRatio float64

	// BreakerMinRequests is the number of calls before the breaker evaluates
	// the failure ratio. Default: 5
	BreakerMinRequests uint32

	// BreakerOpenTimeout is how long an open breaker rejects calls before it
	// lets a probe through. Default: 30s
	BreakerOpenTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the chat API host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the chat model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithFallback appends a fallback credential that uses the default host and model.
// Fallbacks are tried in the order they are added.
func WithFallback(provider, key string) ConfigOption {
	return func(c *Config) {
		c.Fallbacks = append(c.Fallbacks, Fallback{Provider: provider, Key: Secret(key)})
	}
}

// WithFallbackEndpoint appends a fallback credential with its own host and model.
func WithFallbackEndpoint(fb Fallback) ConfigOption {
	return func(c *Config) {
		c.Fallbacks = append(c.Fallbacks, fb)
	}
}

// WithBreaker sets the circuit breaker thresholds.
func WithBreaker(failureRatio float64, minRequests uint32, openTimeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerFailureRatio = failureRatio
		c.BreakerMinRequests = minRequests
		c.BreakerOpenTimeout = openTimeout
	}
}

// DefaultConfig returns a Config with sensible defaults for the OpenAI API.
// No fallback credentials are configured by default.
func DefaultConfig() *Config {
	return &Config{
		Host:                "https://api.openai.com/v1",
		Model:               "gpt-4o-mini",
		Timeout:             60 * time.Second,
		BreakerFailureRatio: 0.6,
		BreakerMinRequests:  5,
		BreakerOpenTimeout:  30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithModel("qwen2.5:7b"),
//	    WithFallback("ollama", "none"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.Host = normalizeHost(c.Host)
	for i := range c.Fallbacks {
		c.Fallbacks[i].Provider = strings.TrimSpace(c.Fallbacks[i].Provider)
		c.Fallbacks[i].Host = normalizeHost(c.Fallbacks[i].Host)
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
// Error messages name fallbacks by provider and never include keys.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Host == "" {
		return errors.New("ai config: Host is required")
	}
	if c.Model == "" {
		return errors.New("ai config: Model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("ai config: Timeout must be positive")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return errors.New("ai config: BreakerFailureRatio must be in (0, 1]")
	}
	if c.BreakerMinRequests < 1 {
		return errors.New("ai config: BreakerMinRequests must be at least 1")
	}
	if c.BreakerOpenTimeout <= 0 {
		return errors.New("ai config: BreakerOpenTimeout must be positive")
	}

	seen := make(map[string]bool, len(c.Fallbacks))
	for i, fb := range c.Fallbacks {
		if fb.Provider == "" {
			return fmt.Errorf("ai config: fallback %d has no provider name", i)
		}
		if fb.Provider == ProviderUserSupplied {
			return fmt.Errorf("ai config: provider name %q is reserved", ProviderUserSupplied)
		}
		if seen[fb.Provider] {
			return fmt.Errorf("ai config: duplicate fallback provider %q", fb.Provider)
		}
		seen[fb.Provider] = true
		if strings.TrimSpace(fb.Key.Reveal()) == "" {
			return fmt.Errorf("ai config: fallback %q has an empty key", fb.Provider)
		}
	}
	return nil
}
