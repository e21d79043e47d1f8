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


package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/poiesic/quarry/ai"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelFactory builds a chat model bound to one credential.
type ModelFactory func(cred ai.Credential, httpClient *http.Client) (llms.Model, error)

// Client implements ai.Client using OpenAI-compatible chat APIs.
// A model is built per call so concurrent requests with different
// credentials never share a token.
type Client struct {
	config     *ai.Config
	newModel   ModelFactory
	httpClient *http.Client
	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker
	logger     *slog.Logger
}

var _ ai.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithModelFactory replaces the langchaingo model constructor.
func WithModelFactory(factory ModelFactory) Option {
	return func(c *Client) {
		if factory != nil {
			c.newModel = factory
		}
	}
}

// WithHTTPClient sets the HTTP client handed to each model.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// newClient is an internal constructor that returns the concrete type.
func newClient(config *ai.Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     config,
		newModel:   defaultModelFactory,
		httpClient: &http.Client{Timeout: config.Timeout},
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "openai-client")
	return c, nil
}

// NewClient creates a chat client using the provided configuration.
//
// Returns ai.Client interface to enforce abstraction.
func NewClient(config *ai.Config, opts ...Option) (ai.Client, error) {
	return newClient(config, opts...)
}

func defaultModelFactory(cred ai.Credential, httpClient *http.Client) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(cred.Host),
		openai.WithToken(cred.Reveal()),
		openai.WithModel(cred.Model),
		openai.WithHTTPClient(httpClient),
	)
}

// Complete sends the prompt pair once and returns the model's text.
// The call is bounded by the configured timeout and guarded by a
// per-provider circuit breaker. It is never retried here.
func (c *Client) Complete(ctx context.Context, cred ai.Credential, prompt ai.Prompt) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	breaker := c.breaker(cred)
	out, err := breaker.Execute(func() (interface{}, error) {
		return c.generate(callCtx, cred, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: circuit open for provider %s", ai.ErrProviderUnavailable, cred.Provider)
		}
		c.logger.Warn("model call failed", "provider", cred.Provider, "model", cred.Model, "err", err)
		return "", err
	}

	text := out.(string)
	c.logger.Debug("model call succeeded", "provider", cred.Provider, "model", cred.Model, "bytes", len(text))
	return text, nil
}

func (c *Client) generate(ctx context.Context, cred ai.Credential, prompt ai.Prompt) (string, error) {
	model, err := c.newModel(cred, c.httpClient)
	if err != nil {
		// Constructor errors can echo configuration, so only the class is kept.
		return "", fmt.Errorf("%w: client setup failed", ai.ErrProviderUnavailable)
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt.System),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt.User),
			},
		},
	}

	response, err := model.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if response == nil || len(response.Choices) < 1 {
		return "", ai.ErrEmptyResponse
	}

	text := strings.TrimSpace(response.Choices[0].Content)
	if text == "" {
		return "", ai.ErrEmptyResponse
	}
	return text, nil
}

// breaker returns the circuit breaker for a credential's provider.
// Caller-supplied keys share one breaker per host.
func (c *Client) breaker(cred ai.Credential) *gobreaker.CircuitBreaker {
	name := cred.Provider
	if cred.IsUserSupplied() {
		name = cred.Provider + "@" + cred.Host
	}

	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	if cb, ok := c.breakers[name]; ok {
		return cb
	}

	minRequests := c.config.BreakerMinRequests
	ratio := c.config.BreakerFailureRatio
	logger := c.logger
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// Only provider-side failures count against the provider.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ai.ErrProviderUnavailable)
		},
	})
	c.breakers[name] = cb
	return cb
}
