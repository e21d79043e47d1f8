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


// Package quarry turns free-form text into an owner-scoped knowledge graph
// of quotes, concept nodes, edges and quote-node links.
//
// Database is the entry point: it opens a store, builds the language-model
// client and hands out ingestion pipelines and retrievers bound to both.
package quarry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/openai"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/poiesic/quarry/storage/sqlite"
)

// Storage backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned for a backend name other than badger or sqlite.
var ErrUnknownBackend = errors.New("unknown storage backend")

type Database struct {
	store    storage.Store
	client   ai.Client
	resolver *ai.Resolver
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	backend  string
	inMemory bool
	client   ai.Client
	logger   *slog.Logger
}

// WithAIConfig sets the model endpoint and fallback credentials.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithBackend selects the storage backend. Default is badger.
func WithBackend(name string) DatabaseOption {
	return func(o *databaseOptions) {
		o.backend = strings.ToLower(strings.TrimSpace(name))
	}
}

// WithInMemory keeps all data in memory; the path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithClient replaces the OpenAI-compatible client.
func WithClient(client ai.Client) DatabaseOption {
	return func(o *databaseOptions) {
		o.client = client
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the store at path and builds the model client.
// For badger path is a directory; for sqlite it is a file.
func NewDatabase(path string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
		backend:  BackendBadger,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	store, err := openStore(options.backend, path, options.inMemory)
	if err != nil {
		return nil, err
	}

	client := options.client
	if client == nil {
		client, err = openai.NewClient(options.aiConfig, openai.WithLogger(options.logger))
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &Database{
		store:    store,
		client:   client,
		resolver: ai.NewResolver(options.aiConfig),
		logger:   options.logger,
	}, nil
}

func openStore(backend, path string, inMemory bool) (storage.Store, error) {
	switch backend {
	case BackendBadger:
		if inMemory {
			return badger.NewMemoryStore()
		}
		return badger.NewStore(path)
	case BackendSQLite:
		if inMemory {
			return sqlite.NewMemoryStore()
		}
		return sqlite.NewStore(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

func (db *Database) Close() error {
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// Store returns the underlying store.
func (db *Database) Store() storage.Store {
	return db.store
}

// Resolver returns the credential resolver built from the AI config.
func (db *Database) Resolver() *ai.Resolver {
	return db.resolver
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	opts = append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)
	return ingestion.NewPipeline(db.store, db.client, db.resolver, opts...)
}

func (db *Database) NewRetriever(opts ...retrieval.Option) (*retrieval.Retriever, error) {
	opts = append([]retrieval.Option{retrieval.WithLogger(db.logger)}, opts...)
	return retrieval.NewRetriever(db.store, opts...)
}
