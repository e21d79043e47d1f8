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


package badger

import (
	"context"
	"errors"

	"github.com/poiesic/quarry/storage"
)

// Store implements storage.Store on one BadgerDB instance.
type Store struct {
	*SubmissionRepository
	*GraphRepository
	*IdeaRepository
	backend *Backend
}

var _ storage.Store = (*Store)(nil)

// newStore is an internal constructor that returns the concrete type.
// The store takes ownership of backend and closes it on Close.
func newStore(backend *Backend) (*Store, error) {
	submissions, err := NewSubmissionRepository(backend)
	if err != nil {
		return nil, err
	}
	graph, err := NewGraphRepository(backend)
	if err != nil {
		submissions.Close()
		return nil, err
	}
	ideas, err := NewIdeaRepository(backend)
	if err != nil {
		graph.Close()
		submissions.Close()
		return nil, err
	}

	return &Store{
		SubmissionRepository: submissions,
		GraphRepository:      graph,
		IdeaRepository:       ideas,
		backend:              backend,
	}, nil
}

// NewStore opens (or creates) a BadgerDB store in the directory at path.
//
// Returns storage.Store interface to enforce abstraction.
func NewStore(path string) (storage.Store, error) {
	return openStore(path, false)
}

func openStore(path string, inMemory bool) (*Store, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	store, err := newStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

// WithTransaction delegates to the backend.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.backend.WithTransaction(ctx, fn)
}

// Close releases the ID sequences and closes the database.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return errors.Join(
		s.IdeaRepository.Close(),
		s.GraphRepository.Close(),
		s.SubmissionRepository.Close(),
		s.backend.Close(),
	)
}
