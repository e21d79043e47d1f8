package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// SubmissionRepository implements storage.SubmissionRepository for BadgerDB.
type SubmissionRepository struct {
	backend   *Backend
	sourceSeq *badger.Sequence
	rawSeq    *badger.Sequence
}

var _ storage.SubmissionRepository = (*SubmissionRepository)(nil)

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(backend *Backend) (*SubmissionRepository, error) {
	sourceSeq, err := backend.GetSequence(sourceIDSeq)
	if err != nil {
		return nil, err
	}
	rawSeq, err := backend.GetSequence(rawContentIDSeq)
	if err != nil {
		sourceSeq.Release()
		return nil, err
	}

	return &SubmissionRepository{
		backend:   backend,
		sourceSeq: sourceSeq,
		rawSeq:    rawSeq,
	}, nil
}

// Close releases the ID sequences.
func (r *SubmissionRepository) Close() error {
	return errors.Join(r.sourceSeq.Release(), r.rawSeq.Release())
}

// AddSource stores a new source.
func (r *SubmissionRepository) AddSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		id, err := nextID(r.sourceSeq)
		if err != nil {
			return err
		}
		source.Id = id
		if source.CreatedAt.IsZero() {
			source.CreatedAt = now()
		}
		return putRecord(tx, makeRecordKey(sourcePrefix, source.Owner, source.Id), source)
	})
	if err != nil {
		return nil, err
	}
	return source, nil
}

// AddRawContent stores a new raw content body under an existing source.
func (r *SubmissionRepository) AddRawContent(ctx context.Context, content *core.RawContent) (*core.RawContent, error) {
	if err := core.ValidateRawContent(content); err != nil {
		return nil, err
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		ok, err := exists(tx, makeRecordKey(sourcePrefix, content.Owner, content.SourceId))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: source %d", storage.ErrInvalidReference, content.SourceId)
		}

		id, err := nextID(r.rawSeq)
		if err != nil {
			return err
		}
		content.Id = id
		content.Checksum = core.Checksum(content.Text)
		content.ProcessedAt = nil
		if content.CreatedAt.IsZero() {
			content.CreatedAt = now()
		}
		return putRecord(tx, makeRecordKey(rawContentPrefix, content.Owner, content.Id), content)
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// GetSource retrieves a single source by ID.
func (r *SubmissionRepository) GetSource(ctx context.Context, owner string, id core.ID) (*core.Source, error) {
	var result *core.Source
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = getRecord[core.Source](tx, makeRecordKey(sourcePrefix, owner, id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetRawContent retrieves a single raw content by ID.
func (r *SubmissionRepository) GetRawContent(ctx context.Context, owner string, id core.ID) (*core.RawContent, error) {
	var result *core.RawContent
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = getRecord[core.RawContent](tx, makeRecordKey(rawContentPrefix, owner, id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// MarkProcessed stamps ProcessedAt once.
func (r *SubmissionRepository) MarkProcessed(ctx context.Context, owner string, id core.ID, at time.Time) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		key := makeRecordKey(rawContentPrefix, owner, id)
		content, err := getRecord[core.RawContent](tx, key)
		if err != nil {
			return err
		}
		if content == nil {
			return storage.ErrNotFound
		}
		if content.ProcessedAt != nil {
			return fmt.Errorf("%w: raw content %d", storage.ErrAlreadyProcessed, id)
		}
		stamp := at.UTC()
		content.ProcessedAt = &stamp
		return putRecord(tx, key, content)
	})
}

// ListSources returns an owner's sources.
func (r *SubmissionRepository) ListSources(ctx context.Context, owner string, filter storage.Filter) ([]*core.Source, error) {
	return list(ctx, r.backend, sourcePrefix, owner, filter, filter.MatchSource)
}

// ListRawContents returns an owner's raw content.
func (r *SubmissionRepository) ListRawContents(ctx context.Context, owner string, filter storage.Filter) ([]*core.RawContent, error) {
	return list(ctx, r.backend, rawContentPrefix, owner, filter, filter.MatchRawContent)
}
