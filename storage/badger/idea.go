package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// IdeaRepository implements storage.IdeaRepository for BadgerDB.
type IdeaRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.IdeaRepository = (*IdeaRepository)(nil)

// NewIdeaRepository creates a new IdeaRepository.
func NewIdeaRepository(backend *Backend) (*IdeaRepository, error) {
	idSeq, err := backend.GetSequence(ideaIDSeq)
	if err != nil {
		return nil, err
	}

	return &IdeaRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *IdeaRepository) Close() error {
	return r.idSeq.Release()
}

// AddIdeas stores ideas, checking any generating node or quote reference.
func (r *IdeaRepository) AddIdeas(ctx context.Context, ideas ...*core.Idea) ([]*core.Idea, error) {
	for _, idea := range ideas {
		if idea != nil && idea.Status == "" {
			idea.Status = core.IdeaStatusGenerated
		}
		if err := core.ValidateIdea(idea); err != nil {
			return nil, err
		}
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		refs := newRefChecker(tx)
		for _, idea := range ideas {
			if idea.NodeId != 0 {
				if err := refs.require(nodePrefix, idea.Owner, idea.NodeId, "node"); err != nil {
					return err
				}
			}
			if idea.QuoteId != 0 {
				if err := refs.require(quotePrefix, idea.Owner, idea.QuoteId, "quote"); err != nil {
					return err
				}
			}
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			idea.Id = id
			if idea.CreatedAt.IsZero() {
				idea.CreatedAt = now()
			}
			if err := putRecord(tx, makeRecordKey(ideaPrefix, idea.Owner, idea.Id), idea); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ideas, nil
}

// ListIdeas returns an owner's ideas.
func (r *IdeaRepository) ListIdeas(ctx context.Context, owner string, filter storage.Filter) ([]*core.Idea, error) {
	return list(ctx, r.backend, ideaPrefix, owner, filter, filter.MatchIdea)
}
