package sqlite

import (
	"context"
	"database/sql"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

const ideaColumns = "id, owner_id, node_id, quote_id, text, type, status, metadata, created_at"

// AddIdeas stores ideas, checking any generating node or quote reference.
func (s *Store) AddIdeas(ctx context.Context, ideas ...*core.Idea) ([]*core.Idea, error) {
	for _, idea := range ideas {
		if idea != nil && idea.Status == "" {
			idea.Status = core.IdeaStatusGenerated
		}
		if err := core.ValidateIdea(idea); err != nil {
			return nil, err
		}
	}

	err := s.update(ctx, func(db querier) error {
		refs := newRefChecker(ctx, db)
		for _, idea := range ideas {
			if idea.NodeId != 0 {
				if err := refs.require(nodesTable, idea.Owner, idea.NodeId, "node"); err != nil {
					return err
				}
			}
			if idea.QuoteId != 0 {
				if err := refs.require(quotesTable, idea.Owner, idea.QuoteId, "quote"); err != nil {
					return err
				}
			}
			metadata, err := encodeJSON(idea.Metadata, len(idea.Metadata) == 0)
			if err != nil {
				return err
			}
			if idea.CreatedAt.IsZero() {
				idea.CreatedAt = now()
			}
			res, err := db.ExecContext(ctx,
				"INSERT INTO ideas (owner_id, node_id, quote_id, text, type, status, metadata, created_at) "+
					"VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
				idea.Owner, nullID(idea.NodeId), nullID(idea.QuoteId), idea.Text, idea.Type,
				string(idea.Status), metadata, formatTime(idea.CreatedAt))
			if err != nil {
				return mapError(err)
			}
			if idea.Id, err = insertedID(res); err != nil {
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
func (s *Store) ListIdeas(ctx context.Context, owner string, filter storage.Filter) ([]*core.Idea, error) {
	w := ownerScope(owner).
		addIf(filter.Status != "", "status = ?", string(filter.Status))
	return list(ctx, s, ideaColumns, ideasTable, w, filter, scanIdea)
}

func scanIdea(row scanner) (*core.Idea, error) {
	var (
		idea            core.Idea
		id              int64
		nodeID, quoteID sql.NullInt64
		status          string
		metadata        sql.NullString
		createdAt       string
	)
	if err := row.Scan(&id, &idea.Owner, &nodeID, &quoteID, &idea.Text, &idea.Type, &status, &metadata, &createdAt); err != nil {
		return nil, err
	}
	idea.Id = core.ID(id)
	idea.NodeId, idea.QuoteId = idFrom(nodeID), idFrom(quoteID)
	idea.Status = core.IdeaStatus(status)
	if err := decodeJSON(metadata, &idea.Metadata); err != nil {
		return nil, err
	}
	var err error
	if idea.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &idea, nil
}
