package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

const (
	quoteColumns = "id, owner_id, raw_content_id, text, start_index, end_index, sentiment, emotions, " +
		"is_suggestion, reviewed_by, reviewed_at, created_at"
	nodeColumns = "id, owner_id, raw_content_id, type, label, description, embedding, " +
		"is_suggestion, reviewed_by, reviewed_at, created_at"
	edgeColumns = "id, owner_id, raw_content_id, from_node_id, to_node_id, type, description, " +
		"is_suggestion, reviewed_by, reviewed_at, created_at"
	linkColumns = "id, owner_id, raw_content_id, quote_id, node_id, type, " +
		"is_suggestion, reviewed_by, reviewed_at, created_at"
)

// refChecker verifies that referenced rows exist under an owner,
// remembering what it has already seen within one transaction.
type refChecker struct {
	ctx  context.Context
	q    querier
	seen map[string]bool
}

func newRefChecker(ctx context.Context, q querier) *refChecker {
	return &refChecker{ctx: ctx, q: q, seen: make(map[string]bool)}
}

func (c *refChecker) require(table, owner string, id core.ID, what string) error {
	key := fmt.Sprintf("%s/%s/%d", table, owner, id)
	if c.seen[key] {
		return nil
	}
	if err := requireRef(c.ctx, c.q, table, owner, int64(id), what); err != nil {
		return err
	}
	c.seen[key] = true
	return nil
}

// AddQuotes stores quotes under their raw content.
func (s *Store) AddQuotes(ctx context.Context, quotes ...*core.Quote) ([]*core.Quote, error) {
	for _, q := range quotes {
		if err := core.ValidateQuote(q); err != nil {
			return nil, err
		}
	}

	err := s.update(ctx, func(db querier) error {
		refs := newRefChecker(ctx, db)
		for _, q := range quotes {
			if err := refs.require(rawContentTable, q.Owner, q.RawContentId, "raw content"); err != nil {
				return err
			}
			emotions, err := encodeJSON(q.Emotions, len(q.Emotions) == 0)
			if err != nil {
				return err
			}
			if q.CreatedAt.IsZero() {
				q.CreatedAt = now()
			}
			res, err := db.ExecContext(ctx,
				"INSERT INTO quotes (owner_id, raw_content_id, text, start_index, end_index, sentiment, emotions, "+
					"is_suggestion, reviewed_by, reviewed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				q.Owner, int64(q.RawContentId), q.Text, nullInt(q.StartIndex), nullInt(q.EndIndex), q.Sentiment, emotions,
				boolInt(q.IsSuggestion), q.Review.ReviewedBy, nullTime(q.Review.ReviewedAt), formatTime(q.CreatedAt))
			if err != nil {
				return mapError(err)
			}
			if q.Id, err = insertedID(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

// AddNodes stores nodes. RawContentId is checked when set.
func (s *Store) AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	for _, n := range nodes {
		if err := core.ValidateNode(n); err != nil {
			return nil, err
		}
	}

	err := s.update(ctx, func(db querier) error {
		refs := newRefChecker(ctx, db)
		for _, n := range nodes {
			if n.RawContentId != 0 {
				if err := refs.require(rawContentTable, n.Owner, n.RawContentId, "raw content"); err != nil {
					return err
				}
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now()
			}
			res, err := db.ExecContext(ctx,
				"INSERT INTO nodes (owner_id, raw_content_id, type, label, description, embedding, "+
					"is_suggestion, reviewed_by, reviewed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				n.Owner, nullID(n.RawContentId), string(n.Type), n.Label, n.Description, encodeVector(n.Vector),
				boolInt(n.IsSuggestion), n.Review.ReviewedBy, nullTime(n.Review.ReviewedAt), formatTime(n.CreatedAt))
			if err != nil {
				return mapError(err)
			}
			if n.Id, err = insertedID(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// AddEdges stores edges between existing nodes.
func (s *Store) AddEdges(ctx context.Context, edges ...*core.Edge) ([]*core.Edge, error) {
	for _, e := range edges {
		if err := core.ValidateEdge(e); err != nil {
			return nil, err
		}
	}

	err := s.update(ctx, func(db querier) error {
		refs := newRefChecker(ctx, db)
		for _, e := range edges {
			if err := refs.require(nodesTable, e.Owner, e.FromNodeId, "node"); err != nil {
				return err
			}
			if err := refs.require(nodesTable, e.Owner, e.ToNodeId, "node"); err != nil {
				return err
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now()
			}
			res, err := db.ExecContext(ctx,
				"INSERT INTO edges (owner_id, raw_content_id, from_node_id, to_node_id, type, description, "+
					"is_suggestion, reviewed_by, reviewed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				e.Owner, nullID(e.RawContentId), int64(e.FromNodeId), int64(e.ToNodeId), e.Type, e.Description,
				boolInt(e.IsSuggestion), e.Review.ReviewedBy, nullTime(e.Review.ReviewedAt), formatTime(e.CreatedAt))
			if err != nil {
				return mapError(err)
			}
			if e.Id, err = insertedID(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edges, nil
}

// AddQuoteNodeLinks stores links. The UNIQUE(quote_id, node_id) constraint
// rejects a pair that is already linked, including within this batch.
func (s *Store) AddQuoteNodeLinks(ctx context.Context, links ...*core.QuoteNodeLink) ([]*core.QuoteNodeLink, error) {
	for _, l := range links {
		if err := core.ValidateQuoteNodeLink(l); err != nil {
			return nil, err
		}
	}

	err := s.update(ctx, func(db querier) error {
		refs := newRefChecker(ctx, db)
		for _, l := range links {
			if err := refs.require(quotesTable, l.Owner, l.QuoteId, "quote"); err != nil {
				return err
			}
			if err := refs.require(nodesTable, l.Owner, l.NodeId, "node"); err != nil {
				return err
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = now()
			}
			res, err := db.ExecContext(ctx,
				"INSERT INTO quote_node_links (owner_id, raw_content_id, quote_id, node_id, type, "+
					"is_suggestion, reviewed_by, reviewed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				l.Owner, nullID(l.RawContentId), int64(l.QuoteId), int64(l.NodeId), l.Type,
				boolInt(l.IsSuggestion), l.Review.ReviewedBy, nullTime(l.Review.ReviewedAt), formatTime(l.CreatedAt))
			if err != nil {
				return mapError(err)
			}
			if l.Id, err = insertedID(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// ListQuotes returns an owner's quotes.
func (s *Store) ListQuotes(ctx context.Context, owner string, filter storage.Filter) ([]*core.Quote, error) {
	w := ownerScope(owner).
		addIf(filter.RawContentId != 0, "raw_content_id = ?", int64(filter.RawContentId)).
		addIf(filter.SuggestionsOnly, "is_suggestion = ?", 1)
	return list(ctx, s, quoteColumns, quotesTable, w, filter, scanQuote)
}

// ListNodes returns an owner's nodes.
func (s *Store) ListNodes(ctx context.Context, owner string, filter storage.Filter) ([]*core.Node, error) {
	w := ownerScope(owner).
		addIf(filter.RawContentId != 0, "raw_content_id = ?", int64(filter.RawContentId)).
		addIf(filter.NodeType != "", "type = ?", string(filter.NodeType)).
		addIf(filter.SuggestionsOnly, "is_suggestion = ?", 1)
	return list(ctx, s, nodeColumns, nodesTable, w, filter, scanNode)
}

// ListEdges returns an owner's edges.
func (s *Store) ListEdges(ctx context.Context, owner string, filter storage.Filter) ([]*core.Edge, error) {
	w := ownerScope(owner).
		addIf(filter.RawContentId != 0, "raw_content_id = ?", int64(filter.RawContentId)).
		addIf(filter.SuggestionsOnly, "is_suggestion = ?", 1)
	return list(ctx, s, edgeColumns, edgesTable, w, filter, scanEdge)
}

// ListQuoteNodeLinks returns an owner's links.
func (s *Store) ListQuoteNodeLinks(ctx context.Context, owner string, filter storage.Filter) ([]*core.QuoteNodeLink, error) {
	w := ownerScope(owner).
		addIf(filter.RawContentId != 0, "raw_content_id = ?", int64(filter.RawContentId)).
		addIf(filter.SuggestionsOnly, "is_suggestion = ?", 1)
	return list(ctx, s, linkColumns, linksTable, w, filter, scanLink)
}

// reviewColumns are the scan targets shared by every graph row.
type reviewColumns struct {
	suggestion int
	reviewedBy string
	reviewedAt sql.NullString
	createdAt  string
}

func (c *reviewColumns) targets() []any {
	return []any{&c.suggestion, &c.reviewedBy, &c.reviewedAt, &c.createdAt}
}

func (c *reviewColumns) decode(review *core.Review, isSuggestion *bool, createdAt *time.Time) error {
	var err error
	*isSuggestion = c.suggestion != 0
	review.ReviewedBy = c.reviewedBy
	if review.ReviewedAt, err = parseNullTime(c.reviewedAt); err != nil {
		return err
	}
	*createdAt, err = parseTime(c.createdAt)
	return err
}

func scanQuote(row scanner) (*core.Quote, error) {
	var (
		q          core.Quote
		id, rcID   int64
		start, end sql.NullInt64
		emotions   sql.NullString
		rc         reviewColumns
	)
	dest := append([]any{&id, &q.Owner, &rcID, &q.Text, &start, &end, &q.Sentiment, &emotions}, rc.targets()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	q.Id, q.RawContentId = core.ID(id), core.ID(rcID)
	q.StartIndex, q.EndIndex = intFrom(start), intFrom(end)
	if err := decodeJSON(emotions, &q.Emotions); err != nil {
		return nil, err
	}
	if err := rc.decode(&q.Review, &q.IsSuggestion, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanNode(row scanner) (*core.Node, error) {
	var (
		n         core.Node
		id        int64
		rcID      sql.NullInt64
		nodeType  string
		embedding []byte
		rc        reviewColumns
	)
	dest := append([]any{&id, &n.Owner, &rcID, &nodeType, &n.Label, &n.Description, &embedding}, rc.targets()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	n.Id, n.RawContentId = core.ID(id), idFrom(rcID)
	n.Type = core.NodeType(nodeType)
	var err error
	if n.Vector, err = decodeVector(embedding); err != nil {
		return nil, err
	}
	if err := rc.decode(&n.Review, &n.IsSuggestion, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanEdge(row scanner) (*core.Edge, error) {
	var (
		e        core.Edge
		id       int64
		rcID     sql.NullInt64
		from, to int64
		rc       reviewColumns
	)
	dest := append([]any{&id, &e.Owner, &rcID, &from, &to, &e.Type, &e.Description}, rc.targets()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	e.Id, e.RawContentId = core.ID(id), idFrom(rcID)
	e.FromNodeId, e.ToNodeId = core.ID(from), core.ID(to)
	if err := rc.decode(&e.Review, &e.IsSuggestion, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanLink(row scanner) (*core.QuoteNodeLink, error) {
	var (
		l               core.QuoteNodeLink
		id              int64
		rcID            sql.NullInt64
		quoteID, nodeID int64
		rc              reviewColumns
	)
	dest := append([]any{&id, &l.Owner, &rcID, &quoteID, &nodeID, &l.Type}, rc.targets()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	l.Id, l.RawContentId = core.ID(id), idFrom(rcID)
	l.QuoteId, l.NodeId = core.ID(quoteID), core.ID(nodeID)
	if err := rc.decode(&l.Review, &l.IsSuggestion, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
