package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/quarry/core"
)

// Transactor runs a function inside one storage transaction.
type Transactor interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// Repository calls made with the context passed to fn join the transaction.
	// Nested calls reuse the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SubmissionRepository stores sources and the raw content submitted with them.
type SubmissionRepository interface {
	// AddSource stores a new source, assigning its ID and CreatedAt.
	AddSource(ctx context.Context, source *core.Source) (*core.Source, error)

	// AddRawContent stores a new raw content body, assigning its ID, CreatedAt
	// and Checksum. Its SourceId must name a source with the same owner.
	// Any ProcessedAt on the input is ignored.
	AddRawContent(ctx context.Context, content *core.RawContent) (*core.RawContent, error)

	// GetSource retrieves a source by ID.
	// Returns ErrNotFound if it doesn't exist or belongs to another owner.
	GetSource(ctx context.Context, owner string, id core.ID) (*core.Source, error)

	// GetRawContent retrieves a raw content by ID.
	// Returns ErrNotFound if it doesn't exist or belongs to another owner.
	GetRawContent(ctx context.Context, owner string, id core.ID) (*core.RawContent, error)

	// MarkProcessed stamps ProcessedAt on a raw content.
	// Returns ErrAlreadyProcessed if it is already stamped; the first stamp is kept.
	MarkProcessed(ctx context.Context, owner string, id core.ID, at time.Time) error

	// ListSources returns an owner's sources in insertion order.
	ListSources(ctx context.Context, owner string, filter Filter) ([]*core.Source, error)

	// ListRawContents returns an owner's raw content in insertion order.
	ListRawContents(ctx context.Context, owner string, filter Filter) ([]*core.RawContent, error)
}

// GraphRepository stores the graph extracted from raw content.
//
// Each Add call stores its whole batch or nothing, assigns IDs and CreatedAt,
// and returns the records with those fields populated, in input order.
type GraphRepository interface {
	// AddQuotes stores quotes. Each RawContentId must exist under the quote's owner.
	AddQuotes(ctx context.Context, quotes ...*core.Quote) ([]*core.Quote, error)

	// AddNodes stores nodes. Each RawContentId must exist under the node's owner.
	AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error)

	// AddEdges stores edges. Both endpoints must be nodes of the edge's owner.
	AddEdges(ctx context.Context, edges ...*core.Edge) ([]*core.Edge, error)

	// AddQuoteNodeLinks stores links. The quote and node must belong to the
	// link's owner. Returns ErrDuplicateKey if a (quote, node) pair is
	// already linked, including twice within the batch.
	AddQuoteNodeLinks(ctx context.Context, links ...*core.QuoteNodeLink) ([]*core.QuoteNodeLink, error)

	// ListQuotes returns an owner's quotes in insertion order.
	ListQuotes(ctx context.Context, owner string, filter Filter) ([]*core.Quote, error)

	// ListNodes returns an owner's nodes in insertion order.
	ListNodes(ctx context.Context, owner string, filter Filter) ([]*core.Node, error)

	// ListEdges returns an owner's edges in insertion order.
	ListEdges(ctx context.Context, owner string, filter Filter) ([]*core.Edge, error)

	// ListQuoteNodeLinks returns an owner's links in insertion order.
	ListQuoteNodeLinks(ctx context.Context, owner string, filter Filter) ([]*core.QuoteNodeLink, error)
}

// IdeaRepository stores ideas.
type IdeaRepository interface {
	// AddIdeas stores ideas. A non-zero NodeId or QuoteId must exist under the
	// idea's owner. An empty Status defaults to generated.
	AddIdeas(ctx context.Context, ideas ...*core.Idea) ([]*core.Idea, error)

	// ListIdeas returns an owner's ideas in insertion order.
	ListIdeas(ctx context.Context, owner string, filter Filter) ([]*core.Idea, error)
}

// Store is a complete storage backend.
type Store interface {
	SubmissionRepository
	GraphRepository
	IdeaRepository
	Transactor

	// Close closes the storage backend and releases resources.
	Close() error
}

// Filter narrows a List call. Zero-valued fields do not filter.
// Fields that do not apply to a record kind are ignored.
type Filter struct {
	RawContentId    core.ID
	SourceId        core.ID
	NodeType        core.NodeType
	SuggestionsOnly bool
	Status          core.IdeaStatus
	Limit           int
}

// Validate checks the filter's values.
func (f Filter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, f.Limit)
	}
	if f.NodeType != "" && !f.NodeType.IsValid() {
		return fmt.Errorf("%w: unknown node type %q", ErrInvalidQuery, f.NodeType)
	}
	if f.Status != "" && !f.Status.IsValid() {
		return fmt.Errorf("%w: unknown idea status %q", ErrInvalidQuery, f.Status)
	}
	return nil
}

// Full reports whether n results satisfy the limit.
func (f Filter) Full(n int) bool {
	return f.Limit > 0 && n >= f.Limit
}

// MatchSource reports whether s passes the filter.
func (f Filter) MatchSource(s *core.Source) bool {
	return f.SourceId == 0 || s.Id == f.SourceId
}

// MatchRawContent reports whether c passes the filter.
func (f Filter) MatchRawContent(c *core.RawContent) bool {
	return (f.RawContentId == 0 || c.Id == f.RawContentId) &&
		(f.SourceId == 0 || c.SourceId == f.SourceId)
}

// MatchQuote reports whether q passes the filter.
func (f Filter) MatchQuote(q *core.Quote) bool {
	return (f.RawContentId == 0 || q.RawContentId == f.RawContentId) &&
		(!f.SuggestionsOnly || q.IsSuggestion)
}

// MatchNode reports whether n passes the filter.
func (f Filter) MatchNode(n *core.Node) bool {
	return (f.RawContentId == 0 || n.RawContentId == f.RawContentId) &&
		(f.NodeType == "" || n.Type == f.NodeType) &&
		(!f.SuggestionsOnly || n.IsSuggestion)
}

// MatchEdge reports whether e passes the filter.
func (f Filter) MatchEdge(e *core.Edge) bool {
	return (f.RawContentId == 0 || e.RawContentId == f.RawContentId) &&
		(!f.SuggestionsOnly || e.IsSuggestion)
}

// MatchQuoteNodeLink reports whether l passes the filter.
func (f Filter) MatchQuoteNodeLink(l *core.QuoteNodeLink) bool {
	return (f.RawContentId == 0 || l.RawContentId == f.RawContentId) &&
		(!f.SuggestionsOnly || l.IsSuggestion)
}

// MatchIdea reports whether i passes the filter.
func (f Filter) MatchIdea(i *core.Idea) bool {
	return f.Status == "" || i.Status == f.Status
}
