// Package retrieval serves owner-scoped read views over stored submissions.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

var (
	// ErrUnknownView is returned for a view name that does not exist.
	ErrUnknownView = errors.New("unknown view")

	// ErrOwnerRequired is returned when a query has no owner.
	ErrOwnerRequired = errors.New("owner required")

	// ErrStoreRequired is returned when a Retriever has no store.
	ErrStoreRequired = errors.New("store required")
)

// View names a read view.
type View string

const (
	ViewListQuotes View = "list_quotes"
	ViewListNodes  View = "list_nodes"
	ViewGraphData  View = "graph_data"
	ViewListIdeas  View = "list_ideas"
)

// Views lists every view.
var Views = []View{ViewListQuotes, ViewListNodes, ViewGraphData, ViewListIdeas}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Views {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Query selects one view of an owner's data.
type Query struct {
	Owner  string
	View   View
	Filter storage.Filter
}

// Response holds the rows of one view. Only the fields of the requested view
// are set; Count is the number of primary rows (nodes for graph_data).
type Response struct {
	View   View                  `json:"view"`
	Count  int                   `json:"count"`
	Quotes []*core.Quote         `json:"quotes,omitempty"`
	Nodes  []*core.Node          `json:"nodes,omitempty"`
	Edges  []*core.Edge          `json:"edges,omitempty"`
	Links  []*core.QuoteNodeLink `json:"quote_node_links,omitempty"`
	Ideas  []*core.Idea          `json:"ideas,omitempty"`
}

// Retriever answers view queries against a store.
type Retriever struct {
	store  storage.Store
	logger *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
	}
}

// NewRetriever creates a Retriever.
func NewRetriever(store storage.Store, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	r := &Retriever{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "retrieval")
	return r, nil
}

// Retrieve runs one view query. Rows of other owners are never returned.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Response, error) {
	if strings.TrimSpace(q.Owner) == "" {
		return nil, ErrOwnerRequired
	}
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}

	resp := &Response{View: q.View}
	var err error
	switch q.View {
	case ViewListQuotes:
		resp.Quotes, err = r.store.ListQuotes(ctx, q.Owner, q.Filter)
		resp.Count = len(resp.Quotes)
	case ViewListNodes:
		resp.Nodes, err = r.store.ListNodes(ctx, q.Owner, q.Filter)
		resp.Count = len(resp.Nodes)
	case ViewGraphData:
		err = r.graph(ctx, q, resp)
		resp.Count = len(resp.Nodes)
	case ViewListIdeas:
		resp.Ideas, err = r.store.ListIdeas(ctx, q.Owner, q.Filter)
		resp.Count = len(resp.Ideas)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, q.View)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Debug("served view", "view", q.View, "owner", core.ShortHash(q.Owner), "rows", resp.Count)
	return resp, nil
}

// graph loads nodes and the edges and links among them. The filter's limit
// and node type apply to nodes; edges and links are kept only when every
// node they touch was returned.
func (r *Retriever) graph(ctx context.Context, q Query, resp *Response) error {
	nodes, err := r.store.ListNodes(ctx, q.Owner, q.Filter)
	if err != nil {
		return err
	}
	kept := make(map[core.ID]bool, len(nodes))
	for _, n := range nodes {
		kept[n.Id] = true
	}

	related := q.Filter
	related.Limit = 0
	related.NodeType = ""

	edges, err := r.store.ListEdges(ctx, q.Owner, related)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if kept[e.FromNodeId] && kept[e.ToNodeId] {
			resp.Edges = append(resp.Edges, e)
		}
	}

	links, err := r.store.ListQuoteNodeLinks(ctx, q.Owner, related)
	if err != nil {
		return err
	}
	for _, l := range links {
		if kept[l.NodeId] {
			resp.Links = append(resp.Links, l)
		}
	}
	resp.Nodes = nodes
	return nil
}
