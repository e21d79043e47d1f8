package materialize

import (
	"context"
	"log/slog"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/extraction"
	"github.com/poiesic/quarry/storage"
)

const (
	// DefaultEdgeType is used when the model leaves an edge untyped.
	DefaultEdgeType = "relates_to"

	// DefaultLinkType is used when the model leaves a link untyped.
	DefaultLinkType = "supports"
)

// GraphStore is the storage a Materializer writes into.
type GraphStore interface {
	storage.GraphRepository
	storage.Transactor
}

// Materializer writes extraction results as suggestion rows.
// It holds no per-run state and is safe for concurrent use.
type Materializer struct {
	store  GraphStore
	atomic bool
	logger *slog.Logger
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Materializer) {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
	}
}

// WithAtomic runs all four phases in one storage transaction.
// Default is false: phases are attempted independently.
func WithAtomic(atomic bool) Option {
	return func(m *Materializer) {
		m.atomic = atomic
	}
}

// New creates a Materializer.
func New(store GraphStore, opts ...Option) (*Materializer, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	m := &Materializer{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "materializer")
	return m, nil
}

// Atomic reports whether runs are wrapped in one transaction.
func (m *Materializer) Atomic() bool {
	return m.atomic
}

// Materialize writes x under owner, attributing every row to rawContentID.
//
// Failures are reported per phase in the Result, never returned. A nil or
// empty extraction yields a Result with four successful, empty phases.
func (m *Materializer) Materialize(ctx context.Context, owner string, rawContentID core.ID, x *extraction.Result) *Result {
	res := newResult()
	if x == nil {
		return res
	}
	logger := m.logger.With("owner", core.ShortHash(owner), "raw_content_id", rawContentID)

	if !m.atomic {
		run := &run{store: m.store, owner: owner, rawContentID: rawContentID, x: x, res: res}
		run.execute(ctx, false)
		logResult(logger, res)
		return res
	}

	err := m.store.WithTransaction(ctx, func(txCtx context.Context) error {
		run := &run{store: m.store, owner: owner, rawContentID: rawContentID, x: x, res: res}
		run.execute(txCtx, true)
		return res.Err()
	})
	if err != nil {
		rollback(res, err)
	}
	logResult(logger, res)
	return res
}

// rollback rewrites res after an atomic run failed. The failing phase keeps
// its error; every other phase reports ErrRolledBack. A failure outside any
// phase, such as the commit itself, is reported on every phase.
func rollback(res *Result, err error) {
	phaseFailed := res.Err() != nil
	for _, p := range Phases {
		pr := res.phase(p)
		pr.Inserted = 0
		switch {
		case !phaseFailed:
			pr.Err = err
		case pr.Err == nil:
			pr.Err = ErrRolledBack
		}
	}
	res.QuoteIDs.reset()
	res.NodeIDs.reset()
}

func logResult(logger *slog.Logger, res *Result) {
	for _, p := range res.All() {
		if p.Err != nil {
			logger.Warn("materialization phase failed", "phase", p.Phase, "err", p.Err)
		}
		if p.Dropped > 0 {
			logger.Warn("dropped unresolved references", "phase", p.Phase, "dropped", p.Dropped)
		}
	}
	logger.Debug("materialized extraction", "inserted", res.Inserted(), "dropped", res.Dropped())
}

// run carries one Materialize call's state.
type run struct {
	store        GraphStore
	owner        string
	rawContentID core.ID
	x            *extraction.Result
	res          *Result
}

// execute runs the four phases in order. With stopOnError the first failing
// phase ends the run.
func (r *run) execute(ctx context.Context, stopOnError bool) {
	phases := []func(context.Context) error{r.quotes, r.nodes, r.edges, r.links}
	for _, phase := range phases {
		if err := phase(ctx); err != nil && stopOnError {
			return
		}
	}
}

func (r *run) quotes(ctx context.Context) error {
	if len(r.x.Quotes) == 0 {
		return nil
	}
	rows := make([]*core.Quote, len(r.x.Quotes))
	for i, q := range r.x.Quotes {
		rows[i] = &core.Quote{
			Owner:        r.owner,
			RawContentId: r.rawContentID,
			Text:         q.Text,
			StartIndex:   q.StartIndex,
			EndIndex:     q.EndIndex,
			Sentiment:    q.Sentiment,
			Emotions:     q.Emotions,
			IsSuggestion: true,
		}
	}

	stored, err := r.store.AddQuotes(ctx, rows...)
	if err != nil {
		r.res.Quotes.Err = err
		return err
	}
	// The last duplicate id wins.
	for i, q := range stored {
		r.res.QuoteIDs.add(r.x.Quotes[i].ID, i, q.Id)
	}
	r.res.Quotes.Inserted = len(stored)
	return nil
}

func (r *run) nodes(ctx context.Context) error {
	if len(r.x.Nodes) == 0 {
		return nil
	}
	rows := make([]*core.Node, len(r.x.Nodes))
	for i, n := range r.x.Nodes {
		rows[i] = &core.Node{
			Owner:        r.owner,
			RawContentId: r.rawContentID,
			Type:         n.Type,
			Label:        n.Label,
			Description:  n.Description,
			IsSuggestion: true,
		}
	}

	stored, err := r.store.AddNodes(ctx, rows...)
	if err != nil {
		r.res.Nodes.Err = err
		return err
	}
	for i, n := range stored {
		r.res.NodeIDs.add(r.x.Nodes[i].ID, i, n.Id)
	}
	r.res.Nodes.Inserted = len(stored)
	return nil
}

func (r *run) edges(ctx context.Context) error {
	var rows []*core.Edge
	for _, e := range r.x.Edges {
		from, okFrom := r.res.NodeIDs.Resolve(e.FromNodeID)
		to, okTo := r.res.NodeIDs.Resolve(e.ToNodeID)
		if !okFrom || !okTo {
			r.res.Edges.Dropped++
			continue
		}
		edgeType := e.Type
		if edgeType == "" {
			edgeType = DefaultEdgeType
		}
		rows = append(rows, &core.Edge{
			Owner:        r.owner,
			RawContentId: r.rawContentID,
			FromNodeId:   from,
			ToNodeId:     to,
			Type:         edgeType,
			Description:  e.Description,
			IsSuggestion: true,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	stored, err := r.store.AddEdges(ctx, rows...)
	if err != nil {
		r.res.Edges.Err = err
		return err
	}
	r.res.Edges.Inserted = len(stored)
	return nil
}

func (r *run) links(ctx context.Context) error {
	var rows []*core.QuoteNodeLink
	for _, l := range r.x.Links {
		quoteID, okQuote := r.res.QuoteIDs.Resolve(l.QuoteID)
		nodeID, okNode := r.res.NodeIDs.Resolve(l.NodeID)
		if !okQuote || !okNode {
			r.res.Links.Dropped++
			continue
		}
		linkType := l.Type
		if linkType == "" {
			linkType = DefaultLinkType
		}
		rows = append(rows, &core.QuoteNodeLink{
			Owner:        r.owner,
			RawContentId: r.rawContentID,
			QuoteId:      quoteID,
			NodeId:       nodeID,
			Type:         linkType,
			IsSuggestion: true,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	stored, err := r.store.AddQuoteNodeLinks(ctx, rows...)
	if err != nil {
		r.res.Links.Err = err
		return err
	}
	r.res.Links.Inserted = len(stored)
	return nil
}
