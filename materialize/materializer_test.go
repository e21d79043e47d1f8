package materialize

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/extraction"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

// failingStore fails the named phase's Add call.
type failingStore struct {
	storage.Store
	fail Phase
	err  error
}

func (s *failingStore) AddQuotes(ctx context.Context, quotes ...*core.Quote) ([]*core.Quote, error) {
	if s.fail == PhaseQuotes {
		return nil, s.err
	}
	return s.Store.AddQuotes(ctx, quotes...)
}

func (s *failingStore) AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	if s.fail == PhaseNodes {
		return nil, s.err
	}
	return s.Store.AddNodes(ctx, nodes...)
}

func (s *failingStore) AddEdges(ctx context.Context, edges ...*core.Edge) ([]*core.Edge, error) {
	if s.fail == PhaseEdges {
		return nil, s.err
	}
	return s.Store.AddEdges(ctx, edges...)
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// submit stores a source and raw content and returns the raw content id.
func submit(t *testing.T, store storage.Store) core.ID {
	t.Helper()
	ctx := context.Background()
	src, err := store.AddSource(ctx, &core.Source{Owner: owner, Kind: core.SourceKindManual})
	require.NoError(t, err)
	rc, err := store.AddRawContent(ctx, &core.RawContent{Owner: owner, SourceId: src.Id, Text: "Users say the app crashes on login."})
	require.NoError(t, err)
	return rc.Id
}

func loginCrash() *extraction.Result {
	return &extraction.Result{
		Quotes: []extraction.Quote{{ID: "1", Text: "app crashes on login"}},
		Nodes:  []extraction.Node{{ID: "1", Type: core.NodeTypePain, Label: "Login crash"}},
		Edges:  []extraction.Edge{},
		Links:  []extraction.Link{{QuoteID: "1", NodeID: "1", Type: "supports"}},
	}
}

func TestMaterialize_EndToEndScenario(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)
	ctx := context.Background()

	res := m.Materialize(ctx, owner, rcID, loginCrash())
	require.NoError(t, res.Err())
	assert.True(t, res.Succeeded())
	for _, p := range res.All() {
		assert.Equal(t, StatusSuccess, p.Status(), p.Phase)
	}
	assert.Equal(t, 1, res.Quotes.Inserted)
	assert.Equal(t, 1, res.Nodes.Inserted)
	assert.Equal(t, 0, res.Edges.Inserted)
	assert.Equal(t, 1, res.Links.Inserted)

	quotes, err := store.ListQuotes(ctx, owner, storage.Filter{RawContentId: rcID})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].IsSuggestion)
	assert.Equal(t, owner, quotes[0].Owner)

	nodes, err := store.ListNodes(ctx, owner, storage.Filter{RawContentId: rcID})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, core.NodeTypePain, nodes[0].Type)
	assert.True(t, nodes[0].IsSuggestion)

	edges, err := store.ListEdges(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, edges)

	links, err := store.ListQuoteNodeLinks(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, quotes[0].Id, links[0].QuoteId)
	assert.Equal(t, nodes[0].Id, links[0].NodeId)
	assert.True(t, links[0].IsSuggestion)
}

func TestMaterialize_DropsUnresolvedEdges(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)
	ctx := context.Background()

	x := &extraction.Result{
		Nodes: []extraction.Node{
			{ID: "a", Type: core.NodeTypePain, Label: "crash"},
			{ID: "b", Type: core.NodeTypeSolution, Label: "fix"},
		},
		Edges: []extraction.Edge{
			{FromNodeID: "ghost", ToNodeID: "a", Type: "causes"},
			{FromNodeID: "b", ToNodeID: "a", Type: "solves"},
			{FromNodeID: "a", ToNodeID: "nowhere"},
		},
		Links: []extraction.Link{{QuoteID: "q9", NodeID: "a"}},
	}

	res := m.Materialize(ctx, owner, rcID, x)
	require.NoError(t, res.Err())
	assert.Equal(t, 1, res.Edges.Inserted)
	assert.Equal(t, 2, res.Edges.Dropped)
	assert.Equal(t, 0, res.Links.Inserted)
	assert.Equal(t, 1, res.Links.Dropped)
	assert.Equal(t, 3, res.Dropped())

	edges, err := store.ListEdges(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	from, _ := res.NodeIDs.Resolve("b")
	to, _ := res.NodeIDs.Resolve("a")
	assert.Equal(t, from, edges[0].FromNodeId)
	assert.Equal(t, to, edges[0].ToNodeId)
	assert.Equal(t, "solves", edges[0].Type)
}

func TestMaterialize_LastDuplicateIDWins(t *testing.T) {
	x := &extraction.Result{
		Nodes: []extraction.Node{
			{ID: "1", Type: core.NodeTypePain, Label: "first"},
			{ID: "1", Type: core.NodeTypeTheme, Label: "second"},
			{ID: "2", Type: core.NodeTypeSolution, Label: "target"},
		},
		Edges: []extraction.Edge{{FromNodeID: "1", ToNodeID: "2", Type: "relates_to"}},
	}

	for i := 0; i < 3; i++ {
		store := newStore(t)
		rcID := submit(t, store)
		m, err := New(store)
		require.NoError(t, err)
		ctx := context.Background()

		res := m.Materialize(ctx, owner, rcID, x)
		require.NoError(t, res.Err())
		assert.Equal(t, 3, res.Nodes.Inserted, "duplicates are still stored")

		nodes, err := store.ListNodes(ctx, owner, storage.Filter{})
		require.NoError(t, err)
		require.Len(t, nodes, 3)

		edges, err := store.ListEdges(ctx, owner, storage.Filter{})
		require.NoError(t, err)
		require.Len(t, edges, 1)
		assert.Equal(t, nodes[1].Id, edges[0].FromNodeId, "edge uses the last node with id 1")
		assert.Equal(t, "second", nodes[1].Label)
	}
}

func TestMaterialize_IndexKeysWhenIDsMissing(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)

	x := &extraction.Result{
		Quotes: []extraction.Quote{{Text: "zero"}, {Text: "one"}},
		Nodes:  []extraction.Node{{Type: core.NodeTypeTheme, Label: "zero"}},
		Links:  []extraction.Link{{QuoteID: "1", NodeID: "0"}},
	}
	res := m.Materialize(context.Background(), owner, rcID, x)
	require.NoError(t, res.Err())
	quoteID, ok := res.QuoteIDs.Resolve("1")
	require.True(t, ok)

	links, err := store.ListQuoteNodeLinks(context.Background(), owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, quoteID, links[0].QuoteId)
	assert.Equal(t, DefaultLinkType, links[0].Type)
}

func TestMaterialize_UnnamedEntriesNeverShadowIDs(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)
	ctx := context.Background()

	x := &extraction.Result{
		Quotes: []extraction.Quote{
			{ID: "1", Text: "named one"},
			{Text: "unnamed at index 1"},
		},
		Nodes: []extraction.Node{
			{ID: "1", Type: core.NodeTypePain, Label: "explicit one"},
			{Type: core.NodeTypeTheme, Label: "unnamed at index 1"},
			{ID: "2", Type: core.NodeTypeSolution, Label: "fix"},
			{Type: core.NodeTypeFeature, Label: "unnamed at index 3"},
		},
		Edges: []extraction.Edge{
			{FromNodeID: "2", ToNodeID: "1", Type: "solves"},
			{FromNodeID: "3", ToNodeID: "1", Type: "relates_to"},
		},
		Links: []extraction.Link{{QuoteID: "1", NodeID: "1"}},
	}
	res := m.Materialize(ctx, owner, rcID, x)
	require.NoError(t, res.Err())
	assert.Equal(t, 2, res.Edges.Inserted)
	assert.Zero(t, res.Dropped())

	nodes, err := store.ListNodes(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	labels := make(map[core.ID]string)
	for _, n := range nodes {
		labels[n.Id] = n.Label
	}

	edges, err := store.ListEdges(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.Equal(t, "explicit one", labels[e.ToNodeId], "edge %s", e.Type)
	}
	from := map[string]string{}
	for _, e := range edges {
		from[e.Type] = labels[e.FromNodeId]
	}
	assert.Equal(t, "fix", from["solves"])
	assert.Equal(t, "unnamed at index 3", from["relates_to"], "index keys still resolve when no id matches")

	quotes, err := store.ListQuotes(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	links, err := store.ListQuoteNodeLinks(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, links, 1)
	for _, q := range quotes {
		if q.Id == links[0].QuoteId {
			assert.Equal(t, "named one", q.Text)
		}
	}
	assert.Equal(t, "explicit one", labels[links[0].NodeId])
}

func TestMaterialize_DefaultTypes(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)

	x := &extraction.Result{
		Nodes: []extraction.Node{
			{ID: "1", Type: core.NodeTypePain, Label: "a"},
			{ID: "2", Type: core.NodeTypePain, Label: "b"},
		},
		Edges: []extraction.Edge{{FromNodeID: "1", ToNodeID: "2"}},
	}
	res := m.Materialize(context.Background(), owner, rcID, x)
	require.NoError(t, res.Err())

	edges, err := store.ListEdges(context.Background(), owner, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, DefaultEdgeType, edges[0].Type)
}

func TestMaterialize_PhasesAreIsolated(t *testing.T) {
	base := newStore(t)
	rcID := submit(t, base)
	boom := errors.New("disk on fire")
	store := &failingStore{Store: base, fail: PhaseNodes, err: boom}
	m, err := New(store)
	require.NoError(t, err)
	ctx := context.Background()

	res := m.Materialize(ctx, owner, rcID, loginCrash())
	assert.False(t, res.Succeeded())
	assert.ErrorIs(t, res.Err(), boom)

	assert.Equal(t, StatusSuccess, res.Quotes.Status())
	assert.Equal(t, 1, res.Quotes.Inserted)
	assert.Equal(t, "disk on fire", res.Nodes.Status())
	assert.Equal(t, StatusSuccess, res.Links.Status(), "later phases still run")
	assert.Equal(t, 1, res.Links.Dropped, "no node to link to")

	quotes, err := base.ListQuotes(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, quotes, 1, "earlier phase is kept")
}

func TestMaterialize_DuplicateLinkFailsOnlyLinks(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store)
	require.NoError(t, err)

	x := loginCrash()
	x.Links = append(x.Links, extraction.Link{QuoteID: "1", NodeID: "1", Type: "supports"})

	res := m.Materialize(context.Background(), owner, rcID, x)
	assert.ErrorIs(t, res.Links.Err, storage.ErrDuplicateKey)
	assert.NoError(t, res.Quotes.Err)
	assert.NoError(t, res.Nodes.Err)
	assert.Equal(t, 0, res.Links.Inserted)
}

func TestMaterialize_AtomicRollsBackEverything(t *testing.T) {
	base := newStore(t)
	rcID := submit(t, base)
	boom := errors.New("edge write failed")
	store := &failingStore{Store: base, fail: PhaseEdges, err: boom}
	m, err := New(store, WithAtomic(true))
	require.NoError(t, err)
	assert.True(t, m.Atomic())
	ctx := context.Background()

	x := loginCrash()
	x.Nodes = append(x.Nodes, extraction.Node{ID: "2", Type: core.NodeTypeSolution, Label: "fix"})
	x.Edges = []extraction.Edge{{FromNodeID: "2", ToNodeID: "1", Type: "solves"}}

	res := m.Materialize(ctx, owner, rcID, x)
	assert.ErrorIs(t, res.Quotes.Err, ErrRolledBack)
	assert.ErrorIs(t, res.Nodes.Err, ErrRolledBack)
	assert.ErrorIs(t, res.Edges.Err, boom)
	assert.ErrorIs(t, res.Links.Err, ErrRolledBack, "phases after the failure never ran")
	assert.Zero(t, res.Inserted())
	assert.Zero(t, res.QuoteIDs.Len())
	assert.Zero(t, res.NodeIDs.Len())

	quotes, err := base.ListQuotes(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, quotes)
	nodes, err := base.ListNodes(ctx, owner, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMaterialize_AtomicSuccessCommits(t *testing.T) {
	store := newStore(t)
	rcID := submit(t, store)
	m, err := New(store, WithAtomic(true))
	require.NoError(t, err)

	res := m.Materialize(context.Background(), owner, rcID, loginCrash())
	require.NoError(t, res.Err())
	assert.Equal(t, 3, res.Inserted())

	links, err := store.ListQuoteNodeLinks(context.Background(), owner, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestMaterialize_NilAndEmpty(t *testing.T) {
	store := newStore(t)
	m, err := New(store)
	require.NoError(t, err)

	for _, x := range []*extraction.Result{nil, {}} {
		res := m.Materialize(context.Background(), owner, 1, x)
		assert.True(t, res.Succeeded())
		assert.Zero(t, res.Inserted())
		assert.Len(t, res.All(), 4)
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}
