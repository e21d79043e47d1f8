// Package storagetest holds the conformance suite every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

const (
	ownerA = "user-a"
	ownerB = "user-b"
)

// Run executes the conformance suite against stores built by factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store storage.Store)
	}{
		{"SourceAndRawContent", testSourceAndRawContent},
		{"RawContentReferences", testRawContentReferences},
		{"Validation", testValidation},
		{"MarkProcessed", testMarkProcessed},
		{"OwnerIsolation", testOwnerIsolation},
		{"Graph", testGraph},
		{"EdgeReferences", testEdgeReferences},
		{"LinkUniqueness", testLinkUniqueness},
		{"ListFilters", testListFilters},
		{"Ideas", testIdeas},
		{"TransactionCommit", testTransactionCommit},
		{"TransactionRollback", testTransactionRollback},
		{"ConcurrentSubmissions", testConcurrentSubmissions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.fn(t, store)
		})
	}
}

// submit stores a source and a raw content body for owner.
func submit(t *testing.T, store storage.Store, owner, text string) (*core.Source, *core.RawContent) {
	t.Helper()
	ctx := context.Background()

	src, err := store.AddSource(ctx, &core.Source{Owner: owner, Kind: core.SourceKindManual})
	require.NoError(t, err)

	rc, err := store.AddRawContent(ctx, &core.RawContent{Owner: owner, SourceId: src.Id, Text: text})
	require.NoError(t, err)
	return src, rc
}

func addNodes(t *testing.T, store storage.Store, owner string, rcID core.ID, labels ...string) []*core.Node {
	t.Helper()
	nodes := make([]*core.Node, len(labels))
	for i, label := range labels {
		nodes[i] = &core.Node{Owner: owner, RawContentId: rcID, Type: core.NodeTypePain, Label: label, IsSuggestion: true}
	}
	added, err := store.AddNodes(context.Background(), nodes...)
	require.NoError(t, err)
	return added
}

func addQuotes(t *testing.T, store storage.Store, owner string, rcID core.ID, texts ...string) []*core.Quote {
	t.Helper()
	quotes := make([]*core.Quote, len(texts))
	for i, text := range texts {
		quotes[i] = &core.Quote{Owner: owner, RawContentId: rcID, Text: text, IsSuggestion: true}
	}
	added, err := store.AddQuotes(context.Background(), quotes...)
	require.NoError(t, err)
	return added
}

func testSourceAndRawContent(t *testing.T, store storage.Store) {
	ctx := context.Background()

	src, err := store.AddSource(ctx, &core.Source{
		Owner:    ownerA,
		Kind:     core.SourceKindWebpage,
		URL:      "https://example.com/reviews",
		Metadata: map[string]string{"campaign": "spring"},
	})
	require.NoError(t, err)
	assert.NotZero(t, src.Id)
	assert.False(t, src.CreatedAt.IsZero())

	stamp := time.Now()
	rc, err := store.AddRawContent(ctx, &core.RawContent{
		Owner:       ownerA,
		SourceId:    src.Id,
		Text:        "Users say the app crashes on login.",
		ProcessedAt: &stamp,
	})
	require.NoError(t, err)
	assert.NotZero(t, rc.Id)
	assert.Nil(t, rc.ProcessedAt, "new content is never born processed")
	assert.Equal(t, core.Checksum("Users say the app crashes on login."), rc.Checksum)

	gotSrc, err := store.GetSource(ctx, ownerA, src.Id)
	require.NoError(t, err)
	assert.Equal(t, core.SourceKindWebpage, gotSrc.Kind)
	assert.Equal(t, "https://example.com/reviews", gotSrc.URL)
	assert.Equal(t, "spring", gotSrc.Metadata["campaign"])

	gotRC, err := store.GetRawContent(ctx, ownerA, rc.Id)
	require.NoError(t, err)
	assert.Equal(t, src.Id, gotRC.SourceId)
	assert.Equal(t, rc.Text, gotRC.Text)
	assert.Equal(t, rc.Checksum, gotRC.Checksum)
	assert.Nil(t, gotRC.ProcessedAt)

	_, err = store.GetSource(ctx, ownerA, src.Id+1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRawContent(ctx, ownerA, rc.Id+1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	sources, err := store.ListSources(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	contents, err := store.ListRawContents(ctx, ownerA, storage.Filter{SourceId: src.Id})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, rc.Id, contents[0].Id)
}

func testRawContentReferences(t *testing.T, store storage.Store) {
	ctx := context.Background()
	srcB, _ := submit(t, store, ownerB, "b text")

	_, err := store.AddRawContent(ctx, &core.RawContent{Owner: ownerA, SourceId: srcB.Id, Text: "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidReference, "another owner's source")

	_, err = store.AddRawContent(ctx, &core.RawContent{Owner: ownerA, SourceId: srcB.Id + 1000, Text: "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidReference, "missing source")

	contents, err := store.ListRawContents(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, contents)
}

func testValidation(t *testing.T, store storage.Store) {
	ctx := context.Background()

	_, err := store.AddSource(ctx, &core.Source{Kind: core.SourceKindManual})
	assert.ErrorIs(t, err, core.ErrInvalidSource)
	assert.ErrorIs(t, err, core.ErrEmptyOwner)

	_, err = store.AddSource(ctx, &core.Source{Owner: ownerA, Kind: "fax"})
	assert.ErrorIs(t, err, core.ErrInvalidSourceKind)

	src, _ := submit(t, store, ownerA, "text")
	_, err = store.AddRawContent(ctx, &core.RawContent{Owner: ownerA, SourceId: src.Id, Text: "   "})
	assert.ErrorIs(t, err, core.ErrEmptyContent)

	_, err = store.AddNodes(ctx, &core.Node{Owner: ownerA, Type: "banana", Label: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidNodeType)

	sources, err := store.ListSources(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, sources, 1)

	_, err = store.ListNodes(ctx, ownerA, storage.Filter{Limit: -1})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func testMarkProcessed(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rc := submit(t, store, ownerA, "text")

	first := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.MarkProcessed(ctx, ownerA, rc.Id, first))

	err := store.MarkProcessed(ctx, ownerA, rc.Id, first.Add(time.Hour))
	assert.ErrorIs(t, err, storage.ErrAlreadyProcessed)

	got, err := store.GetRawContent(ctx, ownerA, rc.Id)
	require.NoError(t, err)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, first.Equal(*got.ProcessedAt), "first stamp wins")

	_, rcB := submit(t, store, ownerB, "text")
	assert.ErrorIs(t, store.MarkProcessed(ctx, ownerA, rcB.Id, first), storage.ErrNotFound)
	assert.ErrorIs(t, store.MarkProcessed(ctx, ownerA, rc.Id+1000, first), storage.ErrNotFound)
}

func testOwnerIsolation(t *testing.T, store storage.Store) {
	ctx := context.Background()
	srcA, rcA := submit(t, store, ownerA, "a text")
	_, rcB := submit(t, store, ownerB, "b text")
	addNodes(t, store, ownerA, rcA.Id, "a node")
	addNodes(t, store, ownerB, rcB.Id, "b node")

	_, err := store.GetSource(ctx, ownerB, srcA.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRawContent(ctx, ownerB, rcA.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	nodes, err := store.ListNodes(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "a node", nodes[0].Label)
	assert.Equal(t, ownerA, nodes[0].Owner)

	contents, err := store.ListRawContents(ctx, ownerB, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, rcB.Id, contents[0].Id)

	_, err = store.AddQuotes(ctx, &core.Quote{Owner: ownerA, RawContentId: rcB.Id, Text: "stolen"})
	assert.ErrorIs(t, err, storage.ErrInvalidReference)
}

func testGraph(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rc := submit(t, store, ownerA, "Users say the app crashes on login.")

	start, end := 10, 30
	quotes, err := store.AddQuotes(ctx, &core.Quote{
		Owner:        ownerA,
		RawContentId: rc.Id,
		Text:         "app crashes on login",
		StartIndex:   &start,
		EndIndex:     &end,
		Sentiment:    "negative",
		Emotions:     []string{"frustration", "anger"},
		IsSuggestion: true,
	})
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.NotZero(t, quotes[0].Id)

	nodes := addNodes(t, store, ownerA, rc.Id, "Login crash", "Unstable release")
	require.Len(t, nodes, 2)
	assert.NotEqual(t, nodes[0].Id, nodes[1].Id)

	edges, err := store.AddEdges(ctx, &core.Edge{
		Owner: ownerA, RawContentId: rc.Id, FromNodeId: nodes[1].Id, ToNodeId: nodes[0].Id,
		Type: "causes", IsSuggestion: true,
	})
	require.NoError(t, err)
	require.Len(t, edges, 1)

	links, err := store.AddQuoteNodeLinks(ctx, &core.QuoteNodeLink{
		Owner: ownerA, RawContentId: rc.Id, QuoteId: quotes[0].Id, NodeId: nodes[0].Id,
		Type: "supports", IsSuggestion: true,
	})
	require.NoError(t, err)
	require.Len(t, links, 1)

	gotQuotes, err := store.ListQuotes(ctx, ownerA, storage.Filter{RawContentId: rc.Id})
	require.NoError(t, err)
	require.Len(t, gotQuotes, 1)
	q := gotQuotes[0]
	assert.Equal(t, "app crashes on login", q.Text)
	require.NotNil(t, q.StartIndex)
	require.NotNil(t, q.EndIndex)
	assert.Equal(t, 10, *q.StartIndex)
	assert.Equal(t, 30, *q.EndIndex)
	assert.Equal(t, "negative", q.Sentiment)
	assert.Equal(t, []string{"frustration", "anger"}, q.Emotions)
	assert.True(t, q.IsSuggestion)
	assert.Empty(t, q.Review.ReviewedBy)
	assert.Nil(t, q.Review.ReviewedAt)

	gotNodes, err := store.ListNodes(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, gotNodes, 2)
	assert.Equal(t, "Login crash", gotNodes[0].Label, "insertion order")
	assert.Equal(t, "Unstable release", gotNodes[1].Label)

	gotEdges, err := store.ListEdges(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, gotEdges, 1)
	assert.Equal(t, nodes[1].Id, gotEdges[0].FromNodeId)
	assert.Equal(t, nodes[0].Id, gotEdges[0].ToNodeId)
	assert.Equal(t, "causes", gotEdges[0].Type)

	gotLinks, err := store.ListQuoteNodeLinks(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, gotLinks, 1)
	assert.Equal(t, quotes[0].Id, gotLinks[0].QuoteId)
	assert.Equal(t, nodes[0].Id, gotLinks[0].NodeId)
	assert.Equal(t, "supports", gotLinks[0].Type)
}

func testEdgeReferences(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rcA := submit(t, store, ownerA, "a")
	_, rcB := submit(t, store, ownerB, "b")
	a := addNodes(t, store, ownerA, rcA.Id, "a1", "a2")
	b := addNodes(t, store, ownerB, rcB.Id, "b1")

	_, err := store.AddEdges(ctx,
		&core.Edge{Owner: ownerA, RawContentId: rcA.Id, FromNodeId: a[0].Id, ToNodeId: a[1].Id, Type: "relates_to"},
		&core.Edge{Owner: ownerA, RawContentId: rcA.Id, FromNodeId: a[0].Id, ToNodeId: b[0].Id, Type: "relates_to"},
	)
	assert.ErrorIs(t, err, storage.ErrInvalidReference)

	_, err = store.AddEdges(ctx,
		&core.Edge{Owner: ownerA, RawContentId: rcA.Id, FromNodeId: a[0].Id, ToNodeId: a[1].Id + 1000, Type: "relates_to"},
	)
	assert.ErrorIs(t, err, storage.ErrInvalidReference)

	edges, err := store.ListEdges(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, edges, "a failed batch stores nothing")

	quotes := addQuotes(t, store, ownerA, rcA.Id, "q")
	_, err = store.AddQuoteNodeLinks(ctx, &core.QuoteNodeLink{Owner: ownerA, QuoteId: quotes[0].Id, NodeId: b[0].Id, Type: "supports"})
	assert.ErrorIs(t, err, storage.ErrInvalidReference)
}

func testLinkUniqueness(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rc := submit(t, store, ownerA, "text")
	quotes := addQuotes(t, store, ownerA, rc.Id, "q1", "q2")
	nodes := addNodes(t, store, ownerA, rc.Id, "n1")

	link := func(q *core.Quote) *core.QuoteNodeLink {
		return &core.QuoteNodeLink{Owner: ownerA, RawContentId: rc.Id, QuoteId: q.Id, NodeId: nodes[0].Id, Type: "supports"}
	}

	_, err := store.AddQuoteNodeLinks(ctx, link(quotes[0]))
	require.NoError(t, err)

	_, err = store.AddQuoteNodeLinks(ctx, link(quotes[0]))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.AddQuoteNodeLinks(ctx, link(quotes[1]), link(quotes[1]))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey, "duplicate within one batch")

	links, err := store.ListQuoteNodeLinks(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func testListFilters(t *testing.T, store storage.Store) {
	ctx := context.Background()
	src1, rc1 := submit(t, store, ownerA, "first")
	_, rc2 := submit(t, store, ownerA, "second")

	addNodes(t, store, ownerA, rc1.Id, "n1", "n2")
	_, err := store.AddNodes(ctx,
		&core.Node{Owner: ownerA, RawContentId: rc2.Id, Type: core.NodeTypeTheme, Label: "t1", IsSuggestion: true},
		&core.Node{Owner: ownerA, RawContentId: rc2.Id, Type: core.NodeTypeSolution, Label: "s1"},
	)
	require.NoError(t, err)

	nodes, err := store.ListNodes(ctx, ownerA, storage.Filter{RawContentId: rc1.Id})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, err = store.ListNodes(ctx, ownerA, storage.Filter{NodeType: core.NodeTypeTheme})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "t1", nodes[0].Label)

	nodes, err = store.ListNodes(ctx, ownerA, storage.Filter{SuggestionsOnly: true})
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	nodes, err = store.ListNodes(ctx, ownerA, storage.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "n1", nodes[0].Label)
	assert.Equal(t, "n2", nodes[1].Label)

	contents, err := store.ListRawContents(ctx, ownerA, storage.Filter{SourceId: src1.Id})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, rc1.Id, contents[0].Id)

	contents, err = store.ListRawContents(ctx, ownerA, storage.Filter{RawContentId: rc2.Id})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "second", contents[0].Text)
}

func testIdeas(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rcA := submit(t, store, ownerA, "a")
	_, rcB := submit(t, store, ownerB, "b")
	nodesA := addNodes(t, store, ownerA, rcA.Id, "a")
	nodesB := addNodes(t, store, ownerB, rcB.Id, "b")

	ideas, err := store.AddIdeas(ctx,
		&core.Idea{Owner: ownerA, NodeId: nodesA[0].Id, Text: "Add login retry", Type: "feature"},
		&core.Idea{Owner: ownerA, Text: "Survey churned users", Status: core.IdeaStatusApproved, Metadata: map[string]string{"by": "pm"}},
	)
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, core.IdeaStatusGenerated, ideas[0].Status)
	assert.NotZero(t, ideas[0].Id)

	_, err = store.AddIdeas(ctx, &core.Idea{Owner: ownerA, NodeId: nodesB[0].Id, Text: "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidReference)

	_, err = store.AddIdeas(ctx, &core.Idea{Owner: ownerA, Text: "x", Status: "pending"})
	assert.ErrorIs(t, err, core.ErrInvalidIdeaStatus)

	all, err := store.ListIdeas(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Add login retry", all[0].Text)
	assert.Equal(t, nodesA[0].Id, all[0].NodeId)
	assert.Equal(t, "pm", all[1].Metadata["by"])

	approved, err := store.ListIdeas(ctx, ownerA, storage.Filter{Status: core.IdeaStatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "Survey churned users", approved[0].Text)

	none, err := store.ListIdeas(ctx, ownerB, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testTransactionCommit(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rc := submit(t, store, ownerA, "text")

	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		quotes, err := store.AddQuotes(txCtx, &core.Quote{Owner: ownerA, RawContentId: rc.Id, Text: "q"})
		if err != nil {
			return err
		}
		nodes, err := store.AddNodes(txCtx, &core.Node{Owner: ownerA, RawContentId: rc.Id, Type: core.NodeTypePain, Label: "n"})
		if err != nil {
			return err
		}
		// Rows written earlier in the transaction are visible to later calls.
		_, err = store.AddQuoteNodeLinks(txCtx, &core.QuoteNodeLink{
			Owner: ownerA, RawContentId: rc.Id, QuoteId: quotes[0].Id, NodeId: nodes[0].Id, Type: "supports",
		})
		return err
	})
	require.NoError(t, err)

	links, err := store.ListQuoteNodeLinks(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func testTransactionRollback(t *testing.T, store storage.Store) {
	ctx := context.Background()
	_, rc := submit(t, store, ownerA, "text")
	boom := errors.New("boom")

	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := store.AddQuotes(txCtx, &core.Quote{Owner: ownerA, RawContentId: rc.Id, Text: "q"}); err != nil {
			return err
		}
		nested := store.WithTransaction(txCtx, func(inner context.Context) error {
			_, err := store.AddNodes(inner, &core.Node{Owner: ownerA, RawContentId: rc.Id, Type: core.NodeTypePain, Label: "n"})
			return err
		})
		if nested != nil {
			return nested
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	quotes, err := store.ListQuotes(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, quotes)
	nodes, err := store.ListNodes(ctx, ownerA, storage.Filter{})
	require.NoError(t, err)
	assert.Empty(t, nodes, "nested work rolls back with the outer transaction")
}

func testConcurrentSubmissions(t *testing.T, store storage.Store) {
	const n = 16
	var wg sync.WaitGroup
	type pair struct{ src, rc core.ID }
	results := make([]pair, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			src, err := store.AddSource(ctx, &core.Source{Owner: ownerA, Kind: core.SourceKindAPI, Metadata: map[string]string{"n": fmt.Sprint(i)}})
			if err != nil {
				errs[i] = err
				return
			}
			rc, err := store.AddRawContent(ctx, &core.RawContent{Owner: ownerA, SourceId: src.Id, Text: fmt.Sprintf("text %d", i)})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = pair{src.Id, rc.Id}
		}(i)
	}
	wg.Wait()

	seenSrc := map[core.ID]bool{}
	seenRC := map[core.ID]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seenSrc[results[i].src], "duplicate source id")
		assert.False(t, seenRC[results[i].rc], "duplicate raw content id")
		seenSrc[results[i].src] = true
		seenRC[results[i].rc] = true

		rc, err := store.GetRawContent(context.Background(), ownerA, results[i].rc)
		require.NoError(t, err)
		assert.Equal(t, results[i].src, rc.SourceId)
		assert.Equal(t, fmt.Sprintf("text %d", i), rc.Text)

		src, err := store.GetSource(context.Background(), ownerA, results[i].src)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprint(i), src.Metadata["n"])
	}
}
