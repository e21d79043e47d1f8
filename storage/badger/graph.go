package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// GraphRepository implements storage.GraphRepository for BadgerDB.
type GraphRepository struct {
	backend  *Backend
	quoteSeq *badger.Sequence
	nodeSeq  *badger.Sequence
	edgeSeq  *badger.Sequence
	linkSeq  *badger.Sequence
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	r := &GraphRepository{backend: backend}
	seqs := []struct {
		name string
		dst  **badger.Sequence
	}{
		{quoteIDSeq, &r.quoteSeq},
		{nodeIDSeq, &r.nodeSeq},
		{edgeIDSeq, &r.edgeSeq},
		{linkIDSeq, &r.linkSeq},
	}
	for _, s := range seqs {
		seq, err := backend.GetSequence(s.name)
		if err != nil {
			r.Close()
			return nil, err
		}
		*s.dst = seq
	}
	return r, nil
}

// Close releases the ID sequences.
func (r *GraphRepository) Close() error {
	var errs []error
	for _, seq := range []*badger.Sequence{r.quoteSeq, r.nodeSeq, r.edgeSeq, r.linkSeq} {
		if seq != nil {
			errs = append(errs, seq.Release())
		}
	}
	return errors.Join(errs...)
}

// refChecker verifies that referenced records exist under an owner,
// remembering what it has already seen within one transaction.
type refChecker struct {
	tx   *badger.Txn
	seen map[string]bool
}

func newRefChecker(tx *badger.Txn) *refChecker {
	return &refChecker{tx: tx, seen: make(map[string]bool)}
}

func (c *refChecker) require(prefix, owner string, id core.ID, what string) error {
	key := makeRecordKey(prefix, owner, id)
	if c.seen[string(key)] {
		return nil
	}
	ok, err := exists(c.tx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s %d", storage.ErrInvalidReference, what, id)
	}
	c.seen[string(key)] = true
	return nil
}

// AddQuotes stores quotes under their raw content.
func (r *GraphRepository) AddQuotes(ctx context.Context, quotes ...*core.Quote) ([]*core.Quote, error) {
	for _, q := range quotes {
		if err := core.ValidateQuote(q); err != nil {
			return nil, err
		}
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		refs := newRefChecker(tx)
		for _, q := range quotes {
			if err := refs.require(rawContentPrefix, q.Owner, q.RawContentId, "raw content"); err != nil {
				return err
			}
			id, err := nextID(r.quoteSeq)
			if err != nil {
				return err
			}
			q.Id = id
			if q.CreatedAt.IsZero() {
				q.CreatedAt = now()
			}
			if err := putRecord(tx, makeRecordKey(quotePrefix, q.Owner, q.Id), q); err != nil {
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
func (r *GraphRepository) AddNodes(ctx context.Context, nodes ...*core.Node) ([]*core.Node, error) {
	for _, n := range nodes {
		if err := core.ValidateNode(n); err != nil {
			return nil, err
		}
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		refs := newRefChecker(tx)
		for _, n := range nodes {
			if n.RawContentId != 0 {
				if err := refs.require(rawContentPrefix, n.Owner, n.RawContentId, "raw content"); err != nil {
					return err
				}
			}
			id, err := nextID(r.nodeSeq)
			if err != nil {
				return err
			}
			n.Id = id
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now()
			}
			if err := putRecord(tx, makeRecordKey(nodePrefix, n.Owner, n.Id), n); err != nil {
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
func (r *GraphRepository) AddEdges(ctx context.Context, edges ...*core.Edge) ([]*core.Edge, error) {
	for _, e := range edges {
		if err := core.ValidateEdge(e); err != nil {
			return nil, err
		}
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		refs := newRefChecker(tx)
		for _, e := range edges {
			if err := refs.require(nodePrefix, e.Owner, e.FromNodeId, "node"); err != nil {
				return err
			}
			if err := refs.require(nodePrefix, e.Owner, e.ToNodeId, "node"); err != nil {
				return err
			}
			id, err := nextID(r.edgeSeq)
			if err != nil {
				return err
			}
			e.Id = id
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now()
			}
			if err := putRecord(tx, makeRecordKey(edgePrefix, e.Owner, e.Id), e); err != nil {
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

// AddQuoteNodeLinks stores links, enforcing one link per (quote, node) pair.
func (r *GraphRepository) AddQuoteNodeLinks(ctx context.Context, links ...*core.QuoteNodeLink) ([]*core.QuoteNodeLink, error) {
	for _, l := range links {
		if err := core.ValidateQuoteNodeLink(l); err != nil {
			return nil, err
		}
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		refs := newRefChecker(tx)
		for _, l := range links {
			if err := refs.require(quotePrefix, l.Owner, l.QuoteId, "quote"); err != nil {
				return err
			}
			if err := refs.require(nodePrefix, l.Owner, l.NodeId, "node"); err != nil {
				return err
			}

			// Pending writes are visible to Get, so duplicates within this batch are caught too.
			pairKey := makeLinkPairKey(l.Owner, l.QuoteId, l.NodeId)
			dup, err := exists(tx, pairKey)
			if err != nil {
				return err
			}
			if dup {
				return fmt.Errorf("%w: quote %d already linked to node %d", storage.ErrDuplicateKey, l.QuoteId, l.NodeId)
			}

			id, err := nextID(r.linkSeq)
			if err != nil {
				return err
			}
			l.Id = id
			if l.CreatedAt.IsZero() {
				l.CreatedAt = now()
			}
			if err := putRecord(tx, makeRecordKey(linkPrefix, l.Owner, l.Id), l); err != nil {
				return err
			}
			if err := tx.Set(pairKey, storage.MarshalID(l.Id)); err != nil {
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
func (r *GraphRepository) ListQuotes(ctx context.Context, owner string, filter storage.Filter) ([]*core.Quote, error) {
	return list(ctx, r.backend, quotePrefix, owner, filter, filter.MatchQuote)
}

// ListNodes returns an owner's nodes.
func (r *GraphRepository) ListNodes(ctx context.Context, owner string, filter storage.Filter) ([]*core.Node, error) {
	return list(ctx, r.backend, nodePrefix, owner, filter, filter.MatchNode)
}

// ListEdges returns an owner's edges.
func (r *GraphRepository) ListEdges(ctx context.Context, owner string, filter storage.Filter) ([]*core.Edge, error) {
	return list(ctx, r.backend, edgePrefix, owner, filter, filter.MatchEdge)
}

// ListQuoteNodeLinks returns an owner's links.
func (r *GraphRepository) ListQuoteNodeLinks(ctx context.Context, owner string, filter storage.Filter) ([]*core.QuoteNodeLink, error) {
	return list(ctx, r.backend, linkPrefix, owner, filter, filter.MatchQuoteNodeLink)
}

// list scans one record kind under an owner's prefix.
func list[T storage.Record](ctx context.Context, backend *Backend, prefix, owner string, filter storage.Filter, match func(*T) bool) ([]*T, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var results []*T
	err := backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		results, err = scanRecords(tx, makeOwnerPrefix(prefix, owner), filter, match)
		return err
	})
	return results, err
}
