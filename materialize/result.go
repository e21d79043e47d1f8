package materialize

import (
	"errors"
	"fmt"
)

// Phase names one of the four insert batches.
type Phase string

const (
	PhaseQuotes Phase = "quotes"
	PhaseNodes  Phase = "nodes"
	PhaseEdges  Phase = "edges"
	PhaseLinks  Phase = "quote_node_links"
)

// Phases lists the phases in execution order.
var Phases = []Phase{PhaseQuotes, PhaseNodes, PhaseEdges, PhaseLinks}

// StatusSuccess is the Status of a phase that wrote its batch.
const StatusSuccess = "success"

// PhaseResult records the outcome of one phase.
type PhaseResult struct {
	Phase Phase

	// Inserted counts rows durably written.
	Inserted int

	// Dropped counts entries skipped because a reference did not resolve.
	Dropped int

	// Err is nil on success.
	Err error
}

// Status returns "success" or the failure message.
func (p PhaseResult) Status() string {
	if p.Err == nil {
		return StatusSuccess
	}
	return p.Err.Error()
}

// Result is the outcome of one Materialize call.
type Result struct {
	Quotes PhaseResult
	Nodes  PhaseResult
	Edges  PhaseResult
	Links  PhaseResult

	// QuoteIDs and NodeIDs resolve extraction-local references to durable
	// ids. They only hold rows that were kept.
	QuoteIDs IDMap
	NodeIDs  IDMap
}

func newResult() *Result {
	return &Result{
		Quotes:   PhaseResult{Phase: PhaseQuotes},
		Nodes:    PhaseResult{Phase: PhaseNodes},
		Edges:    PhaseResult{Phase: PhaseEdges},
		Links:    PhaseResult{Phase: PhaseLinks},
		QuoteIDs: newIDMap(),
		NodeIDs:  newIDMap(),
	}
}

// All returns the phase results in execution order.
func (r *Result) All() []PhaseResult {
	return []PhaseResult{r.Quotes, r.Nodes, r.Edges, r.Links}
}

// phase returns a pointer to the named phase's result.
func (r *Result) phase(p Phase) *PhaseResult {
	switch p {
	case PhaseQuotes:
		return &r.Quotes
	case PhaseNodes:
		return &r.Nodes
	case PhaseEdges:
		return &r.Edges
	default:
		return &r.Links
	}
}

// Err joins the errors of every failed phase, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, p := range r.All() {
		if p.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Phase, p.Err))
		}
	}
	return errors.Join(errs...)
}

// Succeeded reports whether every phase succeeded.
func (r *Result) Succeeded() bool {
	return r.Err() == nil
}

// Inserted totals rows written across phases.
func (r *Result) Inserted() int {
	n := 0
	for _, p := range r.All() {
		n += p.Inserted
	}
	return n
}

// Dropped totals entries skipped across phases.
func (r *Result) Dropped() int {
	n := 0
	for _, p := range r.All() {
		n += p.Dropped
	}
	return n
}
