package ingestion

import (
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/materialize"
)

// Request is one submission.
type Request struct {
	// Text is the content to analyze. Required.
	Text string

	// Owner is the authenticated identity. Every stored row belongs to it.
	Owner string

	// Source describes where the text came from.
	Source SourceInfo

	// Credential is an optional caller-supplied API key. When set it is used
	// instead of any configured fallback.
	Credential string
}

// SourceInfo is the provenance recorded with a submission.
type SourceInfo struct {
	// Kind defaults to manual.
	Kind  core.SourceKind
	URL   string
	Extra map[string]string
}

// AnalysisStatus is the outcome of the analysis step.
type AnalysisStatus string

const (
	AnalysisSuccess AnalysisStatus = "success"
	AnalysisFailed  AnalysisStatus = "failed"
)

// PhaseDebug summarizes one materialization phase.
type PhaseDebug struct {
	Status   string `json:"status"`
	Inserted int    `json:"inserted"`
	Dropped  int    `json:"dropped"`
}

// Result reports what a submission saved and how analysis went.
//
// Error and Debug never contain credential material. Err holds the
// underlying error for errors.Is checks and is never serialized.
type Result struct {
	RunID          string                `json:"run_id"`
	SourceID       core.ID               `json:"source_id,omitempty"`
	RawContentID   core.ID               `json:"raw_content_id,omitempty"`
	AnalysisStatus AnalysisStatus        `json:"analysis_status,omitempty"`
	PerPhaseDebug  map[string]PhaseDebug `json:"per_phase_debug,omitempty"`
	Error          string                `json:"error,omitempty"`
	Debug          string                `json:"debug,omitempty"`
	ProcessedAt    *time.Time            `json:"processed_at,omitempty"`

	// Stage is the last state reached.
	Stage Stage `json:"-"`

	Err error `json:"-"`
}

// Succeeded reports whether analysis ran and every phase succeeded.
func (r *Result) Succeeded() bool {
	return r.AnalysisStatus == AnalysisSuccess
}

func phaseDebug(res *materialize.Result) map[string]PhaseDebug {
	debug := make(map[string]PhaseDebug, len(materialize.Phases))
	for _, p := range res.All() {
		debug[string(p.Phase)] = PhaseDebug{
			Status:   p.Status(),
			Inserted: p.Inserted,
			Dropped:  p.Dropped,
		}
	}
	return debug
}
