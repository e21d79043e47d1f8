package ingestion

import (
	"time"

	"github.com/poiesic/quarry/materialize"
)

// Stage is one state of the submission state machine.
type Stage string

const (
	StageReceived           Stage = "received"
	StageSourceSaved        Stage = "source_saved"
	StageContentSaved       Stage = "content_saved"
	StageAnalysisDispatched Stage = "analysis_dispatched"
	StageAnalysisSucceeded  Stage = "analysis_succeeded"
	StageAnalysisFailed     Stage = "analysis_failed"
	StageProcessedMarked    Stage = "processed_marked"
)

// Monitor provides hooks to observe submissions.
// Implementations must be safe for concurrent use; hooks run inline on the
// submission's goroutine.
type Monitor interface {
	// StageReached is called on every state transition.
	StageReached(runID string, stage Stage)

	// AnalysisFinished is called once per analysis attempt with its outcome
	// and error code ("" on success).
	AnalysisFinished(runID string, status AnalysisStatus, code string, elapsed time.Duration)

	// Materialized is called after the graph has been written.
	Materialized(runID string, result *materialize.Result)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) StageReached(_ string, _ Stage) {
}

func (n *noopMonitor) AnalysisFinished(_ string, _ AnalysisStatus, _ string, _ time.Duration) {
}

func (n *noopMonitor) Materialized(_ string, _ *materialize.Result) {
}
