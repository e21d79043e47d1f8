// Package ingestion runs submissions through the analysis pipeline.
//
// Each submission moves through one linear state machine:
//
//	received → source_saved → content_saved → analysis_dispatched
//	    → analysis_succeeded | analysis_failed → processed_marked
//
// Failures before the content is saved are returned to the caller and
// nothing is analyzed. Failures during analysis (credential resolution, the
// model call, parsing, materialization) are recorded on the Result; the saved
// source and content are never rolled back. The processed timestamp is always
// stamped once analysis has been attempted, whatever its outcome.
//
// Analysis runs detached from the caller's cancellation and is bounded only by
// the analysis timeout, so a disconnecting caller never leaves saved content
// unprocessed. Submit runs the same state machine on a worker pool.
package ingestion
