package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/extraction"
	"github.com/poiesic/quarry/materialize"
	"github.com/poiesic/quarry/storage"
)

// Pipeline orchestrates submissions: it saves the source and content, runs
// the analysis and marks the content processed.
// It is safe for concurrent use; submissions share no in-memory state.
type Pipeline struct {
	store           storage.Store
	client          ai.Client
	resolver        *ai.Resolver
	materializer    *materialize.Materializer
	pool            *ants.Pool
	monitor         Monitor
	analysisTimeout time.Duration
	atomic          bool
	markAttempts    int
	markBaseDelay   time.Duration
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size used by Submit.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithAnalysisTimeout bounds the analysis step: credential resolution, the
// model call, parsing and materialization. Zero disables the bound.
// Default is 2 minutes.
func WithAnalysisTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		if timeout < 0 {
			return fmt.Errorf("negative analysis timeout %s", timeout)
		}
		p.analysisTimeout = timeout
		return nil
	}
}

// WithMonitor sets the hooks notified of every state transition.
func WithMonitor(monitor Monitor) Option {
	return func(p *Pipeline) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		p.monitor = monitor
		return nil
	}
}

// WithAtomicMaterialization writes the extracted graph in one transaction.
// Default is false: each entity kind is written independently.
func WithAtomicMaterialization(atomic bool) Option {
	return func(p *Pipeline) error {
		p.atomic = atomic
		return nil
	}
}

// WithMarkRetries sets how often stamping processed_at is attempted on
// storage errors, and the base delay between attempts.
// Default is 5 attempts starting at 50ms.
func WithMarkRetries(attempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if attempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.markAttempts = attempts
		p.markBaseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store storage.Store, client ai.Client, resolver *ai.Resolver, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if client == nil {
		return nil, ErrClientRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:           store,
		client:          client,
		resolver:        resolver,
		pool:            pool,
		monitor:         &noopMonitor{},
		analysisTimeout: 2 * time.Minute,
		markAttempts:    5,
		markBaseDelay:   50 * time.Millisecond,
		logger:          slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	// Create the materializer after options are applied (so it gets final config)
	p.materializer, err = materialize.New(store,
		materialize.WithLogger(p.logger),
		materialize.WithAtomic(p.atomic))
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// Ingest runs one submission to completion.
//
// The returned Result is never nil. The error is non-nil only when the
// submission failed before its content was saved (ErrInvalidInput or
// ErrStorageFailure); analysis failures are reported on the Result.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", res.RunID, "owner", core.ShortHash(req.Owner))
	p.advance(res, StageReceived)

	source, content, err := p.save(ctx, req, res)
	if err != nil {
		res.Err = err
		res.Error = ErrorCode(err)
		res.Debug = ai.Scrub(err.Error(), req.Credential)
		logger.Warn("submission rejected", "code", res.Error, "err", res.Debug)
		return res, err
	}
	logger = logger.With("source_id", source.Id, "raw_content_id", content.Id)

	// The content is durable: from here on the caller's cancellation must not
	// stop the run, or the content would never be marked processed.
	detached := context.WithoutCancel(ctx)
	p.analyze(detached, req, content, res, logger)
	p.markProcessed(detached, content, res, logger)
	return res, nil
}

// Submit runs Ingest on the worker pool and passes its outcome to done.
// It returns an error only if the pool rejects the task.
func (p *Pipeline) Submit(ctx context.Context, req Request, done func(*Result, error)) error {
	return p.pool.Submit(func() {
		res, err := p.Ingest(ctx, req)
		if done != nil {
			done(res, err)
		}
	})
}

// Running returns the number of submissions currently on the pool.
func (p *Pipeline) Running() int {
	return p.pool.Running()
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// ReleaseTimeout waits up to timeout for queued submissions, then releases.
func (p *Pipeline) ReleaseTimeout(timeout time.Duration) error {
	if p.pool == nil {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

func (p *Pipeline) advance(res *Result, stage Stage) {
	res.Stage = stage
	p.monitor.StageReached(res.RunID, stage)
}

// save validates the request and stores its source and content.
func (p *Pipeline) save(ctx context.Context, req Request, res *Result) (*core.Source, *core.RawContent, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	kind := req.Source.Kind
	if kind == "" {
		kind = core.SourceKindManual
	}
	source, err := p.store.AddSource(ctx, &core.Source{
		Owner:    req.Owner,
		Kind:     kind,
		URL:      req.Source.URL,
		Metadata: req.Source.Extra,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: save source: %w", ErrStorageFailure, err)
	}
	res.SourceID = source.Id
	p.advance(res, StageSourceSaved)

	content, err := p.store.AddRawContent(ctx, &core.RawContent{
		Owner:    req.Owner,
		SourceId: source.Id,
		Text:     req.Text,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: save content: %w", ErrStorageFailure, err)
	}
	res.RawContentID = content.Id
	p.advance(res, StageContentSaved)
	return source, content, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: text content is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Owner) == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if req.Source.Kind != "" && !req.Source.Kind.IsValid() {
		return fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, req.Source.Kind)
	}
	return nil
}

// analyze resolves a credential, calls the model, parses the reply and
// writes the graph. Failures are recorded on res.
func (p *Pipeline) analyze(ctx context.Context, req Request, content *core.RawContent, res *Result, logger *slog.Logger) {
	if p.analysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.analysisTimeout)
		defer cancel()
	}
	p.advance(res, StageAnalysisDispatched)
	start := time.Now()

	var secrets []string
	fail := func(err error) {
		res.Err = err
		res.AnalysisStatus = AnalysisFailed
		res.Error = ErrorCode(err)
		res.Debug = ai.Scrub(err.Error(), secrets...)
		p.advance(res, StageAnalysisFailed)
		p.monitor.AnalysisFinished(res.RunID, res.AnalysisStatus, res.Error, time.Since(start))
		logger.Warn("analysis failed", "code", res.Error, "err", res.Debug)
	}

	secrets = append(secrets, req.Credential)
	cred, err := p.resolver.Resolve(req.Credential)
	if err != nil {
		fail(err)
		return
	}
	secrets = append(secrets, cred.Reveal())
	logger.Debug("resolved credential", "credential", cred)

	raw, err := p.client.Complete(ctx, cred, extraction.BuildPrompt(content.Text))
	if err != nil {
		fail(err)
		return
	}

	extracted, err := extraction.Parse(raw)
	if err != nil {
		fail(err)
		return
	}
	if n := extracted.DropOffsetsOutside(utf8.RuneCountInString(content.Text)); n > 0 {
		logger.Debug("dropped quote offsets outside the text", "quotes", n)
	}

	mres := p.materializer.Materialize(ctx, content.Owner, content.Id, extracted)
	p.monitor.Materialized(res.RunID, mres)
	res.PerPhaseDebug = phaseDebug(mres)
	for phase, debug := range res.PerPhaseDebug {
		debug.Status = ai.Scrub(debug.Status, secrets...)
		res.PerPhaseDebug[phase] = debug
	}
	if err := mres.Err(); err != nil {
		fail(fmt.Errorf("%w: materialize: %w", ErrStorageFailure, err))
		return
	}

	res.AnalysisStatus = AnalysisSuccess
	p.advance(res, StageAnalysisSucceeded)
	p.monitor.AnalysisFinished(res.RunID, res.AnalysisStatus, "", time.Since(start))
	logger.Info("analysis succeeded",
		"quotes", mres.Quotes.Inserted,
		"nodes", mres.Nodes.Inserted,
		"edges", mres.Edges.Inserted,
		"links", mres.Links.Inserted,
		"dropped", mres.Dropped())
}

// markProcessed stamps processed_at, retrying storage errors.
// A content that is already stamped or gone is not retried.
func (p *Pipeline) markProcessed(ctx context.Context, content *core.RawContent, res *Result, logger *slog.Logger) {
	at := time.Now().UTC()
	err := retryWithBackoff(ctx, func() error {
		err := p.store.MarkProcessed(ctx, content.Owner, content.Id, at)
		if errors.Is(err, storage.ErrAlreadyProcessed) || errors.Is(err, storage.ErrNotFound) {
			return permanent(err)
		}
		return err
	}, p.markAttempts, p.markBaseDelay)
	if err != nil {
		logger.Error("failed to mark content processed", "err", err)
		return
	}
	res.ProcessedAt = &at
	p.advance(res, StageProcessedMarked)
}
