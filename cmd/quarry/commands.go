package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/httpapi"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
	"github.com/urfave/cli/v2"
)

// fileResult is one line of ingest output.
type fileResult struct {
	File string `json:"file"`
	*ingestion.Result
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context

	kind := core.SourceKind(c.String("source-type"))
	if kind != "" && !kind.IsValid() {
		return fmt.Errorf("invalid source-type %q", kind)
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		text, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		if kind == "" {
			kind = core.SourceKindManual
		}
		return ingestTexts(ctx, c, []submission{{name: "-", text: string(text), kind: kind}})
	}

	subs := make([]submission, 0, len(files))
	for _, file := range files {
		text, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		k := kind
		if k == "" {
			k = core.SourceKindFile
		}
		subs = append(subs, submission{name: file, text: string(text), kind: k})
	}
	return ingestTexts(ctx, c, subs)
}

type submission struct {
	name string
	text string
	kind core.SourceKind
}

// ingestTexts runs every submission on the pipeline's worker pool and
// prints one JSON result per submission.
func ingestTexts(ctx context.Context, c *cli.Context, subs []submission) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline(
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithAnalysisTimeout(c.Duration("analysis-timeout")),
		ingestion.WithAtomicMaterialization(c.Bool("atomic")))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	credential := c.String("credential")
	progress := NewProgressTracker(c.App.ErrWriter, len(subs), c.Int("report-interval"))
	if len(subs) > 1 {
		progress.Start()
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		failed    int
		submitErr error
		encoder   = json.NewEncoder(c.App.Writer)
	)
	for _, sub := range subs {
		extra := map[string]string(nil)
		if sub.name != "-" {
			extra = map[string]string{"filename": filepath.Base(sub.name)}
		}
		req := ingestion.Request{
			Text:  sub.text,
			Owner: c.String("owner"),
			Source: ingestion.SourceInfo{
				Kind:  sub.kind,
				URL:   c.String("url"),
				Extra: extra,
			},
			Credential: credential,
		}

		name := sub.name
		wg.Add(1)
		err := pipeline.Submit(ctx, req, func(res *ingestion.Result, err error) {
			defer wg.Done()
			ok := err == nil && res.Succeeded()
			progress.Record(ok)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed++
			}
			if encErr := encoder.Encode(fileResult{File: name, Result: res}); encErr != nil {
				slog.Error("failed to write result", "file", name, "err", encErr)
			}
		})
		if err != nil {
			wg.Done()
			submitErr = fmt.Errorf("failed to submit %s: %w", name, err)
			break
		}
	}
	wg.Wait()
	progress.Finish()

	if submitErr != nil {
		return submitErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(subs))
	}
	return nil
}

func listCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one view name")
	}
	view, err := retrieval.ParseView(c.Args().First())
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	retriever, err := db.NewRetriever()
	if err != nil {
		return err
	}

	filter := storage.Filter{
		RawContentId:    core.ID(c.Uint64("raw-content-id")),
		SourceId:        core.ID(c.Uint64("source-id")),
		SuggestionsOnly: c.Bool("suggestions-only"),
		Status:          core.IdeaStatus(c.String("status")),
		Limit:           c.Int("limit"),
	}
	if nt := c.String("node-type"); nt != "" {
		filter.NodeType = core.NormalizeNodeType(nt)
	}

	resp, err := retriever.Retrieve(c.Context, retrieval.Query{
		Owner:  c.String("owner"),
		View:   view,
		Filter: filter,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth, err := newAuthenticator(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector("quarry")
	pipeline, err := db.NewIngestionPipeline(
		ingestion.WithPoolSize(c.Int("workers")),
		ingestion.WithAnalysisTimeout(c.Duration("analysis-timeout")),
		ingestion.WithAtomicMaterialization(c.Bool("atomic")),
		ingestion.WithMonitor(collector))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	grace := c.Duration("shutdown-grace")
	defer func() {
		if err := pipeline.ReleaseTimeout(grace); err != nil {
			slog.Warn("pipeline did not drain", "err", err)
		}
	}()

	retriever, err := db.NewRetriever()
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(auth, pipeline, retriever, db.Store(),
		httpapi.WithLogger(slog.Default()),
		httpapi.WithMetrics(collector.Handler(), collector))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s (%s)\n", c.String("db"), c.String("backend"))
	fmt.Fprintf(c.App.ErrWriter, "Model: %s at %s\n", c.String("llm-model"), c.String("llm-host"))
	fmt.Fprintf(c.App.ErrWriter, "Fallback providers: %v\n", db.Resolver().Providers())

	if err := server.ListenAndServe(ctx, c.String("addr"), grace); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func tokenCommand(c *cli.Context) error {
	auth, err := newAuthenticator(c)
	if err != nil {
		return err
	}
	token, err := auth.IssueToken(c.String("owner"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func newAuthenticator(c *cli.Context) (*httpapi.Authenticator, error) {
	var opts []httpapi.AuthOption
	if issuer := c.String("jwt-issuer"); issuer != "" {
		opts = append(opts, httpapi.WithIssuer(issuer))
	}
	auth, err := httpapi.NewAuthenticator([]byte(c.String("jwt-secret")), opts...)
	if errors.Is(err, httpapi.ErrSecretRequired) {
		return nil, fmt.Errorf("jwt-secret is required")
	}
	return auth, err
}
