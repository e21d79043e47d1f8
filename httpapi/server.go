package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/retrieval"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 4 << 20

// Ingester runs one submission.
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error)
}

// Retriever answers view queries.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Response, error)
}

// IdeaStore stores ideas.
type IdeaStore interface {
	AddIdeas(ctx context.Context, ideas ...*core.Idea) ([]*core.Idea, error)
}

// Server routes HTTP requests to the pipeline and the retriever.
type Server struct {
	auth         *Authenticator
	ingester     Ingester
	retriever    Retriever
	ideas        IdeaStore
	metrics      http.Handler
	recorder     HTTPRecorder
	maxBodyBytes int64
	validate     *validator.Validate
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithMetrics serves h at /metrics and reports every request to rec.
// Either may be nil.
func WithMetrics(h http.Handler, rec HTTPRecorder) Option {
	return func(s *Server) {
		s.metrics = h
		s.recorder = rec
	}
}

// WithMaxBodyBytes bounds request bodies. Default is DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a Server.
func NewServer(auth *Authenticator, ingester Ingester, retriever Retriever, ideas IdeaStore, opts ...Option) (*Server, error) {
	switch {
	case auth == nil:
		return nil, ErrAuthenticatorRequired
	case ingester == nil:
		return nil, ErrIngesterRequired
	case retriever == nil:
		return nil, ErrRetrieverRequired
	case ideas == nil:
		return nil, ErrIdeaStoreRequired
	}

	s := &Server{
		auth:         auth,
		ingester:     ingester,
		retriever:    retriever,
		ideas:        ideas,
		maxBodyBytes: DefaultMaxBodyBytes,
		validate:     newValidator(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "httpapi")
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(requestID)
	router.Use(chimiddleware.RealIP)
	router.Use(observe(s.logger, s.recorder))
	router.Use(chimiddleware.Recoverer)

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "no such route")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeNotFound, "method not allowed")
	})

	router.Get("/healthz", s.healthz)
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	router.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/ingest", s.ingest)
		r.Get("/views/{view}", s.view)
		r.Post("/ideas", s.createIdea)
	})

	return router
}

// ListenAndServe serves on addr until ctx is done, then shuts down,
// giving in-flight requests up to grace to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
