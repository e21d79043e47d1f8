package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	callerKey   = "sk-caller-SECRET-0123456789"
	fallbackKey = "sk-fallback-SECRET-9876543210"
	loginReply  = `{"quotes":[{"id":1,"text":"app crashes on login"}],` +
		`"nodes":[{"id":1,"type":"pain","label":"Login crash"}],"edges":[],` +
		`"quote_node_links":[{"quote_id":1,"node_id":1,"type":"supports"}]}`
)

type fixture struct {
	server  *httptest.Server
	auth    *Authenticator
	client  *mock.MockClient
	store   storage.Store
	metrics *metrics.Collector
}

func newFixture(t *testing.T, fallbacks ...string) *fixture {
	t.Helper()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfgOpts := []ai.ConfigOption{ai.WithHost("http://localhost:11434"), ai.WithModel("test-model")}
	for _, key := range fallbacks {
		cfgOpts = append(cfgOpts, ai.WithFallback("openai", key))
	}
	client := mock.NewMockClient().WithResponse(loginReply)
	collector := metrics.NewCollector("quarry")

	pipeline, err := ingestion.NewPipeline(store, client, ai.NewResolver(ai.NewConfig(cfgOpts...)),
		ingestion.WithMonitor(collector))
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	retriever, err := retrieval.NewRetriever(store)
	require.NoError(t, err)

	auth, err := NewAuthenticator([]byte("test-signing-secret"))
	require.NoError(t, err)

	srv, err := NewServer(auth, pipeline, retriever, store,
		WithMetrics(collector.Handler(), collector))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{server: ts, auth: auth, client: client, store: store, metrics: collector}
}

func (f *fixture) token(t *testing.T, owner string) string {
	t.Helper()
	token, err := f.auth.IssueToken(owner, 0)
	require.NoError(t, err)
	return token
}

// do sends a request as owner (no Authorization header when owner is empty)
// and returns the status and raw body.
func (f *fixture) do(t *testing.T, method, path, owner string, body any) (int, string) {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.server.URL+path, r)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, owner))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func decodeJSON[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v), body)
	return v
}

func ingestPayload(text string, meta map[string]any, credential string) map[string]any {
	p := map[string]any{"text_content": text}
	if meta != nil {
		p["source_metadata"] = meta
	}
	if credential != "" {
		p["credential"] = credential
	}
	return p
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestIngest_EndToEnd(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
		ingestPayload("Users say the app crashes on login.",
			map[string]any{"type": "webpage", "url": "https://example.com/review", "rating": 2},
			callerKey))
	require.Equal(t, http.StatusOK, status, body)
	assert.NotContains(t, body, callerKey)

	res := decodeJSON[ingestion.Result](t, body)
	assert.NotZero(t, res.RawContentID)
	assert.NotZero(t, res.SourceID)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, ingestion.AnalysisSuccess, res.AnalysisStatus)
	assert.Equal(t, 1, res.PerPhaseDebug["quotes"].Inserted)
	assert.Equal(t, 1, res.PerPhaseDebug["quote_node_links"].Inserted)
	require.NotNil(t, res.ProcessedAt)

	creds := f.client.Credentials()
	require.Len(t, creds, 1)
	assert.True(t, creds[0].IsUserSupplied())

	source, err := f.store.GetSource(context.Background(), "alice", res.SourceID)
	require.NoError(t, err)
	assert.Equal(t, core.SourceKindWebpage, source.Kind)
	assert.Equal(t, "2", source.Metadata["rating"])

	status, body = f.do(t, http.MethodGet, "/v1/views/graph_data", "alice", nil)
	require.Equal(t, http.StatusOK, status, body)
	graph := decodeJSON[retrieval.Response](t, body)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "Login crash", graph.Nodes[0].Label)
	assert.Len(t, graph.Links, 1)
	assert.Equal(t, "alice", graph.Nodes[0].Owner)
}

func TestIngest_OwnerIsTheToken(t *testing.T) {
	f := newFixture(t, fallbackKey)

	t.Run("mismatch is rejected", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
			ingestPayload("some text", map[string]any{"owner_id": "mallory"}, callerKey))
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, ingestion.CodeInvalidInput)
		assert.NotContains(t, body, callerKey)
		assert.Zero(t, f.client.CallCount())
	})

	t.Run("matching owner is accepted", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
			ingestPayload("some text", map[string]any{"owner_id": "alice"}, ""))
		require.Equal(t, http.StatusOK, status, body)
		res := decodeJSON[ingestion.Result](t, body)

		content, err := f.store.GetRawContent(context.Background(), "alice", res.RawContentID)
		require.NoError(t, err)
		assert.Equal(t, "alice", content.Owner)
	})

	t.Run("other owners see nothing", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/views/list_quotes", "bob", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 0, decodeJSON[retrieval.Response](t, body).Count)
	})
}

func TestIngest_RequiresToken(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/v1/ingest", "", ingestPayload("x", nil, callerKey))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, CodeUnauthorized)
	assert.NotContains(t, body, callerKey)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/v1/views/list_nodes", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+callerKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotContains(t, string(data), callerKey)
}

func TestIngest_InvalidInput(t *testing.T) {
	f := newFixture(t, fallbackKey)

	tests := []struct {
		name string
		body any
	}{
		{"malformed json", `{"text_content": "hi", "credential": "` + callerKey},
		{"not an object", `["` + callerKey + `"]`},
		{"missing text", ingestPayload("", nil, callerKey)},
		{"blank text", ingestPayload("   \n", nil, callerKey)},
		{"unknown source type", ingestPayload("hi", map[string]any{"type": "tweet"}, callerKey)},
		{"bad url", ingestPayload("hi", map[string]any{"url": "not a url"}, callerKey)},
		{"non-string type", ingestPayload("hi", map[string]any{"type": 7}, callerKey)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, body)

			errBody := decodeJSON[ErrorBody](t, body)
			assert.Equal(t, ingestion.CodeInvalidInput, errBody.Error)
			assert.NotContains(t, body, callerKey)
		})
	}
	assert.Zero(t, f.client.CallCount())
}

func TestIngest_BodyTooLarge(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	pipeline, err := ingestion.NewPipeline(store, mock.NewMockClient(), ai.NewResolver(ai.NewConfig()))
	require.NoError(t, err)
	defer pipeline.Release()
	retriever, err := retrieval.NewRetriever(store)
	require.NoError(t, err)
	auth, err := NewAuthenticator([]byte("k"))
	require.NoError(t, err)
	srv, err := NewServer(auth, pipeline, retriever, store, WithMaxBodyBytes(64))
	require.NoError(t, err)

	token, err := auth.IssueToken("alice", 0)
	require.NoError(t, err)
	body, _ := json.Marshal(ingestPayload(strings.Repeat("a", 200), nil, ""))
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), CodeTooLarge)
}

func TestIngest_AnalysisFailuresReturn200WithoutSecrets(t *testing.T) {
	tests := []struct {
		name     string
		fallback bool
		caller   string
		complete func(ctx context.Context, cred ai.Credential, p ai.Prompt) (string, error)
		code     string
	}{
		{
			name: "no credential",
			code: ingestion.CodeNoCredentialAvailable,
		},
		{
			name:   "rejected caller key echoed by provider",
			caller: callerKey,
			complete: func(_ context.Context, cred ai.Credential, _ ai.Prompt) (string, error) {
				return "", fmt.Errorf("%w: key %s is invalid", ai.ErrCredentialRejected, cred.Reveal())
			},
			code: ingestion.CodeCredentialRejected,
		},
		{
			name:     "fallback key echoed on outage",
			fallback: true,
			complete: func(_ context.Context, cred ai.Credential, _ ai.Prompt) (string, error) {
				return "", fmt.Errorf("%w: dial with %s", ai.ErrProviderUnavailable, cred.Reveal())
			},
			code: ingestion.CodeProviderUnavailable,
		},
		{
			name:   "reply quotes the key",
			caller: callerKey,
			complete: func(_ context.Context, cred ai.Credential, _ ai.Prompt) (string, error) {
				return "I cannot use " + cred.Reveal(), nil
			},
			code: ingestion.CodeMalformedExtraction,
		},
		{
			name:   "empty reply",
			caller: callerKey,
			complete: func(context.Context, ai.Credential, ai.Prompt) (string, error) {
				return "", ai.ErrEmptyResponse
			},
			code: ingestion.CodeEmptyResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f *fixture
			if tt.fallback {
				f = newFixture(t, fallbackKey)
			} else {
				f = newFixture(t)
			}
			if tt.complete != nil {
				f.client.WithCompleteFunc(tt.complete)
			}

			status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
				ingestPayload("Users say the app crashes on login.", nil, tt.caller))
			require.Equal(t, http.StatusOK, status, body)
			assert.NotContains(t, body, callerKey)
			assert.NotContains(t, body, fallbackKey)

			res := decodeJSON[ingestion.Result](t, body)
			assert.Equal(t, ingestion.AnalysisFailed, res.AnalysisStatus)
			assert.Equal(t, tt.code, res.Error)
			assert.NotZero(t, res.RawContentID)
			assert.NotNil(t, res.ProcessedAt)
		})
	}
}

// stubIngester returns a fixed outcome.
type stubIngester struct {
	res *ingestion.Result
	err error
}

func (s stubIngester) Ingest(context.Context, ingestion.Request) (*ingestion.Result, error) {
	return s.res, s.err
}

func TestIngest_StatusMapping(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	retriever, err := retrieval.NewRetriever(store)
	require.NoError(t, err)
	auth, err := NewAuthenticator([]byte("k"))
	require.NoError(t, err)
	token, err := auth.IssueToken("alice", 0)
	require.NoError(t, err)

	storageErr := fmt.Errorf("%w: save source: disk full near %s", ingestion.ErrStorageFailure, callerKey)
	tests := []struct {
		name   string
		stub   stubIngester
		status int
		code   string
	}{
		{
			name: "storage failure",
			stub: stubIngester{
				res: &ingestion.Result{Error: ingestion.CodeStorageFailure, Debug: storageErr.Error()},
				err: storageErr,
			},
			status: http.StatusInternalServerError,
			code:   ingestion.CodeStorageFailure,
		},
		{
			name:   "invalid input without result",
			stub:   stubIngester{err: fmt.Errorf("%w: text content is required", ingestion.ErrInvalidInput)},
			status: http.StatusBadRequest,
			code:   ingestion.CodeInvalidInput,
		},
		{
			name: "analysis debug holding the key",
			stub: stubIngester{res: &ingestion.Result{
				RunID:          "r",
				AnalysisStatus: ingestion.AnalysisFailed,
				Error:          ingestion.CodeCredentialRejected,
				Debug:          "rejected " + callerKey,
				PerPhaseDebug:  map[string]ingestion.PhaseDebug{"nodes": {Status: "x " + callerKey}},
			}},
			status: http.StatusOK,
			code:   ingestion.CodeCredentialRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(auth, tt.stub, retriever, store)
			require.NoError(t, err)

			body, _ := json.Marshal(ingestPayload("text", nil, callerKey))
			req := httptest.NewRequest(http.MethodPost, "/v1/ingest", bytes.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.code)
			assert.NotContains(t, rec.Body.String(), callerKey)
		})
	}
}

func TestViews(t *testing.T) {
	f := newFixture(t, fallbackKey)
	status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
		ingestPayload("Users say the app crashes on login.", nil, ""))
	require.Equal(t, http.StatusOK, status, body)
	res := decodeJSON[ingestion.Result](t, body)

	t.Run("list_nodes by type", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/views/list_nodes?node_type=Pain%20Point", "alice", nil)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, 1, decodeJSON[retrieval.Response](t, body).Count)

		status, body = f.do(t, http.MethodGet, "/v1/views/list_nodes?node_type=theme", "alice", nil)
		require.Equal(t, http.StatusOK, status, body)
		assert.Equal(t, 0, decodeJSON[retrieval.Response](t, body).Count)
	})

	t.Run("list_quotes by raw content", func(t *testing.T) {
		path := fmt.Sprintf("/v1/views/list_quotes?raw_content_id=%d&limit=10", res.RawContentID)
		status, body := f.do(t, http.MethodGet, path, "alice", nil)
		require.Equal(t, http.StatusOK, status, body)
		resp := decodeJSON[retrieval.Response](t, body)
		require.Len(t, resp.Quotes, 1)
		assert.Equal(t, "app crashes on login", resp.Quotes[0].Text)
	})

	t.Run("bad requests", func(t *testing.T) {
		tests := []struct {
			path   string
			status int
			code   string
		}{
			{"/v1/views/everything", http.StatusNotFound, CodeUnknownView},
			{"/v1/views/list_nodes?limit=-1", http.StatusBadRequest, ingestion.CodeInvalidInput},
			{"/v1/views/list_nodes?limit=ten", http.StatusBadRequest, ingestion.CodeInvalidInput},
			{"/v1/views/list_nodes?raw_content_id=abc", http.StatusBadRequest, ingestion.CodeInvalidInput},
			{"/v1/views/list_nodes?node_type=gizmo", http.StatusBadRequest, ingestion.CodeInvalidInput},
			{"/v1/views/list_ideas?status=lost", http.StatusBadRequest, ingestion.CodeInvalidInput},
			{"/v1/views/list_quotes?suggestions_only=maybe", http.StatusBadRequest, ingestion.CodeInvalidInput},
		}
		for _, tt := range tests {
			status, body := f.do(t, http.MethodGet, tt.path, "alice", nil)
			assert.Equal(t, tt.status, status, tt.path)
			assert.Equal(t, tt.code, decodeJSON[ErrorBody](t, body).Error, tt.path)
		}
	})
}

func TestCreateIdea(t *testing.T) {
	f := newFixture(t, fallbackKey)
	status, body := f.do(t, http.MethodPost, "/v1/ingest", "alice",
		ingestPayload("Users say the app crashes on login.", nil, ""))
	require.Equal(t, http.StatusOK, status, body)

	status, body = f.do(t, http.MethodGet, "/v1/views/list_nodes", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	nodes := decodeJSON[retrieval.Response](t, body).Nodes
	require.Len(t, nodes, 1)

	status, body = f.do(t, http.MethodPost, "/v1/ideas", "alice", map[string]any{
		"text":    "Retry login with cached session",
		"type":    "feature",
		"node_id": nodes[0].Id,
	})
	require.Equal(t, http.StatusCreated, status, body)
	idea := decodeJSON[core.Idea](t, body)
	assert.NotZero(t, idea.Id)
	assert.Equal(t, "alice", idea.Owner)
	assert.Equal(t, core.IdeaStatusGenerated, idea.Status)

	status, body = f.do(t, http.MethodGet, "/v1/views/list_ideas?status=generated", "alice", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decodeJSON[retrieval.Response](t, body).Count)

	t.Run("rejects", func(t *testing.T) {
		tests := []struct {
			name string
			body any
		}{
			{"blank text", map[string]any{"text": " "}},
			{"other owner", map[string]any{"text": "x", "owner_id": "bob"}},
			{"unknown node", map[string]any{"text": "x", "node_id": 999999}},
			{"malformed", `{"text":`},
		}
		for _, tt := range tests {
			status, body := f.do(t, http.MethodPost, "/v1/ideas", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, status, tt.name)
			assert.Equal(t, ingestion.CodeInvalidInput, decodeJSON[ErrorBody](t, body).Error, tt.name)
		}
	})

	t.Run("other owners cannot reference the node", func(t *testing.T) {
		status, _ := f.do(t, http.MethodPost, "/v1/ideas", "bob", map[string]any{
			"text":    "steal",
			"node_id": nodes[0].Id,
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestRequestIDAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	f.do(t, http.MethodGet, "/v1/views/list_nodes", "alice", nil)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/healthz", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("GET", "/v1/views/{view}", "200")))

	status, body := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "quarry_http_requests_total")
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	status, body := f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, CodeNotFound, decodeJSON[ErrorBody](t, body).Error)
}

func TestNewServer_Requires(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	retriever, err := retrieval.NewRetriever(store)
	require.NoError(t, err)
	auth, err := NewAuthenticator([]byte("k"))
	require.NoError(t, err)
	ing := stubIngester{}

	_, err = NewServer(nil, ing, retriever, store)
	assert.ErrorIs(t, err, ErrAuthenticatorRequired)
	_, err = NewServer(auth, nil, retriever, store)
	assert.ErrorIs(t, err, ErrIngesterRequired)
	_, err = NewServer(auth, ing, nil, store)
	assert.ErrorIs(t, err, ErrRetrieverRequired)
	_, err = NewServer(auth, ing, retriever, nil)
	assert.ErrorIs(t, err, ErrIdeaStoreRequired)
}
