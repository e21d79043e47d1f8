package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
)

type ingestBody struct {
	TextContent    string         `json:"text_content" validate:"notblank_text"`
	SourceMetadata sourceMetadata `json:"source_metadata"`
	Credential     string         `json:"credential,omitempty" validate:"max=4096"`
}

// sourceMetadata holds the known provenance keys; any other key lands in
// Extra as a string.
type sourceMetadata struct {
	OwnerID string            `json:"owner_id"`
	Type    string            `json:"type" validate:"omitempty,source_kind"`
	URL     string            `json:"url" validate:"omitempty,url,max=2048"`
	Extra   map[string]string `json:"-"`
}

func (m *sourceMetadata) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, raw := range fields {
		var err error
		switch key {
		case "owner_id":
			err = json.Unmarshal(raw, &m.OwnerID)
		case "type":
			err = json.Unmarshal(raw, &m.Type)
		case "url":
			err = json.Unmarshal(raw, &m.URL)
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[key] = extraValue(raw)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// extraValue keeps strings as they are and everything else as compact JSON.
func extraValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type ideaBody struct {
	OwnerID  string            `json:"owner_id"`
	Text     string            `json:"text" validate:"notblank_text,max=10000"`
	Type     string            `json:"type" validate:"max=64"`
	NodeID   core.ID           `json:"node_id"`
	QuoteID  core.ID           `json:"quote_id"`
	Metadata map[string]string `json:"metadata"`
}

// decode reads a JSON body. Decoder errors are reported generically: their
// text may quote the body, and the body may hold a credential.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, "request body is not valid JSON")
		return false
	}
	return true
}

// ownerMatches rejects a caller-supplied owner that differs from the token.
func ownerMatches(w http.ResponseWriter, owner, claimed string, secrets ...string) bool {
	if claimed != "" && claimed != owner {
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput,
			"owner_id does not match the authenticated identity", secrets...)
		return false
	}
	return true
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var body ingestBody
	if !s.decode(w, r, &body) {
		return
	}
	secrets := []string{body.Credential}
	if err := s.check(body); err != nil {
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, err.Error(), secrets...)
		return
	}
	if !ownerMatches(w, owner, body.SourceMetadata.OwnerID, secrets...) {
		return
	}

	res, err := s.ingester.Ingest(r.Context(), ingestion.Request{
		Text:  body.TextContent,
		Owner: owner,
		Source: ingestion.SourceInfo{
			Kind:  core.SourceKind(body.SourceMetadata.Type),
			URL:   body.SourceMetadata.URL,
			Extra: body.SourceMetadata.Extra,
		},
		Credential: body.Credential,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingestion.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		code, debug := ingestion.ErrorCode(err), err.Error()
		if res != nil && res.Error != "" {
			code, debug = res.Error, res.Debug
		}
		writeError(w, status, code, debug, secrets...)
		return
	}

	res.Error = ai.Scrub(res.Error, secrets...)
	res.Debug = ai.Scrub(res.Debug, secrets...)
	for phase, debug := range res.PerPhaseDebug {
		debug.Status = ai.Scrub(debug.Status, secrets...)
		res.PerPhaseDebug[phase] = debug
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	view, err := retrieval.ParseView(chi.URLParam(r, "view"))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeUnknownView, err.Error())
		return
	}
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, err.Error())
		return
	}

	resp, err := s.retriever.Retrieve(r.Context(), retrieval.Query{
		Owner:  owner,
		View:   view,
		Filter: filter,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, err.Error())
			return
		}
		s.logger.Error("retrieval failed", "view", view, "err", err)
		writeError(w, http.StatusInternalServerError, ingestion.CodeStorageFailure, "retrieval failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createIdea(w http.ResponseWriter, r *http.Request) {
	owner, _ := OwnerFromContext(r.Context())

	var body ideaBody
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.check(body); err != nil {
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, err.Error())
		return
	}
	if !ownerMatches(w, owner, body.OwnerID) {
		return
	}

	ideas, err := s.ideas.AddIdeas(r.Context(), &core.Idea{
		Owner:    owner,
		NodeId:   body.NodeID,
		QuoteId:  body.QuoteID,
		Text:     body.Text,
		Type:     body.Type,
		Status:   core.IdeaStatusGenerated,
		Metadata: body.Metadata,
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrInvalidReference), errors.Is(err, core.ErrInvalidIdea):
		writeError(w, http.StatusBadRequest, ingestion.CodeInvalidInput, err.Error())
		return
	default:
		s.logger.Error("failed to add idea", "err", err)
		writeError(w, http.StatusInternalServerError, ingestion.CodeStorageFailure, "failed to store idea")
		return
	}
	writeJSON(w, http.StatusCreated, ideas[0])
}

// parseFilter reads raw_content_id, source_id, node_type, suggestions_only,
// status and limit from a query string.
func parseFilter(q url.Values) (storage.Filter, error) {
	var f storage.Filter
	var err error
	if f.RawContentId, err = parseID(q, "raw_content_id"); err != nil {
		return f, err
	}
	if f.SourceId, err = parseID(q, "source_id"); err != nil {
		return f, err
	}
	if v := q.Get("node_type"); v != "" {
		f.NodeType = core.NormalizeNodeType(v)
	}
	if v := q.Get("suggestions_only"); v != "" {
		if f.SuggestionsOnly, err = strconv.ParseBool(v); err != nil {
			return f, errors.New("suggestions_only must be a boolean")
		}
	}
	if v := q.Get("status"); v != "" {
		f.Status = core.IdeaStatus(v)
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
	}
	return f, f.Validate()
}

func parseID(q url.Values, key string) (core.ID, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.New(key + " must be a positive integer")
	}
	return core.ID(id), nil
}
