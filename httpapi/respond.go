package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/poiesic/quarry/ai"
)

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
	Debug string `json:"debug,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an ErrorBody with every secret scrubbed from both fields.
func writeError(w http.ResponseWriter, status int, code, debug string, secrets ...string) {
	writeJSON(w, status, ErrorBody{
		Error: ai.Scrub(code, secrets...),
		Debug: ai.Scrub(debug, secrets...),
	})
}
