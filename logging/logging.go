// Package logging builds the slog handlers used by the quarry binaries.
//
// Attributes whose key names a secret are replaced before they reach the
// output, whatever their value.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Redacted replaces the value of any secret-looking attribute.
const Redacted = "[REDACTED]"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// secretKeys are matched as case-insensitive substrings of attribute keys.
var secretKeys = []string{
	"credential",
	"api_key",
	"apikey",
	"token",
	"secret",
	"authorization",
	"password",
}

// IsSecretKey reports whether an attribute key names a secret.
func IsSecretKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// ParseLevel maps debug, info, warn or error (any case) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", s)
	}
}

// NewHandler returns a text or JSON handler writing to w at level.
// An empty format means text.
func NewHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	}
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}

// New is NewHandler wrapped in a logger.
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	h, err := NewHandler(w, level, format)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if IsSecretKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}
