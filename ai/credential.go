package ai

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ProviderUserSupplied tags credentials that came with the request.
const ProviderUserSupplied = "user-supplied"

const redacted = "[REDACTED]"

// Secret is a credential value that refuses to print itself.
type Secret string

// Reveal returns the raw secret. Only transports should call it.
func (s Secret) Reveal() string { return string(s) }

// String implements fmt.Stringer.
func (s Secret) String() string { return redacted }

// GoString implements fmt.GoStringer.
func (s Secret) GoString() string { return redacted }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Credential is the resolved (provider, key) pair for one model call,
// together with the endpoint the key belongs to.
type Credential struct {
	Provider string
	Host     string
	Model    string
	key      Secret
}

// NewCredential builds a Credential. Used by the Resolver and by tests.
func NewCredential(provider, host, model, key string) Credential {
	return Credential{Provider: provider, Host: host, Model: model, key: Secret(key)}
}

// Reveal returns the raw key for the transport.
func (c Credential) Reveal() string { return c.key.Reveal() }

// IsUserSupplied reports whether the key came from the caller.
func (c Credential) IsUserSupplied() bool { return c.Provider == ProviderUserSupplied }

// String implements fmt.Stringer.
func (c Credential) String() string { return c.Provider + ":" + redacted }

// GoString implements fmt.GoStringer.
func (c Credential) GoString() string { return c.String() }

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("model", c.Model),
	)
}

// MarshalJSON implements json.Marshaler.
func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
	}{c.Provider, redacted})
}

// Resolver chooses the credential a request uses.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	host      string
	model     string
	fallbacks []Fallback
}

// NewResolver creates a Resolver from a validated Config.
// The fallback order of the Config is the resolution order.
func NewResolver(cfg *Config) *Resolver {
	fallbacks := make([]Fallback, len(cfg.Fallbacks))
	copy(fallbacks, cfg.Fallbacks)
	return &Resolver{
		host:      cfg.Host,
		model:     cfg.Model,
		fallbacks: fallbacks,
	}
}

// Resolve returns exactly one credential.
// A non-blank callerKey wins outright and is routed to the default endpoint.
// Otherwise the first fallback with a non-blank key is used.
// Fails with ErrNoCredentialAvailable when neither exists.
func (r *Resolver) Resolve(callerKey string) (Credential, error) {
	if key := strings.TrimSpace(callerKey); key != "" {
		return NewCredential(ProviderUserSupplied, r.host, r.model, key), nil
	}

	for _, fb := range r.fallbacks {
		key := strings.TrimSpace(fb.Key.Reveal())
		if key == "" {
			continue
		}
		host := fb.Host
		if host == "" {
			host = r.host
		}
		model := fb.Model
		if model == "" {
			model = r.model
		}
		return NewCredential(fb.Provider, host, model, key), nil
	}

	return Credential{}, ErrNoCredentialAvailable
}

// Providers returns the fallback provider names in resolution order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.fallbacks))
	for i, fb := range r.fallbacks {
		names[i] = fb.Provider
	}
	return names
}

// Scrub replaces every occurrence of each non-empty secret in s.
func Scrub(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, redacted)
	}
	return s
}
