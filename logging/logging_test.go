package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/poiesic/quarry/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
}

func TestNewHandler_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, FormatJSON)
	require.NoError(t, err)

	logger.Info("hello", "n", 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.EqualValues(t, 1, rec["n"])

	buf.Reset()
	logger, err = New(&buf, slog.LevelInfo, "")
	require.NoError(t, err)
	logger.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")

	_, err = NewHandler(&buf, slog.LevelInfo, "xml")
	require.Error(t, err)
}

func TestNewHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelWarn, FormatText)
	require.NoError(t, err)

	logger.Info("quiet")
	assert.Empty(t, buf.String())
	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestRedaction(t *testing.T) {
	const secret = "sk-SECRET-123"

	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelDebug, FormatText)
	require.NoError(t, err)

	logger.Info("call",
		"credential", secret,
		"api_key", secret,
		"Authorization", "Bearer "+secret,
		"jwt_token", secret,
		"password", secret,
		"model", "gpt-4o")
	logger.With("client_secret", secret).Info("with")
	logger.WithGroup("req").Info("grouped", "token", secret)

	out := buf.String()
	assert.NotContains(t, out, secret)
	assert.Contains(t, out, Redacted)
	assert.Contains(t, out, "model=gpt-4o")
}

func TestRedaction_CredentialValue(t *testing.T) {
	const secret = "sk-SECRET-456"
	cred := ai.NewCredential("openai", "https://api.openai.com/v1", "gpt-4o", secret)

	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelDebug, FormatJSON)
	require.NoError(t, err)

	logger.Info("resolved", "cred", cred)
	assert.NotContains(t, buf.String(), secret)
	assert.Contains(t, buf.String(), "openai")
}

func TestIsSecretKey(t *testing.T) {
	assert.True(t, IsSecretKey("X-Api_Key"))
	assert.True(t, IsSecretKey("refresh_token"))
	assert.False(t, IsSecretKey("owner"))
	assert.False(t, IsSecretKey("model"))
}
