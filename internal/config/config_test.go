package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brennhill/gasoline-network-tracker/internal/network"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// baseArgs keeps the loader away from the test binary's own flags.
var baseArgs = []string{"-log-level=info"}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(baseArgs)
	require.NoError(t, err)

	assert.Equal(t, "false", cfg.SessionTokenHeader)
	assert.False(t, cfg.FailuresOnly)
	assert.False(t, cfg.CapturePayload)
	assert.Equal(t, []string{"Cookie", "Set-Cookie", "Authorization"}, cfg.IgnoreHeaders)
	assert.Equal(t, 1<<20, cfg.MaxPayloadBytes)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, ModeFetch, cfg.Mode)
	assert.Equal(t, "GET", cfg.Method)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Log.MaxSizeMB)
}

func TestLoad_FlagsOverride(t *testing.T) {
	cfg, err := Load([]string{
		"-session-token-header=true",
		"-failures-only",
		"-capture-payload",
		"-ignore-headers=X-Secret,Cookie",
		"-mode=xhr",
		"-urls=http://a.test/x,http://b.test/y",
		"-log-level=debug",
	})
	require.NoError(t, err)

	assert.True(t, cfg.FailuresOnly)
	assert.True(t, cfg.CapturePayload)
	assert.Equal(t, []string{"X-Secret", "Cookie"}, cfg.IgnoreHeaders)
	assert.Equal(t, ModeXHR, cfg.Mode)
	assert.Equal(t, []string{"http://a.test/x", "http://b.test/y"}, cfg.URLs)
	assert.Equal(t, "debug", cfg.Log.Level)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, network.DefaultSessionTokenHeader, opts.SessionTokenHeader)
	assert.Equal(t, []string{"X-Secret", "Cookie"}, opts.IgnoreHeaders.Names)
	assert.Nil(t, opts.Sanitizer)
}

func TestExpandBoolFlags(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"bare bool", []string{"-redact"}, []string{"-redact=true"}},
		{"double dash", []string{"--block-private"}, []string{"--block-private=true"}},
		{"explicit value kept", []string{"-redact=false"}, []string{"-redact=false"}},
		{"space separated value skipped", []string{"-body", "-redact", "-failures-only"}, []string{"-body", "-redact", "-failures-only=true"}},
		{"stops at terminator", []string{"-redact", "--", "-capture-payload"}, []string{"-redact=true", "--", "-capture-payload"}},
		{"no args", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandBoolFlags(tt.in))
		})
	}
	assert.True(t, boolFlags["capture-payload"])
	assert.False(t, boolFlags["method"])
}

func TestLoad_TrailingBareBool(t *testing.T) {
	cfg, err := Load([]string{"-method", "POST", "-log-level=info", "-redact"})
	require.NoError(t, err)
	assert.Equal(t, "POST", cfg.Method)
	assert.True(t, cfg.Redact)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("NETTRACK_CAPTURE_PAYLOAD", "true")
	t.Setenv("NETTRACK_SERVICE_URLS", "https://ingest.example.com")
	t.Setenv("NETTRACK_LOG_LEVEL", "warn")

	cfg, err := Load([]string{"-method=GET"}, writeJSON(t, `{"queue_size": 7}`))
	require.NoError(t, err)
	assert.True(t, cfg.CapturePayload)
	assert.Equal(t, []string{"https://ingest.example.com"}, cfg.ServiceURLs)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 7, cfg.QueueSize)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeJSON(t, `{"mode": "client", "max_payload_bytes": 64, "log": {"level": "error"}}`)

	cfg, err := Load([]string{"-max-payload-bytes=128"}, path)
	require.NoError(t, err)
	assert.Equal(t, ModeClient, cfg.Mode)
	assert.Equal(t, 128, cfg.MaxPayloadBytes)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"mode", []string{"-mode=websocket"}},
		{"payload limit", []string{"-max-payload-bytes=-2"}},
		{"queue size", []string{"-queue-size=0"}},
		{"concurrency", []string{"-concurrency=0"}},
		{"log level", []string{"-log-level=loud"}},
		{"timeout", []string{"-timeout=0s"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestHeaderPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		headers []string
		want    *network.HeaderPolicy
	}{
		{"all", []string{"true"}, network.IgnoreAllHeaders()},
		{"none", []string{"false"}, network.IgnoreNoHeaders()},
		{"empty", nil, network.IgnoreHeaderNames()},
		{"names", []string{" Cookie ", "", "X-A"}, network.IgnoreHeaderNames("Cookie", "X-A")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{IgnoreHeaders: tt.headers}
			got := cfg.HeaderPolicy()
			assert.Equal(t, tt.want.All, got.All)
			assert.ElementsMatch(t, tt.want.Names, got.Names)
		})
	}
}

func TestSanitizer_FromRedactionFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("header_names: [X-Api-Key]\n"), 0o600))

	cfg := &Config{RedactionFile: path}
	sanitize, err := cfg.Sanitizer()
	require.NoError(t, err)
	require.NotNil(t, sanitize)

	rec := &types.RequestResponseRecord{
		Request: types.RequestData{Headers: map[string]string{"X-Api-Key": "k", "X-Note": "Bearer abc"}},
	}
	out := sanitize(rec)
	assert.Equal(t, "[REDACTED]", out.Request.Headers["X-Api-Key"])
	assert.Equal(t, "[REDACTED:bearer-token]", out.Request.Headers["X-Note"])

	_, err = (&Config{RedactionFile: filepath.Join(t.TempDir(), "missing.yaml")}).Sanitizer()
	assert.Error(t, err)

	off, err := (&Config{}).Sanitizer()
	require.NoError(t, err)
	assert.Nil(t, off)
}

func TestNewLogger_RotatedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nettrack.log")
	log := NewLogger(LogConfig{Level: "debug", File: path, MaxSizeMB: 1})
	log.Debug("hello")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Contains(t, string(data), `"level":"debug"`)
}

func writeJSON(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nettrack.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}
