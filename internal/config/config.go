// config.go — Tracker configuration: defaults, NETTRACK_ environment, JSON file, flags.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"

	"github.com/brennhill/gasoline-network-tracker/internal/network"
	"github.com/brennhill/gasoline-network-tracker/internal/redaction"
)

// EnvPrefix prefixes every environment variable, e.g. NETTRACK_CAPTURE_PAYLOAD.
const EnvPrefix = "NETTRACK"

// Modes for issuing the requests of Config.URLs.
const (
	ModeFetch  = "fetch"
	ModeXHR    = "xhr"
	ModeClient = "client"
)

type LogConfig struct {
	Level      string `default:"info" json:"level" env:"LEVEL" flag:"level" usage:"debug, info, warn or error"`
	File       string `json:"file" env:"FILE" flag:"file" usage:"rotated log file; stderr when empty"`
	MaxSizeMB  int    `default:"5" json:"max_size_mb" env:"MAX_SIZE_MB" flag:"max-size-mb" usage:"rotate after this many megabytes"`
	MaxBackups int    `default:"10" json:"max_backups" env:"MAX_BACKUPS" flag:"max-backups" usage:"rotated files to keep"`
	MaxAgeDays int    `default:"30" json:"max_age_days" env:"MAX_AGE_DAYS" flag:"max-age-days" usage:"days to keep rotated files"`
}

type Config struct {
	// Tracker options.
	SessionTokenHeader string   `default:"false" json:"session_token_header" env:"SESSION_TOKEN_HEADER" flag:"session-token-header" usage:"header carrying the session token: a name, true for the default name, or false"`
	FailuresOnly       bool     `default:"false" json:"failures_only" env:"FAILURES_ONLY" flag:"failures-only" usage:"only capture responses with status >= 400"`
	IgnoreHeaders      []string `default:"Cookie,Set-Cookie,Authorization" json:"ignore_headers" env:"IGNORE_HEADERS" flag:"ignore-headers" usage:"header names to drop, or true/false for all/none"`
	CapturePayload     bool     `default:"false" json:"capture_payload" env:"CAPTURE_PAYLOAD" flag:"capture-payload" usage:"capture request and response bodies"`
	MaxPayloadBytes    int      `default:"1048576" json:"max_payload_bytes" env:"MAX_PAYLOAD_BYTES" flag:"max-payload-bytes" usage:"per-body capture limit; -1 for unlimited"`

	// Redaction.
	Redact        bool   `default:"false" json:"redact" env:"REDACT" flag:"redact" usage:"apply the built-in secret patterns"`
	RedactionFile string `json:"redaction_file" env:"REDACTION_FILE" flag:"redaction-file" usage:"YAML or JSON redaction rules; implies -redact"`

	// Host.
	ServiceURLs []string `json:"service_urls" env:"SERVICE_URLS" flag:"service-urls" usage:"tracking backend endpoints that are never captured"`
	QueueSize   int      `default:"1000" json:"queue_size" env:"QUEUE_SIZE" flag:"queue-size" usage:"events kept in the send queue"`

	// CLI.
	URLs        []string      `json:"urls" env:"URLS" flag:"urls" usage:"URLs to request"`
	Mode        string        `default:"fetch" json:"mode" env:"MODE" flag:"mode" usage:"fetch, xhr or client"`
	Method      string        `default:"GET" json:"method" env:"METHOD" flag:"method" usage:"request method"`
	Body        string        `json:"body" env:"BODY" flag:"body" usage:"request body"`
	Concurrency int           `default:"4" json:"concurrency" env:"CONCURRENCY" flag:"concurrency" usage:"requests in flight"`
	Timeout     time.Duration `default:"30s" json:"timeout" env:"TIMEOUT" flag:"timeout" usage:"per-request timeout"`
	MetricsAddr string        `json:"metrics_addr" env:"METRICS_ADDR" flag:"metrics-addr" usage:"serve Prometheus metrics on this address"`

	// Egress.
	BlockPrivate bool     `default:"false" json:"block_private" env:"BLOCK_PRIVATE" flag:"block-private" usage:"refuse to dial loopback, private and link-local addresses"`
	AllowHosts   []string `json:"allow_hosts" env:"ALLOW_HOSTS" flag:"allow-hosts" usage:"host or host:port values exempt from -block-private"`

	Log LogConfig `json:"log" env:"LOG" flag:"log"`
}

// Load reads the configuration. Later sources override earlier ones:
// defaults, files, environment, then args. A -config flag in args adds a JSON file.
func Load(args []string, files ...string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        EnvPrefix,
		FlagDelimiter:    "-",
		FileFlag:         "config",
		Files:            files,
		Args:             expandBoolFlags(args),
		AllowUnknownEnvs: true,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// boolFlags holds the flag names of every bool field of Config.
var boolFlags = collectBoolFlags(reflect.TypeOf(Config{}), "")

func collectBoolFlags(t reflect.Type, prefix string) map[string]bool {
	names := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("flag")
		if name == "" {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Bool:
			names[prefix+name] = true
		case reflect.Struct:
			for n := range collectBoolFlags(f.Type, prefix+name+"-") {
				names[n] = true
			}
		}
	}
	return names
}

// expandBoolFlags rewrites bare boolean flags such as -redact to -redact=true.
// The loader registers every field as a string flag, so a bare bool would
// otherwise consume the next argument as its value.
func expandBoolFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" || !strings.HasPrefix(a, "-") || a == "-" {
			out = append(out, args[i:]...)
			break
		}
		if strings.Contains(a, "=") {
			out = append(out, a)
			continue
		}
		if boolFlags[strings.TrimLeft(a, "-")] {
			out = append(out, a+"=true")
			continue
		}
		// a non-bool flag given without = takes the next argument as its value
		out = append(out, a)
		if i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// Validate checks values the loader cannot.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFetch, ModeXHR, ModeClient:
	default:
		return errors.Errorf("invalid mode %q", c.Mode)
	}
	if c.MaxPayloadBytes < -1 {
		return errors.Errorf("invalid max_payload_bytes %d", c.MaxPayloadBytes)
	}
	if c.QueueSize < 1 {
		return errors.Errorf("invalid queue_size %d", c.QueueSize)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("invalid timeout %s", c.Timeout)
	}
	if c.Concurrency < 1 {
		return errors.Errorf("invalid concurrency %d", c.Concurrency)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	return nil
}

// HeaderPolicy maps IgnoreHeaders to a network.HeaderPolicy: a single "true"
// ignores every header, a single "false" (or an empty list) none.
func (c *Config) HeaderPolicy() *network.HeaderPolicy {
	if len(c.IgnoreHeaders) == 1 {
		switch strings.ToLower(strings.TrimSpace(c.IgnoreHeaders[0])) {
		case "true":
			return network.IgnoreAllHeaders()
		case "false":
			return network.IgnoreNoHeaders()
		}
	}
	names := make([]string, 0, len(c.IgnoreHeaders))
	for _, n := range c.IgnoreHeaders {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return network.IgnoreHeaderNames(names...)
}

// Sanitizer builds the redaction hook, or nil when redaction is off.
func (c *Config) Sanitizer() (network.Sanitizer, error) {
	if !c.Redact && c.RedactionFile == "" {
		return nil, nil
	}
	var rules redaction.Config
	if c.RedactionFile != "" {
		var err error
		if rules, err = redaction.LoadConfig(c.RedactionFile); err != nil {
			return nil, err
		}
	}
	engine, err := redaction.NewEngine(rules)
	if err != nil {
		return nil, err
	}
	return engine.Sanitizer(), nil
}

// Options converts the configuration to tracker options.
func (c *Config) Options() (network.Options, error) {
	sanitizer, err := c.Sanitizer()
	if err != nil {
		return network.Options{}, err
	}
	return network.Options{
		SessionTokenHeader: network.SessionTokenHeaderFrom(c.SessionTokenHeader),
		FailuresOnly:       c.FailuresOnly,
		IgnoreHeaders:      c.HeaderPolicy(),
		CapturePayload:     c.CapturePayload,
		Sanitizer:          sanitizer,
		MaxPayloadBytes:    c.MaxPayloadBytes,
	}, nil
}
