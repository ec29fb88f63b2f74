// network-types.go — Options, host interface and sentinel errors for the interceptor.
package network

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// DefaultSessionTokenHeader is injected when the session-token option is "true".
const DefaultSessionTokenHeader = "X-OpenReplay-SessionToken"

// DefaultMaxPayloadBytes caps each captured body when MaxPayloadBytes is 0.
const DefaultMaxPayloadBytes = 1 << 20

// DefaultIgnoredHeaders is the deny-list used when Options.IgnoreHeaders is nil.
var DefaultIgnoredHeaders = []string{"Cookie", "Set-Cookie", "Authorization"}

var (
	ErrAlreadyInstalled   = errors.New("network: tracker already installed on this env")
	ErrNilEnv             = errors.New("network: env is nil")
	ErrNilApp             = errors.New("network: host app is nil")
	ErrInvalidState       = errors.New("network: invalid xhr state")
	ErrInvalidHeaderName  = errors.New("network: invalid header name")
	ErrInvalidHeaderValue = errors.New("network: invalid header value")
	ErrInvalidMethod      = errors.New("network: invalid method")
	ErrUnsupportedInput   = errors.New("network: unsupported fetch input")
	ErrUnsupportedBody    = errors.New("network: unsupported body type")
	ErrUnsupportedHeaders = errors.New("network: unsupported headers type")
)

// App is the host application the tracker reports to.
type App interface {
	// SessionToken returns the current session token, or "" when there is none.
	SessionToken() string
	// IsServiceURL reports whether rawURL belongs to the tracking backend itself.
	IsServiceURL(rawURL string) bool
	// Safe runs fn, recovering panics and logging errors. It reports whether fn succeeded.
	Safe(op string, fn func() error) bool
	// Send queues a finished event for delivery.
	Send(ev types.NetworkRequest)
	// Logger is the debug/warning channel.
	Logger() *zap.Logger
	// TimeOrigin is the wall-clock ms matching monotonic reading 0.
	TimeOrigin() float64
}

// Sanitizer rewrites a record before it is sent. Returning nil discards the record.
type Sanitizer func(rec *types.RequestResponseRecord) *types.RequestResponseRecord

// HeaderPolicy selects which header names are excluded from capture.
type HeaderPolicy struct {
	All   bool     // ignore every header
	Names []string // exact, case-sensitive names to ignore
}

// IgnoreAllHeaders drops every header from captured records.
func IgnoreAllHeaders() *HeaderPolicy { return &HeaderPolicy{All: true} }

// IgnoreNoHeaders keeps every header.
func IgnoreNoHeaders() *HeaderPolicy { return &HeaderPolicy{} }

// IgnoreHeaderNames drops the listed names.
func IgnoreHeaderNames(names ...string) *HeaderPolicy {
	return &HeaderPolicy{Names: append([]string(nil), names...)}
}

// Options configure one installation. They are read-only after Install.
type Options struct {
	SessionTokenHeader string        // header carrying the session token; "" disables injection
	FailuresOnly       bool          // only capture status >= 400
	IgnoreHeaders      *HeaderPolicy // nil means DefaultIgnoredHeaders
	CapturePayload     bool          // capture request/response bodies
	Sanitizer          Sanitizer     // optional veto/transform
	MaxPayloadBytes    int           // per-body cap; 0 means DefaultMaxPayloadBytes, <0 unlimited
}

func (o Options) withDefaults() Options {
	if o.IgnoreHeaders == nil {
		o.IgnoreHeaders = IgnoreHeaderNames(DefaultIgnoredHeaders...)
	} else {
		p := *o.IgnoreHeaders
		p.Names = append([]string(nil), p.Names...)
		o.IgnoreHeaders = &p
	}
	if o.MaxPayloadBytes == 0 {
		o.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	return o
}

// SessionTokenHeaderFrom maps the configuration shorthand to a header name:
// "true" selects DefaultSessionTokenHeader, "false" or "" disables injection,
// anything else is used as the header name.
func SessionTokenHeaderFrom(v string) string {
	v = strings.TrimSpace(v)
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return DefaultSessionTokenHeader
		}
		return ""
	}
	return v
}
