// env.go — The transport primitives the tracker instruments.
// An Env owns one fetch function and one XHR method table; Install swaps both.
package network

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

// FetchFunc is the fetch primitive. input is a string, a *url.URL or a *http.Request.
type FetchFunc func(ctx context.Context, input any, init *RequestInit) (*http.Response, error)

// RequestInit carries the optional fetch parameters.
type RequestInit struct {
	Method  string // "" means GET
	Headers any    // http.Header, [][2]string, map[string]string or nil
	Body    any    // string, []byte, url.Values, io.Reader or nil
}

// XHRProto is the method table shared by every XHR created from an Env.
type XHRProto struct {
	Open             func(x *XHR, method, rawURL string) error
	Send             func(x *XHR, body any) error
	SetRequestHeader func(x *XHR, name, value string) error
}

// Env holds the transport primitives for one client.
type Env struct {
	mu      sync.RWMutex
	fetch   FetchFunc
	xhr     XHRProto
	tracker *Tracker

	client *http.Client
	base   *url.URL
	clock  util.Clock
	log    *zap.Logger
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithClock sets the monotonic clock used for event timestamps.
func WithClock(c util.Clock) EnvOption {
	return func(e *Env) { e.clock = c }
}

// WithLogger sets the logger used for XHR listener failures.
func WithLogger(l *zap.Logger) EnvOption {
	return func(e *Env) { e.log = l }
}

// WithBaseURL resolves relative request URLs against base.
func WithBaseURL(base *url.URL) EnvOption {
	return func(e *Env) { e.base = base }
}

// NewEnv creates an Env whose primitives send through client (a fresh client if nil).
func NewEnv(client *http.Client, opts ...EnvOption) *Env {
	if client == nil {
		client = &http.Client{}
	}
	e := &Env{client: client}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = util.NewMonotonicClock()
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	e.fetch = e.nativeFetch
	e.xhr = XHRProto{
		Open:             nativeXHROpen,
		Send:             nativeXHRSend,
		SetRequestHeader: nativeXHRSetRequestHeader,
	}
	return e
}

// Fetch calls the current fetch primitive.
func (e *Env) Fetch(ctx context.Context, input any, init *RequestInit) (*http.Response, error) {
	e.mu.RLock()
	fetch := e.fetch
	e.mu.RUnlock()
	return fetch(ctx, input, init)
}

// NewXHR creates an unopened XHR bound to this Env.
func (e *Env) NewXHR() *XHR {
	return &XHR{env: e, listeners: make(map[string][]func(XHREvent))}
}

// Clock returns the Env's monotonic clock.
func (e *Env) Clock() util.Clock {
	return e.clock
}

func (e *Env) proto() XHRProto {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.xhr
}

// resolve turns a request address into an absolute URL string.
func (e *Env) resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "parse %q", rawURL)
	}
	if !u.IsAbs() {
		if e.base == nil {
			return "", errors.Errorf("relative url %q without base", rawURL)
		}
		u = e.base.ResolveReference(u)
	}
	return u.String(), nil
}

// nativeFetch performs the request through the Env's client.
func (e *Env) nativeFetch(ctx context.Context, input any, init *RequestInit) (*http.Response, error) {
	if req, ok := input.(*http.Request); ok {
		return e.client.Do(req.WithContext(ctx))
	}
	rawURL, ok := urlString(input)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedInput, "%T", input)
	}
	if init == nil {
		init = &RequestInit{}
	}
	target, err := e.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	body, contentType, err := bodyReader(init.Body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, strMethod(init.Method), target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if err := applyHeaders(req.Header, init.Headers); err != nil {
		return nil, err
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	return e.client.Do(req)
}

// bodyReader converts a body value into a reader plus the implied content type.
func bodyReader(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(b), "text/plain;charset=UTF-8", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded;charset=UTF-8", nil
	case io.Reader:
		return b, "", nil
	default:
		return nil, "", errors.Wrapf(ErrUnsupportedBody, "%T", body)
	}
}
