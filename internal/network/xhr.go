// xhr.go — Event-based request object. Open, Send and SetRequestHeader dispatch
// through the owning Env's XHRProto so they can be instrumented.
package network

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

// XHR event types.
const (
	EventLoadStart = "loadstart"
	EventLoad      = "load"
	EventError     = "error"
	EventAbort     = "abort"
	EventLoadEnd   = "loadend"
)

// XHR ready states.
const (
	StateUnsent = iota
	StateOpened
	StateHeadersReceived
	StateLoading
	StateDone
)

// XHREvent is passed to listeners. TimeStamp is read from the Env clock.
type XHREvent struct {
	Type      string
	TimeStamp float64
	Target    *XHR

	gen uint64
}

// XHR is a single-request object in the style of XMLHttpRequest.
// Events are dispatched sequentially on the goroutine started by Send.
type XHR struct {
	env *Env

	mu        sync.Mutex
	listeners map[string][]func(XHREvent)

	gen       uint64
	state     int
	sent      bool
	method    string
	url       string
	reqHeader http.Header
	cancel    context.CancelFunc
	done      chan struct{}

	status     int
	respHeader http.Header
	respBody   []byte
	err        error

	// interception slot, see xhr_tracker.go
	trace  *xhrTrace
	hooked *Tracker
}

// Open initializes the request. Any call in flight is cancelled silently.
func (x *XHR) Open(method, rawURL string) error {
	return x.env.proto().Open(x, method, rawURL)
}

// SetRequestHeader adds a request header. Only valid between Open and Send.
func (x *XHR) SetRequestHeader(name, value string) error {
	return x.env.proto().SetRequestHeader(x, name, value)
}

// Send starts the request. body may be nil, a string, []byte, url.Values or an io.Reader.
func (x *XHR) Send(body any) error {
	return x.env.proto().Send(x, body)
}

// AddEventListener registers fn for events of type typ.
func (x *XHR) AddEventListener(typ string, fn func(XHREvent)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.listeners[typ] = append(x.listeners[typ], fn)
}

// Abort cancels the request in flight. Listeners receive abort then loadend.
func (x *XHR) Abort() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cancel != nil {
		x.cancel()
	}
}

// Wait blocks until the current request has dispatched loadend.
func (x *XHR) Wait(ctx context.Context) error {
	x.mu.Lock()
	done := x.done
	x.mu.Unlock()
	if done == nil {
		return errors.Wrap(ErrInvalidState, "wait before send")
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *XHR) ReadyState() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state
}

// Status is the response status, or 0 before completion and after a failure.
func (x *XHR) Status() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

func (x *XHR) StatusText() string {
	return http.StatusText(x.Status())
}

// Response returns the raw response body.
func (x *XHR) Response() []byte {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.respBody
}

func (x *XHR) ResponseText() string {
	return string(x.Response())
}

// Err returns the transport error of a failed or aborted request.
func (x *XHR) Err() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

func (x *XHR) GetResponseHeader(name string) string {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.respHeader == nil {
		return ""
	}
	return strings.Join(x.respHeader.Values(name), ", ")
}

// GetAllResponseHeaders returns the response headers as "Name: value\r\n" lines,
// sorted by name, or "" when no response has been received.
func (x *XHR) GetAllResponseHeaders() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != StateDone || x.respHeader == nil {
		return ""
	}
	names := make([]string, 0, len(x.respHeader))
	for name := range x.respHeader {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(x.respHeader[name], ", "))
		sb.WriteString("\r\n")
	}
	return sb.String()
}

var standardMethods = []string{"DELETE", "GET", "HEAD", "OPTIONS", "POST", "PUT", "PATCH"}

func normalizeMethod(method string) string {
	for _, m := range standardMethods {
		if strings.EqualFold(m, method) {
			return m
		}
	}
	return method
}

func nativeXHROpen(x *XHR, method, rawURL string) error {
	if method == "" || !httpguts.ValidHeaderFieldName(method) {
		return errors.Wrapf(ErrInvalidMethod, "%q", method)
	}
	if _, err := url.Parse(rawURL); err != nil {
		return errors.Wrapf(err, "open %q", rawURL)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}
	x.gen++
	x.state = StateOpened
	x.sent = false
	x.method = normalizeMethod(method)
	x.url = rawURL
	x.reqHeader = make(http.Header)
	x.done = nil
	x.status = 0
	x.respHeader = nil
	x.respBody = nil
	x.err = nil
	return nil
}

func nativeXHRSetRequestHeader(x *XHR, name, value string) error {
	if err := validateHeader(name, value); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != StateOpened || x.sent {
		return errors.Wrap(ErrInvalidState, "setRequestHeader")
	}
	x.reqHeader.Add(name, value)
	return nil
}

func nativeXHRSend(x *XHR, body any) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != StateOpened || x.sent {
		return errors.Wrap(ErrInvalidState, "send")
	}
	target, err := x.env.resolve(x.url)
	if err != nil {
		return err
	}
	if x.method == http.MethodGet || x.method == http.MethodHead {
		body = nil
	}
	r, contentType, err := bodyReader(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, x.method, target, r)
	if err != nil {
		cancel()
		return errors.Wrap(err, "build request")
	}
	req.Header = x.reqHeader.Clone()
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	x.sent = true
	x.cancel = cancel
	x.done = make(chan struct{})
	go x.run(req, x.gen, cancel, x.done)
	return nil
}

// run performs the request and dispatches the event sequence for generation gen.
// A newer Open supersedes the call; nothing is committed or dispatched for it then.
func (x *XHR) run(req *http.Request, gen uint64, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	x.dispatch(EventLoadStart, gen)

	var body []byte
	resp, err := x.env.client.Do(req)
	if err == nil {
		body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}

	x.mu.Lock()
	if x.gen != gen {
		x.mu.Unlock()
		return
	}
	aborted := req.Context().Err() != nil
	x.state = StateDone
	x.cancel = nil
	switch {
	case aborted:
		x.err = context.Canceled
	case err != nil:
		x.err = err
	default:
		x.status = resp.StatusCode
		x.respHeader = resp.Header
		x.respBody = body
	}
	x.mu.Unlock()

	switch {
	case aborted:
		x.dispatch(EventAbort, gen)
	case err != nil:
		x.dispatch(EventError, gen)
	default:
		x.dispatch(EventLoad, gen)
	}
	x.dispatch(EventLoadEnd, gen)
}

// dispatch calls every listener for typ. A panicking listener is logged and
// does not stop the others.
func (x *XHR) dispatch(typ string, gen uint64) {
	x.mu.Lock()
	listeners := slices.Clone(x.listeners[typ])
	x.mu.Unlock()

	ev := XHREvent{Type: typ, TimeStamp: x.env.clock.Now(), Target: x, gen: gen}
	for _, fn := range listeners {
		err := util.Guard(func() error {
			fn(ev)
			return nil
		})
		if err != nil {
			x.env.log.Error("xhr listener failed", zap.String("event", typ), zap.Error(err))
		}
	}
}
