// tracker.go — Installation of the interceptors on an Env.
package network

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

// Tracker is one installation of the interceptors on one Env.
type Tracker struct {
	env    *Env
	app    App
	opts   Options
	filter headerFilter
	pipe   *pipeline
	active atomic.Bool

	nativeFetch FetchFunc
	nativeXHR   XHRProto

	// dispatch runs post-response pipeline work off the caller's path.
	dispatch func(func())
	pending  inflight
}

// inflight counts dispatched work. Unlike a WaitGroup it may grow while a
// waiter is blocked, and waiters select on a channel so they can give up.
type inflight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{} // closed when n drops to zero; nil while n == 0
}

func (f *inflight) add() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
}

func (f *inflight) done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n--
	if f.n == 0 {
		close(f.idle)
		f.idle = nil
	}
}

// wait returns a channel that is closed once nothing is in flight.
func (f *inflight) wait() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return closedChan
	}
	return f.idle
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Install replaces env's fetch primitive and XHR method table with instrumented
// versions reporting to app. Only one Tracker may be installed on an Env at a time.
func Install(env *Env, app App, opts Options) (*Tracker, error) {
	if env == nil {
		return nil, ErrNilEnv
	}
	if app == nil {
		return nil, ErrNilApp
	}
	opts = opts.withDefaults()
	t := &Tracker{
		env:    env,
		app:    app,
		opts:   opts,
		filter: newHeaderFilter(opts.IgnoreHeaders),
		pipe:   &pipeline{app: app, opts: opts},
	}
	t.dispatch = func(fn func()) {
		t.pending.add()
		util.SafeGo(app.Logger(), func() {
			defer t.pending.done()
			fn()
		})
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	if env.tracker != nil {
		return nil, ErrAlreadyInstalled
	}
	t.nativeFetch = env.fetch
	t.nativeXHR = env.xhr
	env.fetch = t.wrapFetch(t.nativeFetch)
	env.xhr = t.wrapXHR(t.nativeXHR)
	env.tracker = t
	t.active.Store(true)

	app.Logger().Debug("network tracker installed",
		zap.String("session_token_header", opts.SessionTokenHeader),
		zap.Bool("failures_only", opts.FailuresOnly),
		zap.Bool("capture_payload", opts.CapturePayload),
		zap.Bool("ignore_all_headers", opts.IgnoreHeaders.All),
		zap.Strings("ignore_headers", opts.IgnoreHeaders.Names))
	return t, nil
}

// Uninstall restores the primitives captured by Install. Transports and XHR
// listeners created by this Tracker pass calls through untouched afterwards.
func (t *Tracker) Uninstall() {
	env := t.env
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.tracker != t {
		return
	}
	env.fetch = t.nativeFetch
	env.xhr = t.nativeXHR
	env.tracker = nil
	t.active.Store(false)
	t.app.Logger().Debug("network tracker uninstalled")
}

// Flush waits until nothing handed to the pipeline is still in flight. Records
// dispatched while Flush waits are waited for too. Calls whose bodies are still
// being read are not.
func (t *Tracker) Flush(ctx context.Context) error {
	select {
	case <-t.pending.wait():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Options returns the effective options, defaults applied.
func (t *Tracker) Options() Options {
	return t.opts
}

func (t *Tracker) isActive() bool {
	return t.active.Load()
}

// isServiceURL resolves relative addresses against the Env before asking the host.
func (t *Tracker) isServiceURL(rawURL string) bool {
	if abs, err := t.env.resolve(rawURL); err == nil {
		rawURL = abs
	}
	return t.app.IsServiceURL(rawURL)
}
