// transport.go — http.RoundTripper adapter for the fetch interceptor.
package network

import (
	"io"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/brennhill/gasoline-network-tracker/internal/metrics"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// maxRedirects matches the http.Client default policy.
const maxRedirects = 10

// errRedirectFollowed ends the capture of a redirect hop the client followed.
var errRedirectFollowed = errors.New("network: redirect followed")

type roundTripper struct {
	t    *Tracker
	base http.RoundTripper

	// Set by InstrumentClient. Redirect responses are held in hops until the
	// client's CheckRedirect says whether they are final.
	redirects bool
	hops      sync.Map // *http.Response -> *captureBody
}

// Transport wraps base (http.DefaultTransport if nil) so every request through it
// is observed like a fetch call.
func (t *Tracker) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{t: t, base: base}
}

// InstrumentClient swaps c's transport for an instrumented one. Redirects the
// client follows are folded into one record for the final response, like a
// fetch call. The returned func puts the previous transport and redirect
// policy back.
func (t *Tracker) InstrumentClient(c *http.Client) (restore func()) {
	prevTransport, prevCheck := c.Transport, c.CheckRedirect
	base := prevTransport
	if base == nil {
		base = http.DefaultTransport
	}
	rt := &roundTripper{t: t, base: base, redirects: true}
	c.Transport = rt
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		var err error
		if prevCheck != nil {
			err = prevCheck(req, via)
		} else if len(via) >= maxRedirects {
			err = errors.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !errors.Is(err, http.ErrUseLastResponse) && req.Response != nil {
			rt.supersede(req.Response)
		}
		return err
	}
	return func() {
		c.Transport = prevTransport
		c.CheckRedirect = prevCheck
	}
}

// supersede drops the pending record of a redirect hop that is not the final response.
func (rt *roundTripper) supersede(resp *http.Response) {
	if v, ok := rt.hops.LoadAndDelete(resp); ok {
		v.(*captureBody).abandon(errRedirectFollowed)
	}
}

// observeHop defers the record of a redirect response until the client has
// decided whether to follow it.
func (rt *roundTripper) observeHop(resp *http.Response, obs *observation) {
	t := rt.t
	limit := 0
	if t.opts.CapturePayload {
		limit = t.opts.MaxPayloadBytes
	}
	body := resp.Body
	if body == nil {
		body = http.NoBody
	}
	complete := t.completeObservation(obs)
	cb := newCaptureBody(body, limit, func(text string, err error) {
		rt.hops.Delete(resp)
		complete(text, err)
	})
	resp.Body = cb
	rt.hops.Store(resp, cb)
}

func isRedirect(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return resp.Header.Get("Location") != ""
	}
	return false
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	t := rt.t
	rawURL := req.URL.String()
	if !t.isActive() || t.app.IsServiceURL(rawURL) {
		metrics.IncreaseRequestsBypassed(types.KindFetch)
		return rt.base.RoundTrip(req)
	}

	// a RoundTripper must not modify the caller's request
	out := req.Clone(req.Context())
	t.injectSessionToken(func(name, value string) error {
		if err := validateHeader(name, value); err != nil {
			return err
		}
		out.Header.Set(name, value)
		return nil
	})

	var reqBody any
	if t.opts.CapturePayload && out.Body != nil && out.Body != http.NoBody {
		reqBody = t.captureRequestBody(out)
	}

	start := t.env.clock.Now()
	resp, err := rt.base.RoundTrip(out)
	if err != nil {
		return resp, err
	}
	metrics.IncreaseRequestsObserved(types.KindFetch)

	duration := t.env.clock.Now() - start
	if t.opts.FailuresOnly && resp.StatusCode < 400 {
		metrics.IncreaseRecordsDropped(types.KindFetch, metrics.DropFailuresOnly)
		return resp, nil
	}

	obs := &observation{
		kind:        types.KindFetch,
		url:         rawURL,
		method:      req.Method,
		status:      resp.StatusCode,
		startTime:   start,
		duration:    duration,
		reqHeaders:  t.filter.collect(out.Header),
		reqBody:     reqBody,
		respHeaders: t.filter.collect(resp.Header),
	}
	if rt.redirects && isRedirect(resp) {
		rt.observeHop(resp, obs)
		return resp, nil
	}
	t.observeResponse(resp, obs)
	return resp, nil
}

// captureRequestBody records the outgoing body. A replayable body is read from
// GetBody; otherwise what the base transport reads is teed into the recorder.
func (t *Tracker) captureRequestBody(out *http.Request) *bodyRecorder {
	rec := newBodyRecorder(t.opts.MaxPayloadBytes)
	if out.GetBody != nil {
		if rc, err := out.GetBody(); err == nil {
			defer rc.Close()
			var r io.Reader = rc
			if t.opts.MaxPayloadBytes >= 0 {
				r = io.LimitReader(rc, int64(t.opts.MaxPayloadBytes)+1)
			}
			if _, err := io.Copy(rec, r); err == nil {
				return rec
			}
			rec = newBodyRecorder(t.opts.MaxPayloadBytes)
		}
	}
	out.Body = teeReadCloser{Reader: io.TeeReader(out.Body, rec), Closer: out.Body}
	return rec
}

type teeReadCloser struct {
	io.Reader
	io.Closer
}
