// fetch.go — Fetch interceptor: wraps the Env's fetch primitive.
package network

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/metrics"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// wrapFetch returns the instrumented replacement for native.
func (t *Tracker) wrapFetch(native FetchFunc) FetchFunc {
	return func(ctx context.Context, input any, init *RequestInit) (*http.Response, error) {
		rawURL, ok := urlString(input)
		if !t.isActive() || !ok || t.isServiceURL(rawURL) {
			metrics.IncreaseRequestsBypassed(types.KindFetch)
			return native(ctx, input, init)
		}

		var in RequestInit
		if init != nil {
			in = *init
		}
		t.injectSessionToken(func(name, value string) error {
			return setInitHeader(&in, name, value)
		})

		reqBody := in.Body
		if t.opts.CapturePayload {
			if r, isReader := in.Body.(io.Reader); isReader {
				rec := newBodyRecorder(t.opts.MaxPayloadBytes)
				in.Body = io.TeeReader(r, rec)
				reqBody = rec
			}
		}

		start := t.env.clock.Now()
		resp, err := native(ctx, input, &in)
		if err != nil || resp == nil {
			return resp, err
		}
		metrics.IncreaseRequestsObserved(types.KindFetch)

		duration := t.env.clock.Now() - start
		if t.opts.FailuresOnly && resp.StatusCode < 400 {
			metrics.IncreaseRecordsDropped(types.KindFetch, metrics.DropFailuresOnly)
			return resp, nil
		}

		t.observeResponse(resp, &observation{
			kind:        types.KindFetch,
			url:         rawURL,
			method:      in.Method,
			status:      resp.StatusCode,
			startTime:   start,
			duration:    duration,
			reqHeaders:  t.filter.collect(in.Headers),
			reqBody:     reqBody,
			respHeaders: t.filter.collect(resp.Header),
		})
		return resp, nil
	}
}

// observeResponse hands obs to the pipeline once the response body is known.
// With payload capture on, the body is wrapped so the record is completed when the
// caller finishes reading it; the bytes the caller sees are unchanged.
func (t *Tracker) observeResponse(resp *http.Response, obs *observation) {
	if !t.opts.CapturePayload || resp.Body == nil || resp.Body == http.NoBody {
		t.dispatch(func() { t.pipe.deliver(obs) })
		return
	}
	resp.Body = newCaptureBody(resp.Body, t.opts.MaxPayloadBytes, t.completeObservation(obs))
}

// completeObservation returns the captureBody finisher for obs.
func (t *Tracker) completeObservation(obs *observation) func(body string, err error) {
	return func(body string, err error) {
		switch {
		case errors.Is(err, errRedirectFollowed):
			metrics.IncreaseRecordsDropped(obs.kind, metrics.DropRedirect)
			return
		case err != nil && t.opts.CapturePayload:
			t.app.Logger().Debug("couldn't read response body",
				zap.String("kind", obs.kind),
				zap.String("url", obs.url),
				zap.Error(err))
			metrics.IncreaseRecordsDropped(obs.kind, metrics.DropBodyRead)
			return
		}
		if t.opts.CapturePayload {
			obs.respBody = body
		}
		t.dispatch(func() { t.pipe.deliver(obs) })
	}
}
