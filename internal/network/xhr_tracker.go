// xhr_tracker.go — XHR interceptor: wraps Open, Send and SetRequestHeader and
// reports each call from its load event.
package network

import (
	"io"

	"github.com/brennhill/gasoline-network-tracker/internal/metrics"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// xhrTrace is the interception state of one open/send cycle. It lives in the
// XHR's own slot and is cleared when load is handled or the XHR is reopened.
type xhrTrace struct {
	tracker   *Tracker
	gen       uint64
	method    string
	url       string
	startTime float64
	started   bool
	call      *xhrCallState
}

// xhrCallState holds what the caller wrote before send. Created on first write.
type xhrCallState struct {
	headers map[string]string
	body    any
}

func (tr *xhrTrace) callState() *xhrCallState {
	if tr.call == nil {
		tr.call = &xhrCallState{headers: make(map[string]string)}
	}
	return tr.call
}

// traceFor returns the live trace owned by t. Caller holds x.mu.
func (x *XHR) traceFor(t *Tracker) *xhrTrace {
	if x.trace == nil || x.trace.tracker != t || x.trace.gen != x.gen {
		return nil
	}
	return x.trace
}

func (t *Tracker) wrapXHR(native XHRProto) XHRProto {
	return XHRProto{
		Open: func(x *XHR, method, rawURL string) error {
			if err := native.Open(x, method, rawURL); err != nil {
				return err
			}
			x.mu.Lock()
			x.trace = nil
			x.mu.Unlock()

			if !t.isActive() || t.isServiceURL(rawURL) {
				metrics.IncreaseRequestsBypassed(types.KindXHR)
				return nil
			}

			// headers are only accepted once the request is opened
			t.injectSessionToken(func(name, value string) error {
				return native.SetRequestHeader(x, name, value)
			})

			x.mu.Lock()
			x.trace = &xhrTrace{tracker: t, gen: x.gen, method: method, url: rawURL}
			attach := x.hooked != t
			x.hooked = t
			x.mu.Unlock()

			if attach {
				x.AddEventListener(EventLoadStart, t.onXHRLoadStart)
				x.AddEventListener(EventLoad, t.onXHRLoad)
			}
			return nil
		},

		SetRequestHeader: func(x *XHR, name, value string) error {
			if !t.filter.isIgnored(name) {
				x.mu.Lock()
				if tr := x.traceFor(t); tr != nil {
					headers := tr.callState().headers
					if prev, ok := headers[name]; ok {
						headers[name] = prev + ", " + value
					} else {
						headers[name] = value
					}
				}
				x.mu.Unlock()
			}
			return native.SetRequestHeader(x, name, value)
		},

		Send: func(x *XHR, body any) error {
			x.mu.Lock()
			if tr := x.traceFor(t); tr != nil {
				recorded := body
				if r, ok := body.(io.Reader); ok && t.opts.CapturePayload {
					rec := newBodyRecorder(t.opts.MaxPayloadBytes)
					body = io.TeeReader(r, rec)
					recorded = rec
				}
				tr.callState().body = recorded
			}
			x.mu.Unlock()
			return native.Send(x, body)
		},
	}
}

func (t *Tracker) onXHRLoadStart(ev XHREvent) {
	x := ev.Target
	x.mu.Lock()
	defer x.mu.Unlock()
	if tr := x.trace; tr != nil && tr.tracker == t && tr.gen == ev.gen {
		tr.startTime = ev.TimeStamp
		tr.started = true
	}
}

func (t *Tracker) onXHRLoad(ev XHREvent) {
	x := ev.Target
	x.mu.Lock()
	tr := x.trace
	if tr == nil || tr.tracker != t || tr.gen != ev.gen {
		x.mu.Unlock()
		return
	}
	x.trace = nil
	x.mu.Unlock()

	if !t.isActive() {
		return
	}
	metrics.IncreaseRequestsObserved(types.KindXHR)

	ok := t.app.Safe("network.xhr_load", func() error {
		status := x.Status()
		if t.opts.FailuresOnly && status < 400 {
			metrics.IncreaseRecordsDropped(types.KindXHR, metrics.DropFailuresOnly)
			return nil
		}

		var duration float64
		if tr.started {
			duration = ev.TimeStamp - tr.startTime
		}
		var respHeaders map[string]string
		if !t.filter.all {
			respHeaders = t.filter.parseBlock(x.GetAllResponseHeaders())
		}
		obs := &observation{
			kind:        types.KindXHR,
			url:         tr.url,
			method:      tr.method,
			status:      status,
			startTime:   tr.startTime,
			duration:    duration,
			respHeaders: respHeaders,
		}
		if tr.call != nil {
			obs.reqHeaders = tr.call.headers
			obs.reqBody = tr.call.body
		}
		if t.opts.CapturePayload {
			obs.respBody = truncate(x.ResponseText(), t.opts.MaxPayloadBytes)
		}
		t.dispatch(func() { t.pipe.deliver(obs) })
		return nil
	})
	if !ok {
		metrics.IncreaseRecordsDropped(types.KindXHR, metrics.DropListenerError)
	}
}
