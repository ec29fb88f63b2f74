// Package network intercepts outgoing HTTP calls and reports them as telemetry events.
//
// Two transport primitives are instrumented through one Env:
//   - Fetch: a fetch-shaped function (Env.Fetch), plus an http.RoundTripper adapter
//     (Tracker.Transport, Tracker.InstrumentClient) for ordinary http.Client code
//   - XHR: an event-based request object whose open/send/setRequestHeader methods
//     dispatch through a replaceable method table (XHRProto)
//
// Both drivers hand one observation to a shared pipeline:
//
//	Normalize → Sanitize → Serialize → App.Send
//
// Policy applied before anything leaves the process:
//   - Header deny-list (default Cookie, Set-Cookie, Authorization) or blanket suppression
//   - Payload capture off by default; bodies are bounded by MaxPayloadBytes when on
//   - Failure-only mode (status >= 400)
//   - Optional user Sanitizer that may rewrite or veto each record
//
// Instrumentation never changes what the caller observes: the response, error and
// body bytes are exactly those of the wrapped primitive, and failures inside the
// pipeline are logged and dropped. XHR error and abort events produce no record.
//
// Install replaces the Env's primitives once; Tracker.Uninstall restores them.
package network
