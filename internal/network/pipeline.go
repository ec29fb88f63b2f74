// pipeline.go — Shared Normalize → Sanitize → Serialize → Deliver path.
// Both transport drivers hand observations here; nothing transport-specific lives below this point.
package network

import (
	"github.com/brennhill/gasoline-network-tracker/internal/metrics"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

type pipeline struct {
	app  App
	opts Options
}

// deliver runs the full policy pipeline for one observation and sends the result.
func (p *pipeline) deliver(obs *observation) {
	rec := normalize(obs)
	// method, status and timing are reported as observed, whatever the sanitizer does
	method := rec.Method

	rec = p.sanitize(rec)
	if rec == nil {
		metrics.IncreaseRecordsDropped(obs.kind, metrics.DropSanitizerVeto)
		return
	}

	p.app.Send(types.NetworkRequest{
		Type:      obs.kind,
		Method:    method,
		URL:       rec.URL,
		Request:   p.stringify(rec.Request.Headers, rec.Request.Body),
		Response:  p.stringify(rec.Response.Headers, rec.Response.Body),
		Status:    obs.status,
		Timestamp: obs.startTime + p.app.TimeOrigin(),
		Duration:  obs.duration,
	})
	metrics.IncreaseRecordsSent(obs.kind)
	metrics.RecordRequestDuration(obs.duration, obs.kind)
}
