// network.go — Normalized HTTP request/response record.
// Both transport drivers (fetch and XHR) produce this shape before policy is applied.
// Zero dependencies - foundational types used by network, redaction and host packages.
package types

// Transport kinds reported on the wire.
const (
	KindFetch = "fetch"
	KindXHR   = "xhr"
)

// RequestData is the request half of a record.
// Body is nil when payload capture is disabled.
type RequestData struct {
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// ResponseData is the response half of a record.
// Body is nil when payload capture is disabled.
type ResponseData struct {
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// RequestResponseRecord is the normalized in-memory representation of one observed call.
// StartTime and Duration are milliseconds on the tracker's monotonic clock.
type RequestResponseRecord struct {
	URL       string       `json:"url"`
	Method    string       `json:"method"`
	Status    int          `json:"status"`
	StartTime float64      `json:"start_time"`
	Duration  float64      `json:"duration"`
	Request   RequestData  `json:"request"`
	Response  ResponseData `json:"response"`
}

// IsFailure reports whether the response status is an HTTP error (>= 400).
func (r *RequestResponseRecord) IsFailure() bool {
	return r.Status >= 400
}
