// wire_network.go — Wire event for captured network calls.
// This is the opaque event handed to the host's send primitive.
//
// JSON CONVENTION: All fields MUST use snake_case.
package types

// NetworkRequest is the event produced for each captured call.
// Request and Response hold the JSON-stringified {headers, body} parts.
type NetworkRequest struct {
	Type      string  `json:"type"`
	Method    string  `json:"method"`
	URL       string  `json:"url"`
	Request   string  `json:"request"`
	Response  string  `json:"response"`
	Status    int     `json:"status"`
	Timestamp float64 `json:"timestamp"` // wall-clock ms
	Duration  float64 `json:"duration"`  // ms
}
