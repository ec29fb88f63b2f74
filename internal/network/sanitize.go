// sanitize.go — Payload suppression and the user sanitizer hook.
package network

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// sanitize applies payload policy and the optional user hook.
// A nil result means the record must not be sent.
func (p *pipeline) sanitize(rec *types.RequestResponseRecord) *types.RequestResponseRecord {
	if !p.opts.CapturePayload {
		rec.Request.Body = nil
		rec.Response.Body = nil
	}
	if p.opts.Sanitizer == nil {
		return rec
	}

	// give the hook a structured view of JSON responses
	if s, ok := rec.Response.Body.(string); ok && gjson.Valid(s) {
		if parsed, err := decodeJSON(s); err == nil {
			rec.Response.Body = parsed
		}
	}

	var out *types.RequestResponseRecord
	ok := p.app.Safe("network.sanitizer", func() error {
		out = p.opts.Sanitizer(rec)
		return nil
	})
	if !ok {
		return nil
	}
	return out
}

// decodeJSON keeps numbers as json.Number so large integers survive re-encoding.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
