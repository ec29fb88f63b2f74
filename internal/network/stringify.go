// stringify.go — Converts record parts into the transmitted JSON strings.
package network

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/metrics"
)

// unstringifiableBody replaces bodies that cannot be JSON-encoded.
const unstringifiableBody = "<unable to stringify>"

type wirePart struct {
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body,omitempty"`
}

// stringify JSON-encodes {headers, body}. Non-string bodies are encoded first;
// failures substitute unstringifiableBody and log a warning. Never panics.
func (p *pipeline) stringify(headers map[string]string, body any) string {
	if body != nil {
		if _, isString := body.(string); !isString {
			body = p.stringifyBody(body)
		}
	}
	out, err := json.Marshal(wirePart{Headers: nonNilHeaders(headers), Body: body})
	if err != nil {
		p.app.Logger().Warn("couldn't stringify network part", zap.Error(err))
		return `{"headers":{}}`
	}
	return string(out)
}

func (p *pipeline) stringifyBody(body any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = p.unstringifiable(zap.Any("panic", r))
		}
	}()
	encoded, err := json.Marshal(body)
	if err != nil {
		return p.unstringifiable(zap.Error(err))
	}
	return string(encoded)
}

func (p *pipeline) unstringifiable(reason zap.Field) string {
	metrics.IncreaseStringifyFailures()
	p.app.Logger().Warn("couldn't stringify body", zap.String("body", unstringifiableBody), reason)
	return unstringifiableBody
}
