// record.go — Applies an Engine to normalized network records.
package redaction

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// Sanitizer returns a record hook that redacts every record in place and never vetoes.
// It is assignable to network.Sanitizer.
func (e *Engine) Sanitizer() func(*types.RequestResponseRecord) *types.RequestResponseRecord {
	return func(rec *types.RequestResponseRecord) *types.RequestResponseRecord {
		e.RedactRecord(rec)
		return rec
	}
}

// RedactRecord scrubs the URL, header values and bodies of rec.
func (e *Engine) RedactRecord(rec *types.RequestResponseRecord) {
	if rec == nil {
		return
	}
	rec.URL = e.Redact(rec.URL)
	e.redactHeaders(rec.Request.Headers)
	e.redactHeaders(rec.Response.Headers)
	rec.Request.Body = e.RedactValue(rec.Request.Body)
	rec.Response.Body = e.RedactValue(rec.Response.Body)
}

func (e *Engine) redactHeaders(headers map[string]string) {
	for name, value := range headers {
		if _, masked := e.headerNames[strings.ToLower(name)]; masked {
			headers[name] = Mask
			continue
		}
		headers[name] = e.Redact(value)
	}
}

// RedactValue redacts a body. Strings holding JSON are redacted structurally when
// key rules exist; decoded JSON values are walked and their string leaves redacted.
func (e *Engine) RedactValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return e.redactString(val)
	case map[string]any:
		for k, child := range val {
			if _, masked := e.jsonKeys[strings.ToLower(k)]; masked {
				val[k] = Mask
				continue
			}
			val[k] = e.RedactValue(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = e.RedactValue(child)
		}
		return val
	default:
		return v
	}
}

func (e *Engine) redactString(s string) string {
	if len(e.jsonKeys) == 0 || !gjson.Valid(s) {
		return e.Redact(s)
	}
	parsed := gjson.Parse(s)
	if !parsed.IsObject() && !parsed.IsArray() {
		return e.Redact(s)
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return e.Redact(s)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.RedactValue(doc)); err != nil {
		return e.Redact(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
