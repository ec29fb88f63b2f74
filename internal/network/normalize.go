// normalize.go — Converts fetch and XHR observations into one record shape.
package network

import (
	"net/url"
	"strings"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// observation is what a transport driver saw for one completed call.
// Header maps are already filtered; bodies are raw driver values.
type observation struct {
	kind        string
	url         string
	method      string
	status      int
	startTime   float64
	duration    float64
	reqHeaders  map[string]string
	reqBody     any
	respHeaders map[string]string
	respBody    any
}

func normalize(obs *observation) *types.RequestResponseRecord {
	return &types.RequestResponseRecord{
		URL:       obs.url,
		Method:    strMethod(obs.method),
		Status:    obs.status,
		StartTime: obs.startTime,
		Duration:  obs.duration,
		Request: types.RequestData{
			Headers: nonNilHeaders(obs.reqHeaders),
			Body:    normalizeBody(obs.reqBody),
		},
		Response: types.ResponseData{
			Headers: nonNilHeaders(obs.respHeaders),
			Body:    normalizeBody(obs.respBody),
		},
	}
}

// strMethod uppercases the method, defaulting to GET when unspecified.
func strMethod(method string) string {
	if method == "" {
		return "GET"
	}
	return strings.ToUpper(method)
}

func nonNilHeaders(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}

// normalizeBody turns the byte-ish body values the drivers accept into text.
// Other values are left for the serializer to JSON-encode.
func normalizeBody(body any) any {
	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return b
	case []byte:
		return string(b)
	case url.Values:
		return b.Encode()
	case *bodyRecorder:
		return b.String()
	default:
		return body
	}
}

// urlString returns the address of a fetch input. ok is false for inputs that are
// not a plain string or URL, which are passed through uninstrumented.
func urlString(input any) (string, bool) {
	switch in := input.(type) {
	case string:
		return in, true
	case *url.URL:
		if in == nil {
			return "", false
		}
		return in.String(), true
	default:
		return "", false
	}
}
