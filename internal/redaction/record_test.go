package redaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

func TestSanitizer_RedactsRecord(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(Config{
		HeaderNames: []string{"x-api-key"},
		JSONKeys:    []string{"password"},
	})
	require.NoError(t, err)

	rec := &types.RequestResponseRecord{
		URL: "https://api.example.com/login?sid=abcdef1234567890ABCDEF",
		Request: types.RequestData{
			Headers: map[string]string{"X-Api-Key": "k-1", "X-Trace": "Bearer abc"},
			Body:    `{"user":"ann","password":"hunter2","card":"4111 1111 1111 1111"}`,
		},
		Response: types.ResponseData{
			Headers: map[string]string{"Content-Type": "application/json"},
			Body: map[string]any{
				"token":    "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.sig",
				"Password": "x",
				"items":    []any{"ssn 123-45-6789", json.Number("7")},
			},
		},
	}

	out := engine.Sanitizer()(rec)
	require.Same(t, rec, out, "never vetoes")

	assert.Equal(t, "https://api.example.com/login?[REDACTED:session-cookie]", rec.URL)
	assert.Equal(t, Mask, rec.Request.Headers["X-Api-Key"])
	assert.Equal(t, "[REDACTED:bearer-token]", rec.Request.Headers["X-Trace"])
	assert.Equal(t, "application/json", rec.Response.Headers["Content-Type"])
	assert.JSONEq(t,
		`{"user":"ann","password":"[REDACTED]","card":"[REDACTED:credit-card]"}`,
		rec.Request.Body.(string))

	body := rec.Response.Body.(map[string]any)
	assert.Equal(t, "[REDACTED:jwt]", body["token"])
	assert.Equal(t, Mask, body["Password"])
	assert.Equal(t, []any{"ssn [REDACTED:ssn]", json.Number("7")}, body["items"])
}

func TestRedactValue_PlainStringWithoutKeyRules(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(Config{})
	require.NoError(t, err)

	assert.Equal(t, `{"auth":"[REDACTED:bearer-token]"}`, engine.RedactValue(`{"auth":"Bearer abc"}`))
	assert.Nil(t, engine.RedactValue(nil))
	assert.Equal(t, 3, engine.RedactValue(3))
}

func TestRedactValue_ScalarJSONString(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(Config{JSONKeys: []string{"secret"}})
	require.NoError(t, err)

	assert.Equal(t, `"[REDACTED:bearer-token]"`, engine.RedactValue(`"Bearer abc"`))
}

func TestRedactRecord_Nil(t *testing.T) {
	t.Parallel()
	engine, err := NewEngine(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, func() { engine.RedactRecord(nil) })
}
