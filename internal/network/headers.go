// headers.go — Header filter, session-token injection and header collection.
package network

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

// headerFilter decides whether a header name is excluded from capture.
type headerFilter struct {
	all   bool
	names map[string]struct{}
}

func newHeaderFilter(p *HeaderPolicy) headerFilter {
	if p == nil {
		return headerFilter{}
	}
	f := headerFilter{all: p.All, names: make(map[string]struct{}, len(p.Names))}
	for _, n := range p.Names {
		f.names[n] = struct{}{}
	}
	return f
}

// isIgnored is an exact, case-sensitive match against the deny-list.
func (f headerFilter) isIgnored(name string) bool {
	if f.all {
		return true
	}
	_, ok := f.names[name]
	return ok
}

// collect copies the request headers supplied in any supported shape,
// dropping ignored names. Multiple values of one name are joined with ", ".
func (f headerFilter) collect(headers any) map[string]string {
	out := make(map[string]string)
	if f.all {
		return out
	}
	write := func(name, value string) {
		if f.isIgnored(name) {
			return
		}
		if prev, ok := out[name]; ok {
			value = prev + ", " + value
		}
		out[name] = value
	}
	switch h := headers.(type) {
	case http.Header:
		for name, values := range h {
			for _, v := range values {
				write(name, v)
			}
		}
	case [][2]string:
		for _, kv := range h {
			write(kv[0], kv[1])
		}
	case map[string]string:
		for name, v := range h {
			write(name, v)
		}
	}
	return out
}

// parseBlock parses a raw "Name: value\r\n" header block.
func (f headerFilter) parseBlock(raw string) map[string]string {
	out := make(map[string]string)
	if f.all || raw == "" {
		return out
	}
	for _, line := range strings.Split(raw, "\r\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" || f.isIgnored(name) {
			continue
		}
		out[name] = strings.TrimLeft(value, " \t")
	}
	return out
}

// injectSessionToken sets the session-token header through set, under App.Safe,
// so a rejected header never aborts the caller's request.
func (t *Tracker) injectSessionToken(set func(name, value string) error) {
	name := t.opts.SessionTokenHeader
	if name == "" {
		return
	}
	token := t.app.SessionToken()
	if token == "" {
		return
	}
	t.app.Safe("network.session_token", func() error {
		return set(name, token)
	})
}

func validateHeader(name, value string) error {
	if !httpguts.ValidHeaderFieldName(name) {
		return errors.Wrapf(ErrInvalidHeaderName, "%q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errors.Wrapf(ErrInvalidHeaderValue, "for %q", name)
	}
	return nil
}

// setInitHeader adds a header to whichever shape init.Headers already uses,
// creating a map when none was supplied.
func setInitHeader(init *RequestInit, name, value string) error {
	if err := validateHeader(name, value); err != nil {
		return err
	}
	switch h := init.Headers.(type) {
	case nil:
		init.Headers = map[string]string{name: value}
	case http.Header:
		if h == nil {
			h = make(http.Header)
			init.Headers = h
		}
		h.Add(name, value)
	case [][2]string:
		init.Headers = append(h, [2]string{name, value})
	case map[string]string:
		if h == nil {
			h = make(map[string]string)
			init.Headers = h
		}
		h[name] = value
	default:
		return errors.Wrapf(ErrUnsupportedHeaders, "%T", init.Headers)
	}
	return nil
}

// applyHeaders copies init headers of any supported shape onto an outgoing request.
func applyHeaders(dst http.Header, headers any) error {
	switch h := headers.(type) {
	case nil:
	case http.Header:
		for name, values := range h {
			for _, v := range values {
				dst.Add(name, v)
			}
		}
	case [][2]string:
		for _, kv := range h {
			dst.Add(kv[0], kv[1])
		}
	case map[string]string:
		for name, v := range h {
			dst.Set(name, v)
		}
	default:
		return errors.Wrapf(ErrUnsupportedHeaders, "%T", headers)
	}
	return nil
}
