// body.go — Bounded body recording for request tees and response capture.
package network

import (
	"bytes"
	"io"
	"sync"
	"unicode/utf8"
)

// bodyRecorder keeps up to limit bytes of everything written to it.
// limit < 0 means unbounded. Writes never fail so it is safe inside a TeeReader.
type bodyRecorder struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newBodyRecorder(limit int) *bodyRecorder {
	return &bodyRecorder{limit: limit}
}

func (r *bodyRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(p)
	if r.limit >= 0 {
		room := r.limit - r.buf.Len()
		if room <= 0 {
			r.truncated = r.truncated || n > 0
			return n, nil
		}
		if len(p) > room {
			p = p[:room]
			r.truncated = true
		}
	}
	r.buf.Write(p)
	return n, nil
}

// String returns the recorded bytes. A truncated recording never ends inside a
// UTF-8 sequence.
func (r *bodyRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.buf.String()
	if r.truncated {
		s = trimPartialRune(s)
	}
	return s
}

// room reports how many more bytes the recorder keeps, or -1 when unbounded.
func (r *bodyRecorder) room() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit < 0 {
		return -1
	}
	return max(r.limit-r.buf.Len(), 0)
}

// truncate cuts s to at most limit bytes on a rune boundary. limit < 0 keeps s whole.
func truncate(s string, limit int) string {
	if limit < 0 || len(s) <= limit {
		return s
	}
	i := limit
	for i > 0 && i > limit-utf8.UTFMax && !utf8.RuneStart(s[i]) {
		i--
	}
	if !utf8.RuneStart(s[i]) {
		i = limit
	}
	return s[:i]
}

// trimPartialRune drops an incomplete UTF-8 sequence left at the end of s.
func trimPartialRune(s string) string {
	for i := len(s) - 1; i >= 0 && i >= len(s)-utf8.UTFMax; i-- {
		if utf8.RuneStart(s[i]) {
			if !utf8.FullRuneInString(s[i:]) {
				return s[:i]
			}
			return s
		}
	}
	return s
}

// captureBody wraps a response body, copying what the caller reads.
// finish runs exactly once: at EOF, on the first read error, or on Close.
// Closing before EOF first drains the body up to the capture limit, so the
// record holds the same text a full read would have kept.
type captureBody struct {
	rc     io.ReadCloser
	rec    *bodyRecorder
	once   sync.Once
	finish func(body string, err error)
}

func newCaptureBody(rc io.ReadCloser, limit int, finish func(body string, err error)) *captureBody {
	return &captureBody{rc: rc, rec: newBodyRecorder(limit), finish: finish}
}

func (c *captureBody) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	if n > 0 {
		c.rec.Write(p[:n])
	}
	switch {
	case err == io.EOF:
		c.complete(nil)
	case err != nil:
		c.complete(err)
	}
	return n, err
}

// Close drains what the recorder still has room for, then ends the capture.
// An unbounded recorder drains at most DefaultMaxPayloadBytes.
func (c *captureBody) Close() error {
	c.once.Do(func() {
		err := c.drain()
		c.finish(c.rec.String(), err)
	})
	return c.rc.Close()
}

// abandon ends the capture with err without reading further.
func (c *captureBody) abandon(err error) {
	c.once.Do(func() {
		c.finish("", err)
	})
}

func (c *captureBody) drain() error {
	n := int64(DefaultMaxPayloadBytes)
	if room := c.rec.room(); room >= 0 {
		// One byte past the limit marks the recording as truncated.
		n = int64(room) + 1
	}
	_, err := io.Copy(c.rec, io.LimitReader(c.rc, n))
	return err
}

func (c *captureBody) complete(err error) {
	c.once.Do(func() {
		c.finish(c.rec.String(), err)
	})
}
