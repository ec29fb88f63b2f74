// host.go — Session identity, service-URL matching, guarded calls and the send queue.
package host

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/brennhill/gasoline-network-tracker/internal/buffers"
	"github.com/brennhill/gasoline-network-tracker/internal/network"
	"github.com/brennhill/gasoline-network-tracker/internal/types"
	"github.com/brennhill/gasoline-network-tracker/internal/util"
)

// DefaultQueueSize is used when Options.QueueSize is not positive.
const DefaultQueueSize = 1000

// Options configure a Host.
type Options struct {
	// ServiceURLs are the tracking backend's endpoints. Calls to them are never captured.
	ServiceURLs []string
	// SessionToken seeds the session; empty generates a random one.
	SessionToken string
	// QueueSize bounds the events kept for cursor reads.
	QueueSize int
	Logger    *zap.Logger
	Clock     *util.MonotonicClock
}

var _ network.App = (*Host)(nil)

// Host implements network.App.
type Host struct {
	log      *zap.Logger
	clock    *util.MonotonicClock
	services []string
	queue    *buffers.RingBuffer[types.NetworkRequest]

	mu    sync.RWMutex
	token string
	subs  map[int]chan types.NetworkRequest
	next  int
}

// New creates a Host with defaults applied.
func New(opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = util.NewMonotonicClock()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SessionToken == "" {
		opts.SessionToken = uuid.NewString()
	}
	return &Host{
		log:      opts.Logger,
		clock:    opts.Clock,
		services: append([]string(nil), opts.ServiceURLs...),
		queue:    buffers.NewRingBuffer[types.NetworkRequest](opts.QueueSize),
		token:    opts.SessionToken,
		subs:     make(map[int]chan types.NetworkRequest),
	}
}

func (h *Host) SessionToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// RotateSession starts a new session and returns its token.
func (h *Host) RotateSession() string {
	token := uuid.NewString()
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
	h.log.Info("session rotated", zap.String("session", token))
	return token
}

// EndSession clears the token; no header is injected until the next rotation.
func (h *Host) EndSession() {
	h.mu.Lock()
	h.token = ""
	h.mu.Unlock()
}

// IsServiceURL reports whether rawURL targets one of the configured backend endpoints.
func (h *Host) IsServiceURL(rawURL string) bool {
	for _, endpoint := range h.services {
		if util.MatchesEndpoint(rawURL, endpoint) {
			return true
		}
	}
	return false
}

// Safe runs fn and reports whether it succeeded. Errors are logged at debug level,
// panics at error level with their stack. Nothing propagates to the caller.
func (h *Host) Safe(op string, fn func() error) bool {
	err := util.Guard(fn)
	if err == nil {
		return true
	}
	var perr *util.PanicError
	if errors.As(err, &perr) {
		h.log.Error("recovered panic", zap.String("op", op), zap.Any("panic", perr.Value),
			zap.ByteString("stack", perr.Stack))
		return false
	}
	h.log.Debug("guarded call failed", zap.String("op", op), zap.Error(err))
	return false
}

// Send queues ev and offers it to every subscriber without blocking.
func (h *Host) Send(ev types.NetworkRequest) {
	h.queue.WriteOne(ev)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.log.Warn("subscriber is falling behind, event dropped",
				zap.Int("subscriber", id), zap.String("url", ev.URL))
		}
	}
}

// Subscribe returns a channel receiving every event sent after the call.
// cancel closes the channel; it is safe to call more than once.
func (h *Host) Subscribe(buffer int) (events <-chan types.NetworkRequest, cancel func()) {
	ch := make(chan types.NetworkRequest, buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Events returns every event still held by the queue, oldest first.
func (h *Host) Events() []types.NetworkRequest {
	return h.queue.ReadAll()
}

// EventsSince returns events queued after cursor and the cursor for the next read.
func (h *Host) EventsSince(cursor types.QueueCursor) ([]types.NetworkRequest, types.QueueCursor) {
	return h.queue.ReadFrom(cursor)
}

// Stats summarizes the queue.
func (h *Host) Stats() types.QueueStats {
	return types.QueueStats{
		Queued:   h.queue.Len(),
		Capacity: h.queue.Cap(),
		Total:    h.queue.Position(),
	}
}

func (h *Host) Logger() *zap.Logger {
	return h.log
}

// Clock is the monotonic clock the tracker's Env should share so that
// TimeOrigin reconciles its readings.
func (h *Host) Clock() *util.MonotonicClock {
	return h.clock
}

func (h *Host) TimeOrigin() float64 {
	return h.clock.TimeOrigin()
}
