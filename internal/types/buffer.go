// buffer.go — Send queue bookkeeping types.
// Zero dependencies - used by the host queue and CLI status output.
package types

// QueueCursor tracks a consumer's read position in the host send queue.
type QueueCursor struct {
	Position int64 // Monotonic position (total events ever queued)
}

// QueueStats summarizes the host send queue.
type QueueStats struct {
	Queued   int   `json:"queued"`   // events currently held
	Capacity int   `json:"capacity"` // maximum events held
	Total    int64 `json:"total"`    // events ever queued
}

// Evicted returns how many events were overwritten before being read.
func (s QueueStats) Evicted() int64 {
	evicted := s.Total - int64(s.Queued)
	if evicted < 0 {
		return 0
	}
	return evicted
}
