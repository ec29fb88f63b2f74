// ring_buffer.go — Generic ring buffer with cursor-based reads.
// Backs the host send queue: a fixed-capacity circular buffer so a slow or absent
// consumer can never make captured events grow without bound.
// Thread-safe: all access guarded by RWMutex.
package buffers

import (
	"sync"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

// RingBuffer is a generic fixed-capacity circular buffer.
// Entries are evicted in FIFO order when capacity is reached.
// Supports cursor-based reads so multiple consumers can keep independent positions.
type RingBuffer[T any] struct {
	mu sync.RWMutex

	entries  []T
	capacity int

	totalAdded int64 // Monotonic counter of all entries ever added
	head       int   // Index where next write goes
}

// NewRingBuffer creates a new ring buffer with the given capacity.
// A capacity below 1 is raised to 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// WriteOne appends a single entry, overwriting the oldest when full.
func (rb *RingBuffer[T]) WriteOne(entry T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if len(rb.entries) < rb.capacity {
		rb.entries = append(rb.entries, entry)
	} else {
		rb.entries[rb.head] = entry
	}
	rb.head = (rb.head + 1) % rb.capacity
	rb.totalAdded++
}

// ReadFrom returns entries added after the cursor position and a cursor for the next read.
// If the cursor position has been evicted, reading starts from the oldest available entry.
func (rb *RingBuffer[T]) ReadFrom(cursor types.QueueCursor) ([]T, types.QueueCursor) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	next := types.QueueCursor{Position: rb.totalAdded}
	if len(rb.entries) == 0 {
		return nil, next
	}

	oldest := rb.totalAdded - int64(len(rb.entries))
	start := max(cursor.Position, oldest)
	available := rb.totalAdded - start
	if available <= 0 {
		return nil, next
	}

	startIndex := rb.positionToIndex(start)
	result := make([]T, 0, available)
	for i := int64(0); i < available; i++ {
		idx := int((int64(startIndex) + i) % int64(len(rb.entries)))
		result = append(result, rb.entries[idx])
	}
	return result, next
}

// ReadAll returns all entries currently in the buffer, oldest first.
func (rb *RingBuffer[T]) ReadAll() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.entries) == 0 {
		return nil
	}
	result := make([]T, len(rb.entries))
	if len(rb.entries) < rb.capacity {
		copy(result, rb.entries)
	} else {
		// full: head points to the oldest entry
		n := copy(result, rb.entries[rb.head:])
		copy(result[n:], rb.entries[:rb.head])
	}
	return result
}

// Position returns the total number of entries ever written.
func (rb *RingBuffer[T]) Position() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.totalAdded
}

// Len returns the number of entries currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.entries)
}

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// Clear removes all entries. The position is kept so existing cursors stay valid.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.entries = rb.entries[:0]
	rb.head = 0
}

// positionToIndex converts a monotonic position to a buffer index.
// Must be called with at least a read lock held.
func (rb *RingBuffer[T]) positionToIndex(position int64) int {
	if len(rb.entries) < rb.capacity {
		oldest := rb.totalAdded - int64(len(rb.entries))
		return int(position - oldest)
	}
	oldest := rb.totalAdded - int64(len(rb.entries))
	return (rb.head + int(position-oldest)) % rb.capacity
}
