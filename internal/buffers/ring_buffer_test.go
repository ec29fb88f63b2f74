// ring_buffer_test.go — Behavior and property tests for the ring buffer.
package buffers

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brennhill/gasoline-network-tracker/internal/types"
)

func TestRingBufferWrapsOldestFirst(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.WriteOne(i)
	}
	assert.Equal(t, []int{3, 4, 5}, rb.ReadAll())
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, int64(5), rb.Position())
}

func TestRingBufferReadFromCursor(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[string](4)
	rb.WriteOne("a")
	rb.WriteOne("b")

	got, cursor := rb.ReadFrom(types.QueueCursor{})
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, int64(2), cursor.Position)

	got, cursor = rb.ReadFrom(cursor)
	assert.Empty(t, got)
	assert.Equal(t, int64(2), cursor.Position)

	rb.WriteOne("c")
	got, _ = rb.ReadFrom(cursor)
	assert.Equal(t, []string{"c"}, got)
}

func TestRingBufferReadFromEvictedCursor(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](2)
	for i := 0; i < 6; i++ {
		rb.WriteOne(i)
	}
	got, cursor := rb.ReadFrom(types.QueueCursor{Position: 1})
	assert.Equal(t, []int{4, 5}, got)
	assert.Equal(t, int64(6), cursor.Position)
}

func TestRingBufferClearKeepsPosition(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](3)
	rb.WriteOne(1)
	rb.WriteOne(2)
	_, cursor := rb.ReadFrom(types.QueueCursor{})

	rb.Clear()
	require.Equal(t, 0, rb.Len())
	require.Equal(t, int64(2), rb.Position())

	rb.WriteOne(3)
	got, _ := rb.ReadFrom(cursor)
	assert.Equal(t, []int{3}, got)
	assert.Equal(t, []int{3}, rb.ReadAll())
}

func TestRingBufferMinimumCapacity(t *testing.T) {
	t.Parallel()
	rb := NewRingBuffer[int](0)
	assert.Equal(t, 1, rb.Cap())
	rb.WriteOne(7)
	rb.WriteOne(8)
	assert.Equal(t, []int{8}, rb.ReadAll())
}

// TestPropertyWriteReadConsistency verifies that ReadAll returns the last min(N, C) items written.
func TestPropertyWriteReadConsistency(t *testing.T) {
	f := func(items []int, capacityOffset uint8) bool {
		capacity := int(capacityOffset) + 1
		rb := NewRingBuffer[int](capacity)
		for _, item := range items {
			rb.WriteOne(item)
		}
		read := rb.ReadAll()
		want := min(len(items), capacity)
		if len(read) != want || rb.Len() > rb.Cap() {
			return false
		}
		start := len(items) - want
		for i := range read {
			if read[i] != items[start+i] {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

// TestPropertyCursorSeesEveryRetainedEntry verifies that a cursor taken before a
// batch of writes reads exactly the retained suffix of that batch.
func TestPropertyCursorSeesEveryRetainedEntry(t *testing.T) {
	f := func(before, batch []int, capacityOffset uint8) bool {
		capacity := int(capacityOffset) + 1
		rb := NewRingBuffer[int](capacity)
		for _, item := range before {
			rb.WriteOne(item)
		}
		_, cursor := rb.ReadFrom(types.QueueCursor{Position: rb.Position()})
		for _, item := range batch {
			rb.WriteOne(item)
		}
		got, next := rb.ReadFrom(cursor)
		want := batch[len(batch)-min(len(batch), capacity):]
		if next.Position != int64(len(before)+len(batch)) || len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
