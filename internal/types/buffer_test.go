package types

import "testing"

func TestQueueStatsEvicted(t *testing.T) {
	t.Parallel()

	stats := QueueStats{Queued: 10, Capacity: 10, Total: 35}
	if got := stats.Evicted(); got != 25 {
		t.Fatalf("Evicted() = %d, want 25", got)
	}

	empty := QueueStats{}
	if got := empty.Evicted(); got != 0 {
		t.Fatalf("Evicted() on empty = %d, want 0", got)
	}
}

func TestRecordIsFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{0, false},
		{200, false},
		{399, false},
		{400, true},
		{503, true},
	}
	for _, tt := range tests {
		rec := RequestResponseRecord{Status: tt.status}
		if got := rec.IsFailure(); got != tt.want {
			t.Errorf("IsFailure() for %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}
