// Package jitter implements the per-sender jitter buffer described in the
// control substrate's media-plane design: a bounded ordered map from
// sequence number to frame, drained in ascending sequence order.
//
// A Buffer is not safe for concurrent use on its own. It embeds a mutex so
// that a caller can hold a single lock across one insert-then-drain pass
// (one receive tick), matching the consumer policies in the receive/play
// pipeline.
package jitter

import (
	"sort"
	"sync"

	"github.com/thaakir07/voicehub/internal/audio"
)

// Buffer is a per-sender reordering window with capacity W. Insertion past
// capacity evicts the smallest sequence number currently held.
type Buffer struct {
	sync.Mutex

	capacity int
	entries  map[uint32]audio.Frame
	order    []uint32 // sorted ascending; kept in sync with entries
	expected uint32
}

// New creates a jitter buffer with the given capacity (W). W=10 for private
// calls, W=5 for group calls per the media-plane spec.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		entries:  make(map[uint32]audio.Frame, capacity),
	}
}

// ExpectedSeq returns the cursor of the next sequence number this buffer
// expects to deliver.
func (b *Buffer) ExpectedSeq() uint32 {
	return b.expected
}

// Len returns the number of frames currently held.
func (b *Buffer) Len() int {
	return len(b.order)
}

// Insert adds a received frame at seq. If the buffer exceeds capacity as a
// result, the smallest sequence number currently held is evicted. Callers
// must hold the Buffer's lock for the duration of an insert+drain pass.
func (b *Buffer) Insert(seq uint32, f audio.Frame) {
	if _, exists := b.entries[seq]; exists {
		b.entries[seq] = f
		return
	}
	i := sort.Search(len(b.order), func(i int) bool { return b.order[i] >= seq })
	b.order = append(b.order, 0)
	copy(b.order[i+1:], b.order[i:])
	b.order[i] = seq
	b.entries[seq] = f

	if len(b.order) > b.capacity {
		evict := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, evict)
	}
}

// PopExpected removes and returns the frame at ExpectedSeq if present,
// advancing the cursor to seq+1. Returns ok=false if the expected sequence
// has not arrived yet.
func (b *Buffer) PopExpected() (f audio.Frame, ok bool) {
	f, ok = b.entries[b.expected]
	if !ok {
		return audio.Frame{}, false
	}
	b.removeKey(b.expected)
	b.expected++
	return f, true
}

// PopOldest removes and returns the smallest sequence number held,
// advancing ExpectedSeq to seq+1 (the group-call fallback / lossy
// catch-up policy). Returns ok=false if the buffer is empty.
func (b *Buffer) PopOldest() (seq uint32, f audio.Frame, ok bool) {
	if len(b.order) == 0 {
		return 0, audio.Frame{}, false
	}
	seq = b.order[0]
	f = b.entries[seq]
	b.removeKey(seq)
	b.expected = seq + 1
	return seq, f, true
}

// removeKey deletes seq from both the map and the sorted order slice.
// seq is assumed present in both.
func (b *Buffer) removeKey(seq uint32) {
	delete(b.entries, seq)
	i := sort.Search(len(b.order), func(i int) bool { return b.order[i] >= seq })
	if i < len(b.order) && b.order[i] == seq {
		b.order = append(b.order[:i], b.order[i+1:]...)
	}
}
