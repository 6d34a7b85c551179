package jitter

import (
	"testing"

	"github.com/thaakir07/voicehub/internal/audio"
)

func frameTagged(b byte) audio.Frame {
	var f audio.Frame
	f[0] = b
	return f
}

func TestReorderDeliversInSequence(t *testing.T) {
	b := New(10)
	b.Insert(1, frameTagged(1))
	b.Insert(0, frameTagged(0))
	b.Insert(2, frameTagged(2))

	for want := byte(0); want < 3; want++ {
		f, ok := b.PopExpected()
		if !ok {
			t.Fatalf("seq %d: expected present", want)
		}
		if f[0] != want {
			t.Errorf("got frame tag %d, want %d", f[0], want)
		}
	}
	if b.ExpectedSeq() != 3 {
		t.Errorf("expected_seq = %d, want 3", b.ExpectedSeq())
	}
}

func TestCapacityEvictsSmallestKey(t *testing.T) {
	b := New(2)
	b.Insert(5, frameTagged(5))
	b.Insert(6, frameTagged(6))
	b.Insert(7, frameTagged(7)) // evicts 5

	if b.Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Len())
	}
	if _, ok := b.entries[5]; ok {
		t.Errorf("seq 5 should have been evicted")
	}
	if _, ok := b.entries[6]; !ok {
		t.Errorf("seq 6 should remain")
	}
	if _, ok := b.entries[7]; !ok {
		t.Errorf("seq 7 should remain")
	}
}

func TestLossWithTimeoutPopsOldest(t *testing.T) {
	b := New(10)
	// expected_seq=0, buffer holds {1,2}
	b.Insert(1, frameTagged(1))
	b.Insert(2, frameTagged(2))

	seq, f, ok := b.PopOldest()
	if !ok || seq != 1 || f[0] != 1 {
		t.Fatalf("pop oldest: got seq=%d ok=%v, want seq=1", seq, ok)
	}
	if b.ExpectedSeq() != 2 {
		t.Errorf("expected_seq = %d, want 2", b.ExpectedSeq())
	}

	f2, ok := b.PopExpected()
	if !ok || f2[0] != 2 {
		t.Fatalf("pop expected: got ok=%v frame=%v, want seq 2", ok, f2)
	}
}

func TestPopExpectedMissingReturnsFalse(t *testing.T) {
	b := New(10)
	b.Insert(1, frameTagged(1))
	if _, ok := b.PopExpected(); ok {
		t.Errorf("expected no frame at seq 0")
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	b := New(5)
	for i := uint32(0); i < 100; i++ {
		b.Insert(i, frameTagged(byte(i)))
		if b.Len() > 5 {
			t.Fatalf("buffer exceeded capacity: len=%d at i=%d", b.Len(), i)
		}
	}
}

func TestDuplicateInsertDoesNotGrow(t *testing.T) {
	b := New(10)
	b.Insert(3, frameTagged(3))
	b.Insert(3, frameTagged(99))
	if b.Len() != 1 {
		t.Fatalf("len = %d, want 1", b.Len())
	}
}
