package voicenote

import "testing"

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768, 42}
	encoded, err := EncodeWAV(samples)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) == 0 {
		t.Fatal("encoded WAV is empty")
	}

	decoded, err := DecodeWAV(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(decoded), len(samples))
	}
	for i, s := range samples {
		if decoded[i] != s {
			t.Errorf("sample %d = %d, want %d", i, decoded[i], s)
		}
	}
}
