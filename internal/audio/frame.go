// Package audio defines the canonical PCM frame used by live calls and the
// sample-domain mixing arithmetic used to combine multiple senders into one
// playback frame.
package audio

import "encoding/binary"

const (
	// SampleRate is the call sample rate in Hz.
	SampleRate = 16000
	// Channels is always mono for call audio.
	Channels = 1
	// FrameSamples is the number of int16 samples per 10ms call frame.
	FrameSamples = 160
	// FrameBytes is the wire size of one call frame: 160 samples * 2 bytes.
	FrameBytes = FrameSamples * 2

	// headroom is the scale factor applied during mixing to leave
	// clipping headroom when multiple sources are summed.
	headroom = 0.7
)

// Frame is exactly FrameBytes of signed 16-bit little-endian mono PCM
// representing 10ms of audio at SampleRate. Shorter reads must be discarded
// by the caller — a Frame is never partially populated.
type Frame [FrameBytes]byte

// Silence returns the zero frame.
func Silence() Frame {
	return Frame{}
}

// Samples decodes the frame into signed 16-bit samples.
func (f Frame) Samples() [FrameSamples]int16 {
	var out [FrameSamples]int16
	for i := 0; i < FrameSamples; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(f[i*2 : i*2+2]))
	}
	return out
}

// FrameFromSamples encodes samples into a wire Frame.
func FrameFromSamples(samples [FrameSamples]int16) Frame {
	var f Frame
	for i, s := range samples {
		binary.LittleEndian.PutUint16(f[i*2:i*2+2], uint16(s))
	}
	return f
}

// Mix combines N simultaneous frames into one by per-sample arithmetic mean
// scaled by the headroom factor, saturating to the signed 16-bit range.
// An empty input yields silence.
func Mix(frames []Frame) Frame {
	n := len(frames)
	if n == 0 {
		return Silence()
	}
	var acc [FrameSamples]float64
	for _, fr := range frames {
		s := fr.Samples()
		for i, v := range s {
			acc[i] += float64(v)
		}
	}
	scale := headroom / float64(n)
	var out [FrameSamples]int16
	for i, sum := range acc {
		out[i] = saturate(sum * scale)
	}
	return FrameFromSamples(out)
}

// saturate clamps v to the signed 16-bit range.
func saturate(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
