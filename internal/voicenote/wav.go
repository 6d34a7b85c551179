package voicenote

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate and BitDepth are the fixed PCM parameters voice notes are
// encoded at, per the data model (8 kHz mono, distinct from the 16 kHz
// call-frame rate).
const (
	SampleRate = 8000
	BitDepth   = 16
	NumChans   = 1
)

// memWriteSeeker is a minimal in-memory io.WriteSeeker, since go-audio's WAV
// encoder rewrites the RIFF/fact chunk sizes at Close and therefore needs
// random-access writes.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = m.pos + int(offset)
	case io.SeekEnd:
		newPos = len(m.buf) + int(offset)
	default:
		return 0, fmt.Errorf("voicenote: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("voicenote: negative seek position")
	}
	m.pos = newPos
	return int64(newPos), nil
}

// EncodeWAV wraps mono 16-bit PCM samples in a canonical WAV container.
func EncodeWAV(samples []int16) ([]byte, error) {
	buf := &memWriteSeeker{}
	enc := wav.NewEncoder(buf, SampleRate, BitDepth, NumChans, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = int(s)
	}
	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: NumChans, SampleRate: SampleRate},
		Data:           ints,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(intBuf); err != nil {
		return nil, fmt.Errorf("voicenote: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("voicenote: close wav encoder: %w", err)
	}
	return buf.buf, nil
}

// DecodeWAV reads mono 16-bit PCM samples back out of a WAV container.
func DecodeWAV(data []byte) ([]int16, error) {
	dec := wav.NewDecoder(&readSeeker{data: data})
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("voicenote: decode wav: %w", err)
	}
	samples := make([]int16, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = int16(v)
	}
	return samples, nil
}

// readSeeker is a minimal in-memory io.ReadSeeker over a byte slice, since
// go-audio's WAV decoder needs to seek back to re-read chunk headers.
type readSeeker struct {
	data []byte
	pos  int
}

func (r *readSeeker) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *readSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int
	switch whence {
	case io.SeekStart:
		newPos = int(offset)
	case io.SeekCurrent:
		newPos = r.pos + int(offset)
	case io.SeekEnd:
		newPos = len(r.data) + int(offset)
	default:
		return 0, fmt.Errorf("voicenote: invalid whence %d", whence)
	}
	r.pos = newPos
	return int64(newPos), nil
}
