// Package media implements the capture-to-send and receive-to-play audio
// pipelines that drive one active call: the part of the client that moves
// raw PCM between the local sound card and the UDP media plane.
package media

import (
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/thaakir07/voicehub/internal/audio"
	"github.com/thaakir07/voicehub/internal/voicenote"
)

// CaptureSource reads one canonical frame's worth of samples from the local
// microphone line. Read must block until a full frame is available or
// return an error; a short read (fewer than audio.FrameBytes bytes) is
// reported via n so the caller can skip the iteration per §4.3.
type CaptureSource interface {
	Read(buf []byte) (n int, err error)
	Close() error
}

// PlaybackSink writes one canonical frame's worth of samples to the local
// speaker line.
type PlaybackSink interface {
	Write(frame audio.Frame) error
	WriteSilence(nBytes int) error
	Close() error
}

// Device describes an available audio device, mirroring the shape surfaced
// by the control engine's device-listing directives.
type Device struct {
	ID   int
	Name string
}

// ListCaptureDevices returns available audio input devices.
func ListCaptureDevices() ([]Device, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
}

// ListPlaybackDevices returns available audio output devices.
func ListPlaybackDevices() ([]Device, error) {
	return listDevices(func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
}

func listDevices(match func(*portaudio.DeviceInfo) bool) ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var out []Device
	for i, d := range devices {
		if match(d) {
			out = append(out, Device{ID: i, Name: d.Name})
		}
	}
	return out, nil
}

// portaudioCapture adapts a mono int16 portaudio.Stream to CaptureSource.
type portaudioCapture struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenCapture opens the capture line at the canonical sample rate. deviceID
// < 0 selects the system default input device.
func OpenCapture(deviceID int) (CaptureSource, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, err
	}

	buf := make([]int16, audio.FrameSamples)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: audio.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      audio.SampleRate,
		FramesPerBuffer: audio.FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &portaudioCapture{stream: stream, buf: buf}, nil
}

func (c *portaudioCapture) Read(dst []byte) (int, error) {
	if err := c.stream.Read(); err != nil {
		return 0, err
	}
	var samples [audio.FrameSamples]int16
	copy(samples[:], c.buf)
	f := audio.FrameFromSamples(samples)
	return copy(dst, f[:]), nil
}

func (c *portaudioCapture) Close() error {
	c.stream.Stop() //nolint:errcheck // best-effort during teardown
	return c.stream.Close()
}

// portaudioPlayback adapts a mono int16 portaudio.Stream to PlaybackSink.
type portaudioPlayback struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenPlayback opens the playback line at the canonical sample rate.
// deviceID < 0 selects the system default output device.
func OpenPlayback(deviceID int) (PlaybackSink, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		return nil, err
	}

	buf := make([]int16, audio.FrameSamples)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: audio.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      audio.SampleRate,
		FramesPerBuffer: audio.FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	return &portaudioPlayback{stream: stream, buf: buf}, nil
}

func (p *portaudioPlayback) Write(f audio.Frame) error {
	samples := f.Samples()
	copy(p.buf, samples[:])
	return p.stream.Write()
}

func (p *portaudioPlayback) WriteSilence(nBytes int) error {
	for i := range p.buf {
		p.buf[i] = 0
	}
	return p.stream.Write()
}

func (p *portaudioPlayback) Close() error {
	p.stream.Stop() //nolint:errcheck // best-effort during teardown
	return p.stream.Close()
}

func resolveDevice(devices []*portaudio.DeviceInfo, idx int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return fallback()
}

// recorderFrameSamples is the portaudio buffer size used while recording a
// voice note, chosen independent of the call-frame size since the capture
// rate itself differs (voicenote.SampleRate vs audio.SampleRate).
const recorderFrameSamples = 160

// Recorder captures microphone audio at the voice-note sample rate
// (distinct from the call rate) into an in-memory int16 buffer, for later
// encoding via voicenote.EncodeWAV.
type Recorder struct {
	stream *portaudio.Stream
	buf    []int16

	done chan struct{}

	mu      sync.Mutex
	samples []int16
}

// OpenRecorder opens the capture line at the voice-note sample rate and
// starts accumulating samples on a background goroutine. deviceID < 0
// selects the system default input device. Call Stop to end capture and
// Samples to retrieve the result.
func OpenRecorder(deviceID int) (*Recorder, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, err
	}

	buf := make([]int16, recorderFrameSamples)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: audio.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      voicenote.SampleRate,
		FramesPerBuffer: recorderFrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}

	r := &Recorder{stream: stream, buf: buf, done: make(chan struct{})}
	go r.run()
	return r, nil
}

// run pulls frames off the stream until Stop closes r.done, accumulating
// every sample read.
func (r *Recorder) run() {
	for {
		select {
		case <-r.done:
			return
		default:
		}
		if err := r.stream.Read(); err != nil {
			return
		}
		chunk := make([]int16, len(r.buf))
		copy(chunk, r.buf)
		r.mu.Lock()
		r.samples = append(r.samples, chunk...)
		r.mu.Unlock()
	}
}

// Stop halts capture. Samples recorded up to this point remain available
// via Samples.
func (r *Recorder) Stop() error {
	close(r.done)
	return r.stream.Stop()
}

// Samples returns a copy of every sample captured since OpenRecorder.
func (r *Recorder) Samples() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int16, len(r.samples))
	copy(out, r.samples)
	return out
}

// Close releases the underlying portaudio stream. Safe to call after Stop.
func (r *Recorder) Close() error {
	return r.stream.Close()
}

// PlaySamples opens the playback line at the voice-note sample rate,
// writes samples synchronously to completion, then closes the stream.
// deviceID < 0 selects the system default output device. Used for local
// auxiliary playback of a staged or received voice note, as distinct from
// the call-rate PlaybackSink used during an active call.
func PlaySamples(deviceID int, samples []int16) error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultOutputDevice)
	if err != nil {
		return err
	}

	buf := make([]int16, recorderFrameSamples)
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: audio.Channels,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      voicenote.SampleRate,
		FramesPerBuffer: recorderFrameSamples,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop() //nolint:errcheck // best-effort during teardown

	for i := 0; i < len(samples); i += len(buf) {
		n := copy(buf, samples[i:])
		for j := n; j < len(buf); j++ {
			buf[j] = 0
		}
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}
