package media

import (
	"encoding/binary"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/thaakir07/voicehub/internal/audio"
	"github.com/thaakir07/voicehub/internal/audio/jitter"
)

const (
	// privateWindow and groupWindow are the jitter buffer capacities (W) for
	// the private and group/global consumer policies, respectively.
	privateWindow = 10
	groupWindow   = 5

	recvTimeout = 10 * time.Millisecond
)

// Receiver drives the receive-to-play pipeline (C4): it owns a single UDP
// socket bound to the call's local port, reorders inbound frames through
// one or more jitter buffers, and writes the result to a playback sink on
// every tick.
type Receiver struct {
	conn      *net.UDPConn
	sink      PlaybackSink
	isPrivate bool

	private *jitter.Buffer           // private calls only
	groups  map[string]*jitter.Buffer // group/global calls, keyed by source addr

	stopped atomic.Bool
}

// NewReceiver binds a UDP socket on localPort and returns a Receiver ready
// to run. isPrivate selects the single-buffer vs per-sender-buffer policy.
func NewReceiver(localPort int, sink PlaybackSink, isPrivate bool) (*Receiver, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, err
	}
	r := &Receiver{conn: conn, sink: sink, isPrivate: isPrivate}
	if isPrivate {
		r.private = jitter.New(privateWindow)
	} else {
		r.groups = make(map[string]*jitter.Buffer)
	}
	return r, nil
}

// Run drives the receive loop until Stop is called.
func (r *Receiver) Run() {
	buf := make([]byte, 4+audio.FrameBytes)
	for !r.stopped.Load() {
		r.conn.SetReadDeadline(time.Now().Add(recvTimeout)) //nolint:errcheck
		n, addr, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if r.stopped.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				r.tick(nil)
				continue
			}
			log.Printf("[media] receive: %v", err)
			r.rebind()
			continue
		}
		seq, frame := parseDatagram(buf[:n])
		r.tick(&inbound{addr: addr.String(), seq: seq, frame: frame})
	}
}

type inbound struct {
	addr  string
	seq   uint32
	frame audio.Frame
}

// parseDatagram extracts the sequence number and frame payload. A payload
// longer than the canonical frame size is assumed to carry a 4-byte
// big-endian sequence prefix; shorter payloads are treated as raw with
// seq 0 (short reads are zero-padded into the frame).
func parseDatagram(data []byte) (uint32, audio.Frame) {
	var f audio.Frame
	if len(data) > audio.FrameBytes {
		seq := binary.BigEndian.Uint32(data[:4])
		copy(f[:], data[4:])
		return seq, f
	}
	copy(f[:], data)
	return 0, f
}

// tick processes one receive cycle: insert in (if present), then apply the
// appropriate consumer policy and write to the playback sink. The group
// policy writes exactly one mixed frame (or silence) per tick; the private
// policy writes every in-order frame now available after an insert (possibly
// none), and one frame (or silence) on a timeout.
func (r *Receiver) tick(in *inbound) {
	if r.isPrivate {
		r.tickPrivate(in)
		return
	}
	r.tickGroup(in)
}

func (r *Receiver) tickPrivate(in *inbound) {
	r.private.Lock()
	defer r.private.Unlock()

	if in != nil {
		r.private.Insert(in.seq, in.frame)
		for {
			f, ok := r.private.PopExpected()
			if !ok {
				break
			}
			r.writeOrLog(f)
		}
		return
	}

	// Receive timeout.
	if r.private.Len() == 0 {
		r.writeSilenceOrLog(80)
		return
	}
	_, f, ok := r.private.PopOldest()
	if ok {
		r.writeOrLog(f)
	}
}

func (r *Receiver) tickGroup(in *inbound) {
	if in != nil {
		b := r.bufferFor(in.addr)
		b.Lock()
		b.Insert(in.seq, in.frame)
		b.Unlock()
	}

	var frames []audio.Frame
	for _, b := range r.groups {
		b.Lock()
		f, ok := b.PopExpected()
		if !ok {
			_, f, ok = b.PopOldest()
		}
		b.Unlock()
		if ok {
			frames = append(frames, f)
		}
	}

	if len(frames) == 0 {
		r.writeSilenceOrLog(audio.FrameBytes)
		return
	}
	r.writeOrLog(audio.Mix(frames))
}

// bufferFor returns the per-sender jitter buffer for addr, creating it with
// groupWindow capacity on first use.
func (r *Receiver) bufferFor(addr string) *jitter.Buffer {
	b, ok := r.groups[addr]
	if !ok {
		b = jitter.New(groupWindow)
		r.groups[addr] = b
	}
	return b
}

func (r *Receiver) writeOrLog(f audio.Frame) {
	if err := r.sink.Write(f); err != nil {
		log.Printf("[media] playback write: %v", err)
	}
}

func (r *Receiver) writeSilenceOrLog(n int) {
	if err := r.sink.WriteSilence(n); err != nil {
		log.Printf("[media] playback silence: %v", err)
	}
}

// rebind closes and reopens the receive socket after a non-timeout error,
// per §4.4's UDP error recovery.
func (r *Receiver) rebind() {
	addr, ok := r.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return
	}
	fresh, err := net.ListenUDP("udp", addr)
	if err != nil {
		log.Printf("[media] rebind receive socket: %v", err)
		return
	}
	r.conn.Close() //nolint:errcheck
	r.conn = fresh
}

// Stop drains and closes the playback sink, closes the socket, and releases
// the receive loop.
func (r *Receiver) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	r.conn.Close()  //nolint:errcheck
	r.sink.Close() //nolint:errcheck
}
