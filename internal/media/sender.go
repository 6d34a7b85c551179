package media

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/thaakir07/voicehub/internal/audio"
)

// destination is one fan-out target: a peer's claimed host and the
// call-local port it bound, plus the resolved address used to send.
type destination struct {
	host string
	port int
	addr *net.UDPAddr
}

// Sender drives the capture-to-send pipeline (C3): it reads canonical
// frames from a capture line, prepends a sequence number, and fans each
// frame out to every call destination over a single bind-free UDP socket.
type Sender struct {
	capture      CaptureSource
	conn         *net.UDPConn
	destinations map[string]*destination
	isPrivate    bool
	seq          uint32
	stopped      atomic.Bool
}

// NewSender opens a fresh send socket and builds a Sender targeting dests,
// a map from peer claimed-address to the call-local port that peer bound.
// isPrivate is stored on the Sender but does not change how it sends — the
// destination count already determines fan-out (one for private, all others
// for group/global).
func NewSender(capture CaptureSource, dests map[string]int, isPrivate bool) (*Sender, error) {
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, err
	}
	s := &Sender{
		capture:      capture,
		conn:         conn,
		destinations: make(map[string]*destination, len(dests)),
		isPrivate:    isPrivate,
	}
	for host, port := range dests {
		addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			log.Printf("[media] resolve destination %s:%d: %v", host, port, err)
			continue
		}
		s.destinations[host] = &destination{host: host, port: port, addr: addr}
	}
	return s, nil
}

// Run drives the capture loop until Stop is called. Capture read errors are
// logged and the loop keeps reading; reads shorter than one full frame are
// skipped.
func (s *Sender) Run() {
	buf := make([]byte, audio.FrameBytes)
	for !s.stopped.Load() {
		n, err := s.capture.Read(buf)
		if err != nil {
			if s.stopped.Load() {
				return
			}
			log.Printf("[media] capture read: %v", err)
			continue
		}
		if n < audio.FrameBytes {
			continue
		}

		packet := make([]byte, 4+n)
		binary.BigEndian.PutUint32(packet[:4], s.seq)
		copy(packet[4:], buf[:n])
		s.seq++

		s.fanOut(packet)
	}
}

// fanOut writes packet to every destination, re-resolving any destination
// whose send fails and rebinding the socket if every destination failed
// (indicating the socket itself, not a single peer, has gone bad).
func (s *Sender) fanOut(packet []byte) {
	if len(s.destinations) == 0 {
		return
	}
	anyOK := false
	for host, dest := range s.destinations {
		if _, err := s.conn.WriteToUDP(packet, dest.addr); err != nil {
			log.Printf("[media] send to %s: %v", host, err)
			if addr, rerr := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", dest.host, dest.port)); rerr == nil {
				dest.addr = addr
			}
			continue
		}
		anyOK = true
	}
	if !anyOK {
		s.rebind()
	}
}

// rebind closes and reopens the send socket after a round where every
// destination failed, per §4.3's socket-failure recovery.
func (s *Sender) rebind() {
	fresh, err := net.ListenUDP("udp", nil)
	if err != nil {
		log.Printf("[media] rebind send socket: %v", err)
		return
	}
	s.conn.Close() //nolint:errcheck
	s.conn = fresh
}

// Stop halts the capture loop and releases the capture line and socket.
func (s *Sender) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.capture.Close() //nolint:errcheck
	s.conn.Close()     //nolint:errcheck
}
