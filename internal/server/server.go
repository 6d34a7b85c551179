package server

import (
	"bufio"
	"context"
	"log"
	"net"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/thaakir07/voicehub/internal/protocol"
)

// AuditSink receives operational events for optional persistence. A nil
// sink is valid — events are simply dropped.
type AuditSink interface {
	Record(kind, peerName, detail string)
}

// NameChecker reports whether a display name is blocked from being
// claimed, independent of the in-memory registry's live uniqueness check —
// this is a moderation deny-list that survives a restart. A nil checker
// allows any name.
type NameChecker interface {
	IsNameReserved(name string) (bool, string, error)
}

// Server accepts control connections on a fixed TCP port, runs the
// handshake state machine, and dispatches registered peers' directives.
type Server struct {
	addr        string
	registry    *Registry
	coordinator *Coordinator
	audit       AuditSink
	names       NameChecker

	activeCalls atomic.Int64
}

// NewServer builds a Server bound to addr (e.g. ":1235").
func NewServer(addr string, registry *Registry, coordinator *Coordinator) *Server {
	return &Server{addr: addr, registry: registry, coordinator: coordinator}
}

// SetAuditSink attaches an optional audit sink for connect/disconnect/call
// lifecycle events. Never required for correct operation.
func (s *Server) SetAuditSink(sink AuditSink) {
	s.audit = sink
}

// SetNameChecker attaches an optional reserved-name deny-list consulted
// during the handshake, before a candidate name is registered. Never
// required for correct operation.
func (s *Server) SetNameChecker(nc NameChecker) {
	s.names = nc
}

// ActiveCalls returns the number of calls currently in progress, tracked
// from Call/CallEnded directives. Approximate: a call initiator who drops
// the connection without sending CallEnded leaves the counter incremented
// until the next CallEnded for that target arrives.
func (s *Server) ActiveCalls() int {
	return int(s.activeCalls.Load())
}

// Run listens on s.addr and serves connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	log.Printf("[server] listening on %s", s.addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Printf("[server] accept: %v", err)
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn drives one connection through the handshake state machine and
// then the REGISTERED per-line dispatch loop, per the control protocol's
// connection lifecycle.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	peer, ok := s.handshake(conn, reader)
	if !ok {
		return
	}
	if s.audit != nil {
		s.audit.Record("connect", peer.Name, peer.Addr)
	}

	defer func() {
		s.registry.Unregister(peer.Name)
		if s.audit != nil {
			s.audit.Record("disconnect", peer.Name, "")
		}
	}()

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return // NetworkFatal: control connection dropped
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if !s.dispatch(peer, line) {
			return // /exit or fatal directive
		}
	}
}

// handshake runs the INIT -> READ_NAME -> REGISTERED state machine. It
// returns the registered Peer and true, or false if the connection should
// be abandoned (I/O error before registration completed).
func (s *Server) handshake(conn net.Conn, reader *bufio.Reader) (*Peer, bool) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, false
		}
		name := strings.TrimRight(line, "\r\n")

		if name == "" {
			writeLine(conn, "Username cannot be empty.")
			continue
		}

		if s.names != nil {
			if blocked, _, err := s.names.IsNameReserved(name); err != nil {
				log.Printf("[server] name check %q: %v", name, err)
			} else if blocked {
				writeLine(conn, "Username is reserved.")
				if s.audit != nil {
					s.audit.Record("rejected_name", name, "reserved")
				}
				continue
			}
		}

		if _, taken := s.registry.Get(name); taken {
			writeLine(conn, "Username already taken.")
			continue
		}
		writeLine(conn, "Username accepted.")

		ipLine, err := reader.ReadString('\n')
		if err != nil {
			return nil, false
		}
		candidate := NewPeer(name, strings.TrimRight(ipLine, "\r\n"), conn)
		if !s.registry.Register(candidate) {
			writeLine(conn, "Username already taken.")
			continue
		}
		return candidate, true
	}
}

func writeLine(conn net.Conn, line string) {
	conn.Write([]byte(line + "\n")) //nolint:errcheck // best-effort during handshake
}

// dispatch handles one REGISTERED-state directive from peer. It returns
// false when the connection should close (graceful exit).
func (s *Server) dispatch(peer *Peer, line string) bool {
	d := protocol.ParseClient(line)
	switch d.Kind {
	case protocol.KindExit:
		return false

	case protocol.KindChat:
		s.registry.broadcastRaw(peer.Name + ": " + d.Message)

	case protocol.KindWhisper:
		s.registry.SendTo(d.Target, protocol.FormatWhisperDelivery(peer.Name, d.Message))

	case protocol.KindCreateGroup:
		s.registry.CreateGroup(peer.Name, d.GroupName, d.Members)

	case protocol.KindGroupMsg:
		g, ok := s.registry.Group(d.GroupName)
		if !ok {
			log.Printf("[server] group message for unknown group %q from %s", d.GroupName, peer.Name)
			return true
		}
		line := protocol.FormatGroupDelivery(peer.Name, d.GroupName, d.Message)
		for _, m := range g.Members() {
			s.registry.SendTo(m, line)
		}

	case protocol.KindGetIPs:
		s.handleGetIPs(peer, d.Target)

	case protocol.KindCall:
		s.handleCall(peer, d.Target)
		s.activeCalls.Add(1)
		if s.audit != nil {
			s.audit.Record("call_start", peer.Name, d.Target)
		}

	case protocol.KindCallEnded:
		s.handleCallEnded(peer, d.Target)
		s.activeCalls.Add(-1)
		if s.audit != nil {
			s.audit.Record("call_end", peer.Name, d.Target)
		}

	default:
		log.Printf("[server] unrecognized directive from %s: %q", peer.Name, line)
	}
	return true
}

// handleGetIPs resolves the address-disclosure request for voice-note
// fan-out and replies with a receivedIPs line. The requesting peer's own
// address is always excluded from the result.
func (s *Server) handleGetIPs(peer *Peer, target string) {
	var ips []string
	var scope string

	switch {
	case target == "@Global":
		scope = "Global"
		for _, name := range s.registry.Names() {
			if name == peer.Name {
				continue
			}
			if p, ok := s.registry.Get(name); ok {
				ips = append(ips, p.Addr)
			}
		}
	case strings.HasPrefix(target, "@"):
		groupName := strings.TrimPrefix(target, "@")
		scope = groupName
		if g, ok := s.registry.Group(groupName); ok {
			for _, m := range g.Members() {
				if m == peer.Name {
					continue
				}
				if p, ok := s.registry.Get(m); ok {
					ips = append(ips, p.Addr)
				}
			}
		}
	default:
		scope = target
		if p, ok := s.registry.Get(target); ok && target != peer.Name {
			ips = append(ips, p.Addr)
		}
	}

	peer.Send(protocol.FormatReceivedIPs(ips, scope))
}

// handleCall resolves a Call directive into CALL ACCEPTED messages. target
// may be "global", a group name, or a peer name.
func (s *Server) handleCall(peer *Peer, target string) {
	switch {
	case strings.EqualFold(target, "global"):
		participants := map[string]bool{}
		for _, n := range s.registry.Names() {
			participants[n] = true
		}
		s.sendGroupAccepted(participants)

	default:
		if g, ok := s.registry.Group(target); ok {
			participants := map[string]bool{}
			for _, m := range g.Members() {
				participants[m] = true
			}
			s.sendGroupAccepted(participants)
			return
		}

		targetPeer, ok := s.registry.Get(target)
		if !ok {
			return // no ACK exists for an absent target; see open questions
		}
		initiatorPort, targetPort := s.coordinator.AssignPrivate()
		peer.Send(protocol.FormatCallAcceptedPrivate(targetPeer.Addr, strconv.Itoa(initiatorPort), targetPeer.Name))
		targetPeer.Send(protocol.FormatCallAcceptedPrivate(peer.Addr, strconv.Itoa(targetPort), peer.Name))
	}
}

// sendGroupAccepted assigns ports to every online participant and sends
// the identical CALL ACCEPTED (global) roster to each of them.
func (s *Server) sendGroupAccepted(participants map[string]bool) {
	assignments := s.coordinator.AssignGroup(s.registry, participants)
	var endpoints []string
	for _, a := range assignments {
		endpoints = append(endpoints, a.IP+":"+strconv.Itoa(a.Port))
	}
	line := protocol.FormatCallAcceptedAll(endpoints)
	for _, a := range assignments {
		s.registry.SendTo(a.Name, line)
	}
}

// handleCallEnded relays a teardown to the other participant(s). target is
// a peer name or group name exactly as given on the wire.
func (s *Server) handleCallEnded(peer *Peer, target string) {
	line := protocol.FormatCallEndedServer(peer.Name)
	if g, ok := s.registry.Group(target); ok {
		for _, m := range g.Members() {
			if m == peer.Name {
				continue
			}
			s.registry.SendTo(m, line)
		}
		return
	}
	if strings.EqualFold(target, "global") {
		for _, n := range s.registry.Names() {
			if n == peer.Name {
				continue
			}
			s.registry.SendTo(n, line)
		}
		return
	}
	s.registry.SendTo(target, line)
}

