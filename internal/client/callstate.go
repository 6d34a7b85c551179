package client

import (
	"sync"
	"time"

	"github.com/thaakir07/voicehub/internal/media"
)

// CallKind identifies which variant of the Call Session tagged union is
// active.
type CallKind int

const (
	CallNone CallKind = iota
	CallPrivate
	CallGroup
	CallGlobal
)

func (k CallKind) String() string {
	switch k {
	case CallPrivate:
		return "private"
	case CallGroup:
		return "group"
	case CallGlobal:
		return "global"
	default:
		return "none"
	}
}

// CallSession is the client-local call descriptor: at most one is ever
// active, and its Kind determines which fields are meaningful.
type CallSession struct {
	Kind CallKind

	Peer       string         // Private only: remote display name
	RemoteAddr string         // Private only
	RemotePort int            // Private only
	Members    map[string]int // Group/Global only: claimed addr -> port
	LocalPort  int

	// Target is the value to echo back in CALL ENDED: the exact string this
	// client named in its own Call directive, if it was the initiator, or a
	// best-effort fallback otherwise (the wire format never discloses the
	// original target to passive participants).
	Target string
}

// lifecycleState is the call state machine's own phase, distinct from
// CallSession.Kind (which only varies while InCall).
type lifecycleState int

const (
	stateIdle lifecycleState = iota
	statePending
	stateInCall
)

// teardownBound is the maximum time CallState.teardown waits for the
// sender/receiver pipelines to stop before releasing their handles anyway.
const teardownBound = 1 * time.Second

// CallState is the client's singleton call state machine (C10, client
// side). It owns the active media pipelines and enforces that at most one
// call is ever InCall at a time.
type CallState struct {
	mu       sync.Mutex
	state    lifecycleState
	session  CallSession
	pending  string // target named in the most recent Call directive
	sender   *media.Sender
	receiver *media.Receiver
}

// NewCallState returns a CallState in Idle.
func NewCallState() *CallState {
	return &CallState{}
}

// Session returns a snapshot of the current call session. Kind is CallNone
// outside of InCall.
func (c *CallState) Session() CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// InCall reports whether the state machine is currently InCall.
func (c *CallState) InCall() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateInCall
}

// StartCall transitions to Pending for target, tearing down any existing
// InCall session first (a new call request while InCall implicitly tears
// down the previous one, per §4.10).
func (c *CallState) StartCall(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateInCall {
		c.teardownLocked()
	}
	c.state = statePending
	c.pending = target
}

// AcceptPrivate transitions Pending -> InCall(Private) once the server's
// CALL ACCEPTED (private) line arrives.
func (c *CallState) AcceptPrivate(peerName, remoteAddr string, remotePort, localPort int, sender *media.Sender, receiver *media.Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.pending
	if target == "" {
		target = peerName
	}
	c.session = CallSession{
		Kind:       CallPrivate,
		Peer:       peerName,
		RemoteAddr: remoteAddr,
		RemotePort: remotePort,
		LocalPort:  localPort,
		Target:     target,
	}
	c.sender = sender
	c.receiver = receiver
	c.state = stateInCall
	c.pending = ""
}

// AcceptGroup transitions Pending -> InCall(Group|Global) once the CALL
// ACCEPTED (global) roster arrives. kind must be CallGroup or CallGlobal.
func (c *CallState) AcceptGroup(kind CallKind, members map[string]int, localPort int, sender *media.Sender, receiver *media.Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.pending
	if target == "" {
		target = "global"
	}
	c.session = CallSession{
		Kind:      kind,
		Members:   members,
		LocalPort: localPort,
		Target:    target,
	}
	c.sender = sender
	c.receiver = receiver
	c.state = stateInCall
	c.pending = ""
}

// Stop is a local hangup: InCall -> Idle with a bounded teardown. Returns
// the session that was torn down so the caller can emit CALL ENDED on the
// wire for the right target.
func (c *CallState) Stop() CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.session
	if c.state == stateInCall {
		c.teardownLocked()
	}
	c.state = stateIdle
	c.pending = ""
	return prev
}

// RemoteEnded handles an inbound CALL ENDED from the peer/server: InCall ->
// Idle, same bounded teardown, no outbound message to send.
func (c *CallState) RemoteEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateInCall {
		c.teardownLocked()
	}
	c.state = stateIdle
	c.pending = ""
}

// teardownLocked signals both pipelines to stop and waits up to
// teardownBound for them to finish before releasing the handles anyway.
// Callers must hold c.mu.
func (c *CallState) teardownLocked() {
	done := make(chan struct{})
	go func() {
		if c.sender != nil {
			c.sender.Stop()
		}
		if c.receiver != nil {
			c.receiver.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(teardownBound):
	}

	c.sender = nil
	c.receiver = nil
	c.session = CallSession{}
}
