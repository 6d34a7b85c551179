// Package server implements the hub side of the control protocol: the
// session registry (peer directory, groups, broadcast fan-out), the TCP
// accept loop and handshake state machine, and call-setup port allocation.
package server

import (
	"log"
	"net"
	"sync"

	"github.com/thaakir07/voicehub/internal/protocol"
)

// Peer is a connected client identified by a case-sensitive display name
// unique within the server.
type Peer struct {
	Name string
	Addr string // address the peer claimed at handshake

	writeMu sync.Mutex
	conn    net.Conn
}

// NewPeer wraps a live control connection.
func NewPeer(name, addr string, conn net.Conn) *Peer {
	return &Peer{Name: name, Addr: addr, conn: conn}
}

// Send writes one newline-terminated control line to the peer. Safe for
// concurrent use.
func (p *Peer) Send(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.conn.Write([]byte(line + "\n"))
	return err
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Group is a mutable, server-replicated set of display names with a
// distinct case-sensitive name. Membership is ordered by insertion; there
// is no deletion directive, so departure of a member is silent.
type Group struct {
	Name string

	mu      sync.Mutex
	members []string
	index   map[string]bool
}

func newGroup(name string) *Group {
	return &Group{Name: name, index: make(map[string]bool)}
}

// Members returns a snapshot of the membership list in insertion order.
func (g *Group) Members() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

// Has reports whether name is currently a member.
func (g *Group) Has(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index[name]
}

// add appends name to the membership if not already present.
func (g *Group) add(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index[name] {
		return
	}
	g.index[name] = true
	g.members = append(g.members, name)
}

// Registry is the server's directory of connected peers and groups. It is
// the shared registry handle per the design notes' arena-style replacement
// for cyclic server<->handler references: handlers hold a name/key into
// this registry, never a back-pointer to each other.
type Registry struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	order  []string // peer names in insertion (registration) order
	groups map[string]*Group
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		peers:  make(map[string]*Peer),
		groups: make(map[string]*Group),
	}
}

// Register adds p to the directory and broadcasts the updated ONLINE
// directory to every connected peer, including p itself — both the
// membership mutation and the broadcast happen under one lock so that the
// uniqueness invariant and the "ONLINE is observed before any subsequent
// directed message" ordering guarantee both hold. Returns false if the
// name is already taken.
func (r *Registry) Register(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[p.Name]; exists {
		return false
	}
	r.peers[p.Name] = p
	r.order = append(r.order, p.Name)

	r.broadcastLocked(protocol.FormatOnline(append([]string(nil), r.order...)))
	return true
}

// Unregister removes name from the directory and broadcasts its departure
// to the remaining peers, atomically with respect to other registry
// mutations.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[name]; !exists {
		return
	}
	delete(r.peers, name)
	r.order = removeName(r.order, name)
	r.broadcastLocked(protocol.FormatLeaving(name))
}

// broadcastLocked sends line to every currently-registered peer. Callers
// must hold r.mu.
func (r *Registry) broadcastLocked(line string) {
	for _, name := range r.order {
		if err := r.peers[name].Send(line); err != nil {
			log.Printf("[registry] send to %s: %v", name, err)
		}
	}
}

// broadcastRaw sends line to every currently-connected peer (global chat
// relay). Unlike Register/Unregister's broadcasts, this doesn't mutate
// registry state, so a read lock suffices.
func (r *Registry) broadcastRaw(line string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if err := r.peers[name].Send(line); err != nil {
			log.Printf("[registry] send to %s: %v", name, err)
		}
	}
}

// Get returns the peer with the given name, if connected.
func (r *Registry) Get(name string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[name]
	return p, ok
}

// Names returns the current directory in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of connected peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SendTo delivers line to a single named peer. No-op if the peer is not
// connected.
func (r *Registry) SendTo(name, line string) {
	r.mu.RLock()
	p, ok := r.peers[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if err := p.Send(line); err != nil {
		log.Printf("[registry] send to %s: %v", name, err)
	}
}

// CreateGroup creates a group named name with creator as its first member
// followed by members in order, deduplicated. The group is replicated by
// sending a Join Group line to every member currently connected. A
// zero-member CSV still produces a group containing only the creator.
func (r *Registry) CreateGroup(creator, name string, members []string) *Group {
	r.mu.Lock()
	g, exists := r.groups[name]
	if !exists {
		g = newGroup(name)
		r.groups[name] = g
	}
	r.mu.Unlock()

	g.add(creator)
	for _, m := range members {
		g.add(m)
	}

	line := protocol.FormatJoinGroup(name, g.Members())
	for _, m := range g.Members() {
		r.SendTo(m, line)
	}
	return g
}

// Group returns the named group, if it exists.
func (r *Registry) Group(name string) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[name]
	return g, ok
}

// GroupCount returns the number of groups ever created.
func (r *Registry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}

// removeName returns names with the first occurrence of target removed,
// preserving order.
func removeName(names []string, target string) []string {
	for i, n := range names {
		if n == target {
			return append(names[:i], names[i+1:]...)
		}
	}
	return names
}
