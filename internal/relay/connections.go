package relay

import (
	"sync"
)

// Transport is the send side of one duplex connection.
type Transport interface {
	// Send queues one frame. It must not block on peer I/O.
	Send(frame []byte) error
	// IsOpen reports whether frames can still be delivered.
	IsOpen() bool
	// Close terminates the connection with a close code and reason.
	// Closing twice is a no-op.
	Close(code int, reason string) error
}

// Binding correlates one live connection with the session identity it
// claimed. An empty SessionID means the connection is browsing.
type Binding struct {
	ConnID          string
	SessionID       string
	ParticipantID   string
	ParticipantName string
	IsHost          bool
	Transport       Transport
}

// Browsing reports whether the connection is not bound to any session.
func (b Binding) Browsing() bool {
	return b.SessionID == ""
}

// ConnRegistry maps connection ids to bindings. Bindings are stored and
// returned by value.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[string]Binding
}

// NewConnRegistry creates an empty registry
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[string]Binding)}
}

// Register stores b under b.ConnID, replacing any previous binding.
func (r *ConnRegistry) Register(b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[b.ConnID] = b
}

// Get returns the binding of a connection.
func (r *ConnRegistry) Get(connID string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.conns[connID]
	return b, ok
}

// Remove deletes and returns the binding of a connection.
func (r *ConnRegistry) Remove(connID string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return b, ok
}

// Rebind points a connection at a session membership and returns the binding
// it replaced. The result is false when the connection is not registered.
func (r *ConnRegistry) Rebind(connID, sessionID, participantID, participantName string, isHost bool) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.conns[connID]
	if !ok {
		return Binding{}, false
	}
	b := prev
	b.SessionID = sessionID
	b.ParticipantID = participantID
	b.ParticipantName = participantName
	b.IsHost = isHost
	r.conns[connID] = b
	return prev, true
}

// Snapshot returns a copy of every binding.
func (r *ConnRegistry) Snapshot() []Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Binding, 0, len(r.conns))
	for _, b := range r.conns {
		out = append(out, b)
	}
	return out
}

// ForEach visits a snapshot of the registry, so visitors may register or
// remove connections. Returning false stops the iteration.
func (r *ConnRegistry) ForEach(visit func(Binding) bool) {
	for _, b := range r.Snapshot() {
		if !visit(b) {
			return
		}
	}
}

// Count returns the number of registered connections.
func (r *ConnRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
