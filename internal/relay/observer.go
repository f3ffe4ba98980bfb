package relay

import "time"

// Observer receives relay events for metrics collection.
type Observer interface {
	ConnectionOpened(role string)
	ConnectionClosed(role string)
	// ConnectionRebound reports a live connection whose role changed after
	// an in-band create or join.
	ConnectionRebound(from, to string)
	AdmissionRejected(reason string)
	MessageHandled(kind string, since time.Time)
	MessageDropped(reason string)
	Broadcasted(kind string, attempted, delivered int)
	SessionsActive(n int)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened(string)          {}
func (nopObserver) ConnectionClosed(string)          {}
func (nopObserver) ConnectionRebound(string, string) {}
func (nopObserver) AdmissionRejected(string)         {}
func (nopObserver) MessageHandled(string, time.Time) {}
func (nopObserver) MessageDropped(string)            {}
func (nopObserver) Broadcasted(string, int, int)     {}
func (nopObserver) SessionsActive(int)               {}

// Connection roles reported to the Observer
const (
	RoleHost        = "host"
	RoleParticipant = "participant"
	RoleBrowser     = "browser"
)

func roleOf(b Binding) string {
	switch {
	case b.Browsing():
		return RoleBrowser
	case b.IsHost:
		return RoleHost
	default:
		return RoleParticipant
	}
}
