package cnst

import "errors"

var (
	// ErrSessionNotFound is returned when no session is registered under an id
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionHasNoHost is returned when a session exists but nobody hosts it
	ErrSessionHasNoHost = errors.New("session has no host")
	// ErrSessionFull is returned when the roster already holds capacity members
	ErrSessionFull = errors.New("session is full")
	// ErrEmptyRoster is returned when storing a session without members
	ErrEmptyRoster = errors.New("session roster is empty")
	// ErrConnectionClosed is returned when sending on a closed transport
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendQueueFull is returned when a transport cannot accept more frames
	ErrSendQueueFull = errors.New("send queue full")
	// ErrUnknownStoreType is returned for an unsupported session store type
	ErrUnknownStoreType = errors.New("unknown session store type")
)

// Close reasons sent with a policy-violation close frame
const (
	ReasonSessionNotFound  = "Session does not exist"
	ReasonSessionHasNoHost = "Session has no DM"
	ReasonSessionFull      = "Session is full"
	ReasonServerShutdown   = "Server shutting down"
)

// In-band failure texts carried in reply envelopes
const (
	ReplySessionNotFound = "Session not found"
	ReplySessionFull     = "Session is full"
)

// CloseReason maps an admission error to the human-readable close reason.
// ok is false when err is not an admission error.
func CloseReason(err error) (reason string, ok bool) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return ReasonSessionNotFound, true
	case errors.Is(err, ErrSessionHasNoHost):
		return ReasonSessionHasNoHost, true
	case errors.Is(err, ErrSessionFull):
		return ReasonSessionFull, true
	default:
		return "", false
	}
}
