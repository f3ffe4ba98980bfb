package session

import (
	"context"
	"time"
)

// Participant is a member of a session roster, host included.
type Participant struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsConnected bool      `json:"isConnected"`
	LastSeen    time.Time `json:"lastSeen"`
	Location    string    `json:"location,omitempty"`
}

// Session is a capacity-bounded room with one host and its participants.
// The JSON names follow the wire format spoken by the browser clients.
type Session struct {
	ID           string        `json:"id"`
	HostID       string        `json:"hostId"`
	Roster       []Participant `json:"players"`
	Capacity     int           `json:"maxPlayers"`
	CreatedAt    time.Time     `json:"createdAt"`
	IsActive     bool          `json:"isActive"`
	IsPublic     bool          `json:"isPublic"`
	CampaignName string        `json:"campaignName"`
	HostName     string        `json:"dmName"`
}

// Clone returns a deep copy that shares no roster storage with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Roster = make([]Participant, len(s.Roster))
	copy(c.Roster, s.Roster)
	return &c
}

// IndexOf returns the roster position of the participant, or -1.
func (s *Session) IndexOf(participantID string) int {
	for i, p := range s.Roster {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}

// IsFull reports whether the roster has reached capacity.
func (s *Session) IsFull() bool {
	return len(s.Roster) >= s.Capacity
}

// Listed reports whether the session belongs in the public directory.
func (s *Session) Listed() bool {
	return s.IsPublic && s.IsActive
}

// Store owns every Session entity. Implementations hand out copies only, so
// callers cannot mutate stored state without going through the store.
type Store interface {
	// Create stores s under s.ID, replacing any existing entry with that id.
	Create(ctx context.Context, s *Session) error

	// Update replaces an existing entry, keeping its listing position.
	Update(ctx context.Context, s *Session) error

	// Get returns a copy of the session or cnst.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes the session. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// ListPublicActive returns copies of listed sessions in creation order.
	ListPublicActive(ctx context.Context) ([]*Session, error)

	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
