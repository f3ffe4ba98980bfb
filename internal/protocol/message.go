package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amoylab/grimrelay/internal/session"

	"github.com/tidwall/gjson"
)

// Kind is the value of the envelope "type" field.
type Kind string

const (
	KindSessionCreate  Kind = "session_create"
	KindSessionJoin    Kind = "session_join"
	KindSessionList    Kind = "session_list"
	KindStateUpdate    Kind = "state_update"
	KindChatMessage    Kind = "chat_message"
	KindPing           Kind = "ping"
	KindPong           Kind = "pong"
	KindSessionCreated Kind = "session_created"
	KindPlayerJoin     Kind = "player_join"
	KindPlayerLeave    Kind = "player_leave"
)

// PublicDirectory is the session id stamped on directory replies.
const PublicDirectory = "public"

var (
	// ErrMalformed is returned for frames that are not a JSON object
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownKind is returned for frames with an unrecognized type
	ErrUnknownKind = errors.New("unknown message kind")
)

// Envelope is the JSON object carried by every frame in both directions.
type Envelope struct {
	Type      Kind      `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	PlayerID  string    `json:"playerId,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	Error     string    `json:"error,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Inbound is one decoded client frame. The concrete types below are the only
// implementations.
type Inbound interface {
	Kind() Kind
}

// Descriptor carries the session settings of an in-band create request.
type Descriptor struct {
	Name     string
	Capacity int // zero means the configured default
	IsPublic bool
	HostName string
}

type (
	SessionCreate struct {
		SessionID  string
		HostID     string
		Descriptor Descriptor
	}

	SessionJoin struct {
		SessionID  string
		PlayerID   string
		PlayerName string
	}

	SessionList struct{}

	// StateUpdate is relayed verbatim; Raw holds the original frame.
	StateUpdate struct {
		SessionID string
		Raw       []byte
	}

	// ChatMessage is relayed verbatim; Raw holds the original frame.
	ChatMessage struct {
		SessionID string
		Raw       []byte
	}

	Ping struct{}
)

func (*SessionCreate) Kind() Kind { return KindSessionCreate }
func (*SessionJoin) Kind() Kind   { return KindSessionJoin }
func (*SessionList) Kind() Kind   { return KindSessionList }
func (*StateUpdate) Kind() Kind   { return KindStateUpdate }
func (*ChatMessage) Kind() Kind   { return KindChatMessage }
func (*Ping) Kind() Kind          { return KindPing }

// PeekKind returns the "type" field of a frame without decoding the rest.
func PeekKind(raw []byte) string {
	return gjson.GetBytes(raw, "type").String()
}

// Decode turns a client frame into its variant. Only the fields the relay
// inspects are read; payloads of relayed kinds stay opaque.
func Decode(raw []byte) (Inbound, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	msg := gjson.ParseBytes(raw)
	if !msg.IsObject() {
		return nil, ErrMalformed
	}

	sessionID := msg.Get("sessionId").String()
	playerID := msg.Get("playerId").String()
	data := msg.Get("data")

	switch kind := Kind(msg.Get("type").String()); kind {
	case KindSessionCreate:
		return &SessionCreate{
			SessionID: sessionID,
			HostID:    playerID,
			Descriptor: Descriptor{
				Name:     data.Get("sessionName").String(),
				Capacity: int(data.Get("maxPlayers").Int()),
				IsPublic: data.Get("isPublic").Bool(),
				HostName: data.Get("dmName").String(),
			},
		}, nil
	case KindSessionJoin:
		return &SessionJoin{
			SessionID:  sessionID,
			PlayerID:   playerID,
			PlayerName: data.Get("playerName").String(),
		}, nil
	case KindSessionList:
		return &SessionList{}, nil
	case KindStateUpdate:
		return &StateUpdate{SessionID: sessionID, Raw: raw}, nil
	case KindChatMessage:
		return &ChatMessage{SessionID: sessionID, Raw: raw}, nil
	case KindPing:
		return &Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SessionData is the payload of session_created.
type SessionData struct {
	Message string           `json:"message,omitempty"`
	Session *session.Session `json:"session"`
}

// PlayerData is the payload of player_join and player_leave.
type PlayerData struct {
	Player  *session.Participant `json:"player,omitempty"`
	Session *session.Session     `json:"session"`
}

// DirectoryData is the payload of a session_list reply and of the
// directory endpoint.
type DirectoryData struct {
	Sessions []*session.Session `json:"sessions"`
}

// NewDirectory wraps sessions, never encoding a null list.
func NewDirectory(sessions []*session.Session) DirectoryData {
	if sessions == nil {
		sessions = []*session.Session{}
	}
	return DirectoryData{Sessions: sessions}
}

// Encode marshals an envelope into one frame.
func Encode(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", env.Type, err)
	}
	return data, nil
}

func success(ok bool) *bool { return &ok }

// SessionCreated confirms a created or re-hosted session to its host.
// message is omitted when empty.
func SessionCreated(s *session.Session, message string, now time.Time) ([]byte, error) {
	return Encode(&Envelope{
		Type:      KindSessionCreated,
		SessionID: s.ID,
		Success:   success(true),
		Data:      SessionData{Message: message, Session: s},
		Timestamp: now,
	})
}

// JoinFailed answers a session_join that could not be honored.
func JoinFailed(sessionID, reason string, now time.Time) ([]byte, error) {
	return Encode(&Envelope{
		Type:      KindSessionJoin,
		SessionID: sessionID,
		Success:   success(false),
		Error:     reason,
		Timestamp: now,
	})
}

// PlayerJoin announces a participant that joined s.
func PlayerJoin(s *session.Session, player session.Participant, now time.Time) ([]byte, error) {
	return Encode(&Envelope{
		Type:      KindPlayerJoin,
		SessionID: s.ID,
		PlayerID:  player.ID,
		Data:      PlayerData{Player: &player, Session: s},
		Timestamp: now,
	})
}

// PlayerLeave announces a participant that left s.
func PlayerLeave(s *session.Session, playerID string, now time.Time) ([]byte, error) {
	return Encode(&Envelope{
		Type:      KindPlayerLeave,
		SessionID: s.ID,
		PlayerID:  playerID,
		Data:      PlayerData{Session: s},
		Timestamp: now,
	})
}

// Directory answers a session_list request.
func Directory(sessions []*session.Session, now time.Time) ([]byte, error) {
	return Encode(&Envelope{
		Type:      KindSessionList,
		SessionID: PublicDirectory,
		Data:      NewDirectory(sessions),
		Timestamp: now,
	})
}

// Pong answers a ping.
func Pong(now time.Time) ([]byte, error) {
	return Encode(&Envelope{Type: KindPong, Timestamp: now})
}
