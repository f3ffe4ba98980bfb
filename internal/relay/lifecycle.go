package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/protocol"
	"github.com/amoylab/grimrelay/internal/session"

	"go.uber.org/zap"
)

const (
	defaultCampaignName = "Campaign"
	hostCreatedMessage  = "Session created successfully"
)

// Lifecycle owns every mutation of the session registry. A single mutex
// serializes read-modify-write cycles on the store; frames are sent after the
// lock is released.
type Lifecycle struct {
	logger   *zap.Logger
	mu       sync.Mutex
	store    session.Store
	relay    *Broadcaster
	location LocationPicker
	now      func() time.Time
	capacity int
}

// JoinResult describes the outcome of a successful JoinSession.
type JoinResult struct {
	Session   *session.Session
	Player    session.Participant
	Broadcast BroadcastResult
}

// LeaveResult describes the outcome of LeaveSession.
type LeaveResult struct {
	Removed   bool
	Deleted   bool
	Broadcast BroadcastResult
}

func (l *Lifecycle) participant(id, name string) session.Participant {
	return session.Participant{
		ID:          id,
		Name:        name,
		IsConnected: true,
		LastSeen:    l.now(),
		Location:    l.location(),
	}
}

// EstablishAsHost makes participantID the host of sessionID, creating the
// session when absent. An existing roster is replaced by the host alone.
// The confirmation goes to connID only.
func (l *Lifecycle) EstablishAsHost(ctx context.Context, connID, sessionID, participantID, participantName string) (*session.Session, error) {
	l.mu.Lock()
	host := l.participant(participantID, participantName)
	sess, err := l.store.Get(ctx, sessionID)
	switch {
	case errors.Is(err, cnst.ErrSessionNotFound):
		sess = &session.Session{
			ID:           sessionID,
			HostID:       participantID,
			Roster:       []session.Participant{host},
			Capacity:     l.capacity,
			CreatedAt:    l.now(),
			IsActive:     true,
			IsPublic:     true,
			CampaignName: defaultCampaignName,
			HostName:     participantName,
		}
		err = l.store.Create(ctx, sess)
	case err == nil:
		if len(sess.Roster) > 0 {
			l.logger.Info("host reclaimed session, roster reset",
				zap.String("session_id", sessionID),
				zap.Int("dropped", len(sess.Roster)))
		}
		sess.Roster = []session.Participant{host}
		sess.HostID = participantID
		sess.HostName = participantName
		err = l.store.Update(ctx, sess)
	}
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("establish host %s in %s: %w", participantID, sessionID, err)
	}

	l.logger.Info("host established",
		zap.String("session_id", sessionID),
		zap.String("player_id", participantID))
	l.reply(connID, sessionID, func() ([]byte, error) {
		return protocol.SessionCreated(sess, hostCreatedMessage, l.now())
	})
	return sess, nil
}

// AdmitParticipant appends a participant that connected with session
// parameters. It is silent: nothing is sent on success.
func (l *Lifecycle) AdmitParticipant(ctx context.Context, sessionID, participantID, participantName string) (*session.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("admit %s to %s: %w", participantID, sessionID, err)
	}
	if sess.HostID == "" || len(sess.Roster) == 0 {
		return nil, fmt.Errorf("admit %s to %s: %w", participantID, sessionID, cnst.ErrSessionHasNoHost)
	}
	if sess.IsFull() {
		return nil, fmt.Errorf("admit %s to %s: %w", participantID, sessionID, cnst.ErrSessionFull)
	}

	sess.Roster = append(sess.Roster, l.participant(participantID, participantName))
	if err := l.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("admit %s to %s: %w", participantID, sessionID, err)
	}
	l.logger.Info("participant admitted",
		zap.String("session_id", sessionID),
		zap.String("player_id", participantID),
		zap.Int("roster", len(sess.Roster)))
	return sess, nil
}

// CreateSession creates or overwrites sessionID from an in-band request and
// replies to connID with the new session.
func (l *Lifecycle) CreateSession(ctx context.Context, connID, sessionID, hostID string, desc protocol.Descriptor) (*session.Session, error) {
	capacity := desc.Capacity
	if capacity <= 0 {
		capacity = l.capacity
	}

	sess := &session.Session{
		ID:           sessionID,
		HostID:       hostID,
		Roster:       []session.Participant{l.participant(hostID, desc.HostName)},
		Capacity:     capacity,
		CreatedAt:    l.now(),
		IsActive:     true,
		IsPublic:     desc.IsPublic,
		CampaignName: desc.Name,
		HostName:     desc.HostName,
	}

	l.mu.Lock()
	err := l.store.Create(ctx, sess)
	l.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	l.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("host_id", hostID),
		zap.Int("capacity", capacity),
		zap.Bool("public", desc.IsPublic))
	l.reply(connID, sessionID, func() ([]byte, error) {
		return protocol.SessionCreated(sess, "", l.now())
	})
	return sess, nil
}

// JoinSession adds a participant from an in-band request. Failures are
// answered to connID; on success player_join goes to connID directly and to
// every other connection of the session.
func (l *Lifecycle) JoinSession(ctx context.Context, connID, sessionID, participantID, participantName string) (JoinResult, error) {
	l.mu.Lock()
	sess, err := l.store.Get(ctx, sessionID)
	if err == nil && sess.IsFull() {
		err = cnst.ErrSessionFull
	}
	player := l.participant(participantID, participantName)
	if err == nil {
		sess.Roster = append(sess.Roster, player)
		err = l.store.Update(ctx, sess)
	}
	l.mu.Unlock()

	if err != nil {
		reason := cnst.ReplySessionNotFound
		if errors.Is(err, cnst.ErrSessionFull) {
			reason = cnst.ReplySessionFull
		}
		l.reply(connID, sessionID, func() ([]byte, error) {
			return protocol.JoinFailed(sessionID, reason, l.now())
		})
		return JoinResult{}, fmt.Errorf("join %s to %s: %w", participantID, sessionID, err)
	}
	res := JoinResult{Session: sess, Player: player}

	l.logger.Info("participant joined",
		zap.String("session_id", sessionID),
		zap.String("player_id", participantID),
		zap.Int("roster", len(sess.Roster)))

	frame, err := protocol.PlayerJoin(sess, player, l.now())
	if err != nil {
		l.logger.Error("failed to encode player_join", zap.Error(err))
		return res, nil
	}
	if err := l.relay.Send(connID, frame); err != nil {
		l.logger.Warn("failed to confirm join", zap.String("conn_id", connID), zap.Error(err))
	}
	res.Broadcast = l.relay.Broadcast(sessionID, frame, connID)
	return res, nil
}

// LeaveSession removes every roster entry of a participant after its
// connection closed. The session is deleted when the roster empties, otherwise the remaining
// members receive player_leave.
func (l *Lifecycle) LeaveSession(ctx context.Context, sessionID, participantID string) (LeaveResult, error) {
	var res LeaveResult
	if sessionID == "" || participantID == "" {
		return res, nil
	}

	l.mu.Lock()
	sess, err := l.store.Get(ctx, sessionID)
	if errors.Is(err, cnst.ErrSessionNotFound) {
		l.mu.Unlock()
		return res, nil
	}
	if err != nil {
		l.mu.Unlock()
		return res, fmt.Errorf("leave %s from %s: %w", participantID, sessionID, err)
	}
	if sess.IndexOf(participantID) < 0 {
		l.mu.Unlock()
		return res, nil
	}
	kept := sess.Roster[:0]
	for _, p := range sess.Roster {
		if p.ID != participantID {
			kept = append(kept, p)
		}
	}
	sess.Roster = kept
	res.Removed = true
	if len(sess.Roster) == 0 {
		err = l.store.Delete(ctx, sessionID)
		res.Deleted = err == nil
	} else {
		err = l.store.Update(ctx, sess)
	}
	l.mu.Unlock()
	if err != nil {
		return res, fmt.Errorf("leave %s from %s: %w", participantID, sessionID, err)
	}

	if res.Deleted {
		l.logger.Info("session removed, no players left", zap.String("session_id", sessionID))
		return res, nil
	}

	frame, err := protocol.PlayerLeave(sess, participantID, l.now())
	if err != nil {
		return res, err
	}
	res.Broadcast = l.relay.Broadcast(sessionID, frame, "")
	l.logger.Info("participant left",
		zap.String("session_id", sessionID),
		zap.String("player_id", participantID),
		zap.Int("roster", len(sess.Roster)))
	return res, nil
}

// ListPublicSessions returns copies of every public, active session.
func (l *Lifecycle) ListPublicSessions(ctx context.Context) ([]*session.Session, error) {
	return l.store.ListPublicActive(ctx)
}

func (l *Lifecycle) reply(connID, sessionID string, encode func() ([]byte, error)) {
	frame, err := encode()
	if err != nil {
		l.logger.Error("failed to encode reply", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := l.relay.Send(connID, frame); err != nil {
		l.logger.Warn("failed to send reply",
			zap.String("conn_id", connID),
			zap.String("session_id", sessionID),
			zap.Error(err))
	}
}
