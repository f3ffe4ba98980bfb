package relay

import (
	"context"
	"errors"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/protocol"
	"github.com/amoylab/grimrelay/pkg/trace"

	"go.uber.org/zap"
)

// Dispatcher routes decoded client frames to the lifecycle or the
// broadcaster. It is the only state transition surface driven by peers.
type Dispatcher struct {
	logger    *zap.Logger
	conns     *ConnRegistry
	relay     *Broadcaster
	lifecycle *Lifecycle
	observer  Observer
	now       func() time.Time
	newID     func() string
}

// Dispatch decodes frame and handles it on behalf of connID. Malformed and
// unknown frames are logged and dropped; the connection stays open.
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, frame []byte) {
	binding, ok := d.conns.Get(connID)
	if !ok {
		d.logger.Warn("message from unregistered connection", zap.String("conn_id", connID))
		return
	}

	in, err := protocol.Decode(frame)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			d.observer.MessageDropped("unknown_kind")
			d.logger.Warn("unknown message type",
				zap.String("conn_id", connID),
				zap.String("type", protocol.PeekKind(frame)))
			return
		}
		d.observer.MessageDropped("malformed")
		d.logger.Error("failed to parse message",
			zap.String("conn_id", connID),
			zap.Int("size", len(frame)),
			zap.Error(err))
		return
	}

	kind := string(in.Kind())
	start := time.Now()
	scope := trace.Tracer(cnst.TraceRelay).Start(ctx, cnst.SpanDispatchPrefix+kind).
		WithAttrs(trace.AttrConnectionID.String(connID), trace.AttrMessageKind.String(kind))
	defer scope.End()
	ctx = scope.Ctx

	switch msg := in.(type) {
	case *protocol.SessionCreate:
		d.handleCreate(ctx, scope, binding, msg)
	case *protocol.SessionJoin:
		d.handleJoin(ctx, scope, binding, msg)
	case *protocol.SessionList:
		d.handleList(ctx, scope, binding)
	case *protocol.StateUpdate:
		d.relayFrame(scope, kind, msg.SessionID, msg.Raw)
	case *protocol.ChatMessage:
		d.relayFrame(scope, kind, msg.SessionID, msg.Raw)
	case *protocol.Ping:
		d.send(binding.ConnID, kind, func() ([]byte, error) { return protocol.Pong(d.now()) })
	}
	d.observer.MessageHandled(kind, start)
}

// memberID picks the participant id of an in-band request, falling back to
// the connection identity when the frame carries none.
func memberID(b Binding, requested string) string {
	switch {
	case requested != "":
		return requested
	case b.ParticipantID != "":
		return b.ParticipantID
	default:
		return b.ConnID
	}
}

func (d *Dispatcher) handleCreate(ctx context.Context, scope *trace.SpanScope, b Binding, msg *protocol.SessionCreate) {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = d.newID()
	}
	hostID := memberID(b, msg.HostID)
	scope.WithAttrs(trace.AttrSessionID.String(sessionID), trace.AttrPlayerID.String(hostID))

	sess, err := d.lifecycle.CreateSession(ctx, b.ConnID, sessionID, hostID, msg.Descriptor)
	if err != nil {
		scope.RecordError(err)
		d.logger.Error("failed to create session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	d.rebind(ctx, b.ConnID, sess.ID, hostID, msg.Descriptor.HostName, true)
}

func (d *Dispatcher) handleJoin(ctx context.Context, scope *trace.SpanScope, b Binding, msg *protocol.SessionJoin) {
	playerID := memberID(b, msg.PlayerID)
	scope.WithAttrs(trace.AttrSessionID.String(msg.SessionID), trace.AttrPlayerID.String(playerID))

	res, err := d.lifecycle.JoinSession(ctx, b.ConnID, msg.SessionID, playerID, msg.PlayerName)
	if err != nil {
		scope.RecordError(err)
		d.logger.Info("join refused",
			zap.String("conn_id", b.ConnID),
			zap.String("session_id", msg.SessionID),
			zap.Error(err))
		return
	}
	scope.WithAttrs(
		trace.AttrAttempted.Int(res.Broadcast.Attempted),
		trace.AttrDelivered.Int(res.Broadcast.Delivered),
	)
	d.observer.Broadcasted(string(protocol.KindPlayerJoin), res.Broadcast.Attempted, res.Broadcast.Delivered)
	d.rebind(ctx, b.ConnID, res.Session.ID, playerID, msg.PlayerName, false)
}

// rebind moves connID to the membership it just created or joined. A
// membership held before under another session or participant id is left,
// so every roster entry stays backed by exactly one live binding.
func (d *Dispatcher) rebind(ctx context.Context, connID, sessionID, participantID, participantName string, isHost bool) {
	prev, ok := d.conns.Rebind(connID, sessionID, participantID, participantName, isHost)
	if !ok {
		return
	}
	next := Binding{SessionID: sessionID, IsHost: isHost}
	if from, to := roleOf(prev), roleOf(next); from != to {
		d.observer.ConnectionRebound(from, to)
	}
	if prev.Browsing() || (prev.SessionID == sessionID && prev.ParticipantID == participantID) {
		return
	}

	res, err := d.lifecycle.LeaveSession(ctx, prev.SessionID, prev.ParticipantID)
	if err != nil {
		d.logger.Error("failed to leave previous session",
			zap.String("conn_id", connID),
			zap.String("session_id", prev.SessionID),
			zap.Error(err))
		return
	}
	if res.Removed && !res.Deleted {
		d.observer.Broadcasted(string(protocol.KindPlayerLeave), res.Broadcast.Attempted, res.Broadcast.Delivered)
	}
	d.logger.Debug("connection moved to another session",
		zap.String("conn_id", connID),
		zap.String("from", prev.SessionID),
		zap.String("to", sessionID))
}

func (d *Dispatcher) handleList(ctx context.Context, scope *trace.SpanScope, b Binding) {
	sessions, err := d.lifecycle.ListPublicSessions(ctx)
	if err != nil {
		scope.RecordError(err)
		d.logger.Error("failed to list sessions", zap.Error(err))
		return
	}
	d.send(b.ConnID, string(protocol.KindSessionList), func() ([]byte, error) {
		return protocol.Directory(sessions, d.now())
	})
}

func (d *Dispatcher) relayFrame(scope *trace.SpanScope, kind, sessionID string, frame []byte) {
	res := d.relay.Broadcast(sessionID, frame, "")
	scope.WithAttrs(
		trace.AttrSessionID.String(sessionID),
		trace.AttrAttempted.Int(res.Attempted),
		trace.AttrDelivered.Int(res.Delivered),
	)
	d.observer.Broadcasted(kind, res.Attempted, res.Delivered)
}

func (d *Dispatcher) send(connID, kind string, encode func() ([]byte, error)) {
	frame, err := encode()
	if err != nil {
		d.logger.Error("failed to encode reply", zap.String("type", kind), zap.Error(err))
		return
	}
	if err := d.relay.Send(connID, frame); err != nil {
		d.logger.Warn("failed to send reply",
			zap.String("conn_id", connID),
			zap.String("type", kind),
			zap.Error(err))
	}
}
