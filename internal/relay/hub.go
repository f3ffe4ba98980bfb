package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/internal/session"
	"github.com/amoylab/grimrelay/pkg/trace"

	"github.com/ifuryst/lol"
	"go.uber.org/zap"
)

// ClosePolicyViolation is the close code sent when admission is refused.
const ClosePolicyViolation = 1008

// CloseGoingAway is the close code sent on server shutdown.
const CloseGoingAway = 1001

// ConnectParams are the session parameters supplied when a connection opens.
type ConnectParams struct {
	SessionID       string
	ParticipantID   string
	ParticipantName string
	IsHost          bool
}

// Complete reports whether the parameters identify a session member.
func (p ConnectParams) Complete() bool {
	return p.SessionID != "" && p.ParticipantID != "" && p.ParticipantName != ""
}

// Stats is the liveness summary of the relay.
type Stats struct {
	ActiveSessions int
	ActiveClients  int
}

// Hub ties the registries, the lifecycle and the dispatcher together. It is
// the only entry point used by transports.
type Hub struct {
	logger     *zap.Logger
	conns      *ConnRegistry
	store      session.Store
	relay      *Broadcaster
	lifecycle  *Lifecycle
	dispatcher *Dispatcher
	observer   Observer
}

// Option configures a Hub
type Option func(*hubOptions)

type hubOptions struct {
	capacity int
	location LocationPicker
	now      func() time.Time
	newID    func() string
	observer Observer
}

// WithCapacity sets the roster bound of host-created sessions.
func WithCapacity(n int) Option {
	return func(o *hubOptions) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithLocationPicker replaces the random location source.
func WithLocationPicker(p LocationPicker) Option {
	return func(o *hubOptions) { o.location = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *hubOptions) { o.now = now }
}

// WithSessionIDGenerator replaces the generator used when session_create
// carries no id.
func WithSessionIDGenerator(gen func() string) Option {
	return func(o *hubOptions) { o.newID = gen }
}

// WithObserver installs a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *hubOptions) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewSessionID returns a six character upper-case session id.
func NewSessionID() string {
	return strings.ToUpper(lol.RandomString(6))
}

// NewHub creates a Hub over store
func NewHub(logger *zap.Logger, store session.Store, opts ...Option) *Hub {
	o := hubOptions{
		capacity: config.DefaultCapacity,
		location: NewLocationPicker(0),
		now:      time.Now,
		newID:    NewSessionID,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	conns := NewConnRegistry()
	relay := NewBroadcaster(logger, conns)
	lifecycle := &Lifecycle{
		logger:   logger.Named("relay.lifecycle"),
		store:    store,
		relay:    relay,
		location: o.location,
		now:      o.now,
		capacity: o.capacity,
	}
	return &Hub{
		logger:    logger.Named("relay.hub"),
		conns:     conns,
		store:     store,
		relay:     relay,
		lifecycle: lifecycle,
		dispatcher: &Dispatcher{
			logger:    logger.Named("relay.dispatcher"),
			conns:     conns,
			relay:     relay,
			lifecycle: lifecycle,
			observer:  o.observer,
			now:       o.now,
			newID:     o.newID,
		},
		observer: o.observer,
	}
}

// Lifecycle exposes the session operations.
func (h *Hub) Lifecycle() *Lifecycle { return h.lifecycle }

// Broadcaster exposes the fan-out used by the hub.
func (h *Hub) Broadcaster() *Broadcaster { return h.relay }

// Connections exposes the connection registry.
func (h *Hub) Connections() *ConnRegistry { return h.conns }

// Connect registers a freshly accepted connection. Hosts are established,
// participants admitted and everything else browses. When admission is
// refused the transport is closed with a policy-violation code and the
// error is returned.
func (h *Hub) Connect(ctx context.Context, connID string, params ConnectParams, t Transport) error {
	scope := trace.Tracer(cnst.TraceRelay).Start(ctx, cnst.SpanConnect).
		WithAttrs(trace.AttrConnectionID.String(connID), trace.AttrSessionID.String(params.SessionID))
	defer scope.End()
	ctx = scope.Ctx

	binding := Binding{ConnID: connID, Transport: t}
	if !params.Complete() {
		h.conns.Register(binding)
		h.observer.ConnectionOpened(RoleBrowser)
		h.logger.Debug("browser connected", zap.String("conn_id", connID))
		return nil
	}

	binding.SessionID = params.SessionID
	binding.ParticipantID = params.ParticipantID
	binding.ParticipantName = params.ParticipantName
	binding.IsHost = params.IsHost

	if params.IsHost {
		// registered first so the confirmation can reach the host
		h.conns.Register(binding)
		if _, err := h.lifecycle.EstablishAsHost(ctx, connID, params.SessionID, params.ParticipantID, params.ParticipantName); err != nil {
			h.conns.Remove(connID)
			scope.RecordError(err)
			_ = t.Close(ClosePolicyViolation, "Session unavailable")
			return err
		}
		h.observer.ConnectionOpened(RoleHost)
		h.refreshSessionGauge(ctx)
		return nil
	}

	if _, err := h.lifecycle.AdmitParticipant(ctx, params.SessionID, params.ParticipantID, params.ParticipantName); err != nil {
		scope.RecordError(err)
		reason, ok := cnst.CloseReason(err)
		if !ok {
			reason = "Session unavailable"
		}
		h.observer.AdmissionRejected(reason)
		h.logger.Info("admission refused",
			zap.String("conn_id", connID),
			zap.String("session_id", params.SessionID),
			zap.String("player_id", params.ParticipantID),
			zap.String("reason", reason))
		_ = t.Close(ClosePolicyViolation, reason)
		return err
	}
	h.conns.Register(binding)
	h.observer.ConnectionOpened(RoleParticipant)
	return nil
}

// Dispatch handles one inbound frame of connID.
func (h *Hub) Dispatch(ctx context.Context, connID string, frame []byte) {
	h.dispatcher.Dispatch(ctx, connID, frame)
	h.refreshSessionGauge(ctx)
}

// Disconnect removes connID and cleans up its membership. Calling it for an
// unknown or already removed connection does nothing.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	binding, ok := h.conns.Remove(connID)
	if !ok {
		return
	}
	h.observer.ConnectionClosed(roleOf(binding))

	scope := trace.Tracer(cnst.TraceRelay).Start(ctx, cnst.SpanDisconnect).
		WithAttrs(trace.AttrConnectionID.String(connID), trace.AttrSessionID.String(binding.SessionID))
	defer scope.End()

	res, err := h.lifecycle.LeaveSession(scope.Ctx, binding.SessionID, binding.ParticipantID)
	if err != nil {
		scope.RecordError(err)
		h.logger.Error("failed to clean up after disconnect",
			zap.String("conn_id", connID),
			zap.String("session_id", binding.SessionID),
			zap.Error(err))
		return
	}
	if res.Removed && !res.Deleted {
		h.observer.Broadcasted("player_leave", res.Broadcast.Attempted, res.Broadcast.Delivered)
	}
	h.refreshSessionGauge(scope.Ctx)
	h.logger.Debug("connection closed",
		zap.String("conn_id", connID),
		zap.Bool("removed", res.Removed),
		zap.Bool("session_deleted", res.Deleted))
}

// ListPublicSessions returns the public directory.
func (h *Hub) ListPublicSessions(ctx context.Context) ([]*session.Session, error) {
	return h.lifecycle.ListPublicSessions(ctx)
}

// Stats reports the number of sessions and connections.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	n, err := h.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count sessions: %w", err)
	}
	return Stats{ActiveSessions: n, ActiveClients: h.conns.Count()}, nil
}

// CloseAll closes every registered transport. Cleanup runs when the
// transports report their closure through Disconnect.
func (h *Hub) CloseAll(code int, reason string) {
	h.conns.ForEach(func(b Binding) bool {
		if b.Transport != nil {
			if err := b.Transport.Close(code, reason); err != nil {
				h.logger.Debug("failed to close connection", zap.String("conn_id", b.ConnID), zap.Error(err))
			}
		}
		return true
	})
}

func (h *Hub) refreshSessionGauge(ctx context.Context) {
	if n, err := h.store.Count(ctx); err == nil {
		h.observer.SessionsActive(n)
	}
}
