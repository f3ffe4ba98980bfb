package ws

import (
	"context"
	"net/http"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/internal/relay"
	"github.com/amoylab/grimrelay/pkg/logger"
	"github.com/amoylab/grimrelay/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub is the relay surface a transport drives.
type Hub interface {
	Connect(ctx context.Context, connID string, params relay.ConnectParams, t relay.Transport) error
	Dispatch(ctx context.Context, connID string, frame []byte)
	Disconnect(ctx context.Context, connID string)
}

// Handler upgrades HTTP requests to relay connections
type Handler struct {
	logger   *zap.Logger
	hub      Hub
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler. Origins are checked against
// allowOrigins, where "*" admits every origin.
func NewHandler(lg *zap.Logger, hub Hub, cfg config.WebSocketConfig, allowOrigins []string) *Handler {
	return &Handler{
		logger: lg.Named("transport.ws"),
		hub:    hub,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      originChecker(allowOrigins),
		},
	}
}

func originChecker(allowOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

// ParseParams reads the connection-time session parameters.
func ParseParams(c *gin.Context) relay.ConnectParams {
	return relay.ConnectParams{
		SessionID:       c.Query("sessionId"),
		ParticipantID:   c.Query("playerId"),
		ParticipantName: c.Query("playerName"),
		IsHost:          c.Query("isHost") == "true",
	}
}

// Handle upgrades the request and hands the connection to the hub
func (h *Handler) Handle(c *gin.Context) {
	params := ParseParams(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection",
			zap.String("remote_addr", c.Request.RemoteAddr),
			zap.Error(err))
		return
	}

	connID := uuid.NewString()
	lg := logger.WithConnection(h.logger, connID, params.SessionID, params.ParticipantID)
	client := newClient(connID, conn, h.cfg, lg)

	// the connection outlives the request, keep its values but not its deadline
	ctx := context.WithoutCancel(c.Request.Context())
	scope := trace.Tracer(cnst.TraceTransport).Start(ctx, "ws.accept").
		WithAttrs(trace.AttrConnectionID.String(connID))
	err = h.hub.Connect(scope.Ctx, connID, params, client)
	scope.RecordError(err).End()
	if err != nil {
		lg.Info("connection refused", zap.Error(err))
		return
	}

	lg.Info("websocket connection established",
		zap.Bool("is_host", params.IsHost),
		zap.String("remote_addr", c.Request.RemoteAddr))
	go client.writePump()
	go client.readPump(ctx, h.hub)
}
