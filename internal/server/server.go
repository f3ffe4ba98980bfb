package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/internal/protocol"
	"github.com/amoylab/grimrelay/internal/relay"
	"github.com/amoylab/grimrelay/internal/transport/ws"
	"github.com/amoylab/grimrelay/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type (
	// Server exposes the relay over HTTP and websocket
	Server struct {
		logger     *zap.Logger
		cfg        *config.RelayConfig
		hub        *relay.Hub
		metrics    *metrics.Metrics
		router     *gin.Engine
		httpServer *http.Server
	}
)

// NewServer creates a new relay server. m may be nil when metrics are
// disabled.
func NewServer(logger *zap.Logger, cfg *config.RelayConfig, hub *relay.Hub, m *metrics.Metrics) *Server {
	s := &Server{
		logger:  logger.Named("server"),
		cfg:     cfg,
		hub:     hub,
		metrics: m,
		router:  gin.New(),
	}

	s.router.Use(s.recoveryMiddleware())
	s.router.Use(s.loggerMiddleware())
	s.router.Use(s.corsMiddleware(&cfg.CORS))
	if cfg.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if m != nil {
		s.router.Use(m.Middleware())
	}

	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) registerRoutes() {
	wsHandler := ws.NewHandler(s.logger, s.hub, s.cfg.WebSocket, s.cfg.CORS.AllowOrigins)
	s.router.GET(s.cfg.WebSocket.Path, wsHandler.Handle)

	api := s.router.Group("/api")
	api.GET("/sessions", s.handleSessions)
	api.GET("/health", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.GET(s.cfg.Metrics.Path, gin.WrapH(s.metrics.Handler()))
	}
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("relay server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every relay connection and drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.hub.CloseAll(relay.CloseGoingAway, cnst.ReasonServerShutdown)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions, err := s.hub.ListPublicSessions(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, protocol.NewDirectory(sessions))
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.hub.Stats(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to collect stats", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"activeSessions": stats.ActiveSessions,
		"activeClients":  stats.ActiveClients,
		"timestamp":      time.Now().UTC(),
	})
}
