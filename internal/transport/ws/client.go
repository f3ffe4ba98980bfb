package ws

import (
	"context"
	"sync"
	"time"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one websocket connection. Outbound frames go through a buffered
// queue drained by writePump, so Send never blocks on the peer.
type Client struct {
	id     string
	conn   *websocket.Conn
	cfg    config.WebSocketConfig
	logger *zap.Logger
	send   chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig, logger *zap.Logger) *Client {
	return &Client{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		send:   make(chan []byte, cfg.SendQueueSize),
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// Send queues frame for delivery
func (c *Client) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return cnst.ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return cnst.ErrSendQueueFull
	}
}

// IsOpen reports whether the client still accepts frames
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Close sends a close frame and tears the connection down. Only the first
// call has an effect.
func (c *Client) Close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.cfg.WriteWait))
	close(c.send)
	_ = c.conn.Close()
	return err
}

// readPump feeds inbound frames to the hub until the connection fails, then
// runs the disconnect cleanup.
func (c *Client) readPump(ctx context.Context, hub Hub) {
	defer func() {
		hub.Disconnect(ctx, c.id)
		_ = c.Close(websocket.CloseNormalClosure, "")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("websocket read error", zap.Error(err))
			} else {
				c.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		hub.Dispatch(ctx, c.id, data)
	}
}

// writePump drains the send queue and keeps the peer alive with pings.
func (c *Client) writePump() {
	pingPeriod := (c.cfg.PongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		}
	}
}
