package relay

import (
	"fmt"

	"github.com/amoylab/grimrelay/internal/common/cnst"

	"go.uber.org/zap"
)

// BroadcastResult describes one fan-out.
type BroadcastResult struct {
	// Attempted counts open targets a send was tried on.
	Attempted int
	// Delivered counts sends that were accepted by the transport.
	Delivered int
	// Skipped counts targets whose transport was no longer open.
	Skipped int
	// Failed lists connection ids whose send returned an error.
	Failed []string
}

// Broadcaster delivers frames to connections of the registry.
type Broadcaster struct {
	logger *zap.Logger
	conns  *ConnRegistry
}

// NewBroadcaster creates a Broadcaster over conns
func NewBroadcaster(logger *zap.Logger, conns *ConnRegistry) *Broadcaster {
	return &Broadcaster{
		logger: logger.Named("relay.broadcast"),
		conns:  conns,
	}
}

// Broadcast sends frame to every open connection bound to sessionID except
// excludeConnID. A failing recipient never stops delivery to the others and
// never changes the registry.
func (b *Broadcaster) Broadcast(sessionID string, frame []byte, excludeConnID string) BroadcastResult {
	var res BroadcastResult
	if sessionID == "" {
		return res
	}

	b.conns.ForEach(func(binding Binding) bool {
		if binding.SessionID != sessionID || binding.ConnID == excludeConnID {
			return true
		}
		if binding.Transport == nil || !binding.Transport.IsOpen() {
			res.Skipped++
			return true
		}
		res.Attempted++
		if err := binding.Transport.Send(frame); err != nil {
			res.Failed = append(res.Failed, binding.ConnID)
			b.logger.Warn("failed to deliver broadcast",
				zap.String("session_id", sessionID),
				zap.String("conn_id", binding.ConnID),
				zap.Error(err))
			return true
		}
		res.Delivered++
		return true
	})

	b.logger.Debug("broadcast complete",
		zap.String("session_id", sessionID),
		zap.Int("attempted", res.Attempted),
		zap.Int("delivered", res.Delivered),
		zap.Int("skipped", res.Skipped))
	return res
}

// Send delivers frame to a single connection.
func (b *Broadcaster) Send(connID string, frame []byte) error {
	binding, ok := b.conns.Get(connID)
	if !ok || binding.Transport == nil {
		return fmt.Errorf("send to %s: %w", connID, cnst.ErrConnectionClosed)
	}
	if !binding.Transport.IsOpen() {
		return fmt.Errorf("send to %s: %w", connID, cnst.ErrConnectionClosed)
	}
	return binding.Transport.Send(frame)
}
