package session

import (
	"context"
	"fmt"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"

	"go.uber.org/zap"
)

// NewStore creates a new session store based on configuration
func NewStore(ctx context.Context, logger *zap.Logger, cfg *config.SessionConfig) (Store, error) {
	logger.Info("Initializing session store", zap.String("type", cfg.Type))

	switch cfg.Type {
	case cnst.SessionStoreMemory, "":
		return NewMemoryStore(logger), nil
	case cnst.SessionStoreRedis:
		return NewRedisStore(ctx, logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnknownStoreType, cfg.Type)
	}
}
