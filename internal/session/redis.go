package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/amoylab/grimrelay/internal/common/cnst"
	"github.com/amoylab/grimrelay/internal/common/config"
	"github.com/amoylab/grimrelay/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store using Redis. Sessions are kept as JSON strings
// and their creation order in a sorted set scored by a monotonic counter.
type RedisStore struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-based session store. Sessions do not
// survive a restart, so keys left under the prefix by a previous process are
// removed before the store is handed out.
func NewRedisStore(ctx context.Context, logger *zap.Logger, cfg config.SessionRedisConfig) (*RedisStore, error) {
	addrs := utils.SplitByMultipleDelimiters(cfg.Addr, ";", ",")
	opts := &redis.UniversalOptions{
		Addrs:    addrs,
		Username: cfg.Username,
		Password: cfg.Password,
	}
	if cfg.ClusterType == cnst.RedisClusterTypeSentinel {
		opts.MasterName = cfg.MasterName
	}
	if cfg.ClusterType == cnst.RedisClusterTypeCluster {
		opts.IsClusterMode = true
	} else {
		// can not set db in cluster mode
		opts.DB = cfg.DB
	}
	client := redis.NewUniversalClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &RedisStore{
		logger: logger.Named("session.store.redis"),
		client: client,
		prefix: keyPrefix(cfg.Prefix, isCluster(client)),
	}
	if err := store.purge(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func (s *RedisStore) sessionKey(id string) string { return s.prefix + "session:" + id }
func (s *RedisStore) orderKey() string            { return s.prefix + "order" }
func (s *RedisStore) seqKey() string              { return s.prefix + "seq" }

// keyPrefix returns the prefix of every key the store touches. In cluster mode
// the prefix becomes a hash tag so that all keys share one slot, which MGET,
// MULTI and multi-key DEL require.
func keyPrefix(prefix string, cluster bool) string {
	if !cluster {
		return prefix
	}
	if open := strings.Index(prefix, "{"); open >= 0 {
		if end := strings.Index(prefix[open+1:], "}"); end > 0 {
			return prefix
		}
	}
	tag := strings.TrimSuffix(prefix, ":")
	if tag == "" {
		tag = "grimrelay"
	}
	return "{" + tag + "}:"
}

func isCluster(client redis.UniversalClient) bool {
	_, ok := client.(*redis.ClusterClient)
	return ok
}

func (s *RedisStore) purge(ctx context.Context) error {
	var removed int
	purgeNode := func(ctx context.Context, node redis.Cmdable) error {
		var cursor uint64
		for {
			keys, next, err := node.Scan(ctx, cursor, s.prefix+"*", 100).Result()
			if err != nil {
				return fmt.Errorf("failed to scan stale session keys: %w", err)
			}
			if len(keys) > 0 {
				if err := node.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("failed to remove stale session keys: %w", err)
				}
				removed += len(keys)
			}
			if cursor = next; cursor == 0 {
				return nil
			}
		}
	}

	var err error
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		// SCAN only walks the node it is sent to
		var mu sync.Mutex
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			mu.Lock()
			defer mu.Unlock()
			return purgeNode(ctx, node)
		})
	} else {
		err = purgeNode(ctx, s.client)
	}
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("removed stale session keys", zap.Int("count", removed))
	}
	return nil
}

// Create implements Store.Create
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	if len(sess.Roster) == 0 {
		return fmt.Errorf("create session %s: %w", sess.ID, cnst.ErrEmptyRoster)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate session sequence: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, 0)
		// NX keeps the original position when an id is re-created
		pipe.ZAddNX(ctx, s.orderKey(), redis.Z{Score: float64(seq), Member: sess.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}
	return nil
}

// Update implements Store.Update
func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	if len(sess.Roster) == 0 {
		return fmt.Errorf("update session %s: %w", sess.ID, cnst.ErrEmptyRoster)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, s.sessionKey(sess.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update session in Redis: %w", err)
	}
	if !ok {
		return cnst.ErrSessionNotFound
	}
	return nil
}

// Get implements Store.Get
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cnst.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete implements Store.Delete
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(id))
		pipe.ZRem(ctx, s.orderKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	return nil
}

// ListPublicActive implements Store.ListPublicActive
func (s *RedisStore) ListPublicActive(ctx context.Context) ([]*Session, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session ids: %w", err)
	}
	if len(ids) == 0 {
		return []*Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	list := make([]*Session, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between ZRANGE and MGET
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(raw), &sess); err != nil {
			s.logger.Error("failed to unmarshal session",
				zap.String("session_id", ids[i]),
				zap.Error(err))
			continue
		}
		if sess.Listed() {
			list = append(list, &sess)
		}
	}
	return list, nil
}

// Count implements Store.Count
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.orderKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// Close implements Store.Close
func (s *RedisStore) Close() error {
	return s.client.Close()
}
