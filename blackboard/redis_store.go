package blackboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/types"
)

// RedisStore keeps one hash per snapshot name: field = variable key,
// value = JSON encoded runtime value.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisStore wraps client. A zero ttl keeps snapshots forever.
func NewRedisStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "nodeflow:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "blackboard:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "blackboard_store")),
	}
}

func (s *RedisStore) key(name string) string {
	return s.keyPrefix + name
}

// Save replaces the snapshot stored under name.
func (s *RedisStore) Save(ctx context.Context, name string, b *Blackboard) error {
	values, err := encodeGlobals(b)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	if len(values) > 0 {
		fields := make(map[string]any, len(values))
		for k, v := range values {
			fields[k] = v
		}
		pipe.HSet(ctx, s.key(name), fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key(name), s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("save snapshot failed", zap.String("name", name), zap.Error(err))
		return types.NewError(types.ErrStorage, "save blackboard snapshot").WithCause(err)
	}

	s.logger.Debug("snapshot saved", zap.String("name", name), zap.Int("vars", len(values)))
	return nil
}

// Load restores the snapshot stored under name into b.
func (s *RedisStore) Load(ctx context.Context, name string, b *Blackboard) error {
	raw, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return types.NewError(types.ErrStorage, "load blackboard snapshot").WithCause(err)
	}
	if len(raw) == 0 {
		return types.Errorf(types.ErrNotFound, "no blackboard snapshot named %q", name)
	}

	values := make(map[string][]byte, len(raw))
	for k, v := range raw {
		values[k] = []byte(v)
	}
	if err := restoreGlobals(b, values); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", name, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return types.NewError(types.ErrStorage, "delete blackboard snapshot").WithCause(err)
	}
	return nil
}
