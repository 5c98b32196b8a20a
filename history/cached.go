package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/internal/cache"
)

// CacheMetrics counts run cache lookups. *metrics.Collector implements it.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheType = "runs"

// CachedStore serves Get from Redis in front of another Store. Finished
// runs never change, so entries are only dropped when a run is saved
// again. Cache failures fall through to the inner store.
type CachedStore struct {
	inner   Store
	cache   *cache.Manager
	ttl     time.Duration
	metrics CacheMetrics
	logger  *zap.Logger
}

// NewCachedStore wraps inner. A zero ttl uses the cache default; metrics
// may be nil.
func NewCachedStore(inner Store, c *cache.Manager, ttl time.Duration, metrics CacheMetrics, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		inner:   inner,
		cache:   c,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "history_cache")),
	}
}

func runKey(id string) string { return "run:" + id }

func (s *CachedStore) Save(ctx context.Context, run *Run) error {
	if err := s.inner.Save(ctx, run); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, runKey(run.ID)); err != nil {
		s.logger.Warn("failed to invalidate cached run", zap.String("run_id", run.ID), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.cache.GetJSON(ctx, runKey(id), &run)
	if err == nil {
		s.hit()
		return &run, nil
	}
	if !cache.IsCacheMiss(err) {
		s.logger.Warn("run cache read failed", zap.String("run_id", id), zap.Error(err))
	}
	s.miss()

	got, err := s.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, runKey(id), got, s.ttl); err != nil {
		s.logger.Warn("failed to cache run", zap.String("run_id", id), zap.Error(err))
	}
	return got, nil
}

func (s *CachedStore) List(ctx context.Context, f Filter) ([]*Run, error) {
	return s.inner.List(ctx, f)
}

func (s *CachedStore) hit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit(cacheType)
	}
}

func (s *CachedStore) miss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss(cacheType)
	}
}
