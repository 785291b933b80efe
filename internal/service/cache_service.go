package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hospital-admin-api/pkg/cache"
	appErrors "github.com/noah-isme/hospital-admin-api/pkg/errors"
)

const (
	tierLocal = "local"
	tierRedis = "redis"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts the shared Redis cache with an optional in-process tier.
type CacheService struct {
	repo       CacheRepository
	local      *cache.Local
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. local may be nil.
func NewCacheService(repo CacheRepository, local *cache.Local, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, local: local, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && (s.repo != nil || s.local != nil)
}

// Get fills dest from the first tier holding key. It returns true on a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	start := time.Now()
	if raw, ok := s.local.Get(key); ok {
		if err := json.Unmarshal(raw, dest); err == nil {
			s.metrics.RecordCacheOperation(tierLocal, true, time.Since(start))
			return true, nil
		}
	}
	if s.local != nil {
		s.metrics.RecordCacheOperation(tierLocal, false, time.Since(start))
	}
	if s.repo == nil {
		return false, nil
	}

	start = time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(tierRedis, false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(tierRedis, true, duration)
	if raw, err := json.Marshal(dest); err == nil {
		s.local.Set(key, raw)
	}
	return true, nil
}

// Set stores value in every tier.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if raw, err := json.Marshal(value); err == nil {
		s.local.Set(key, raw)
	}
	if s.repo == nil {
		return nil
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached values matching pattern from every tier.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	s.local.DeletePattern(pattern)
	if s.repo == nil {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
