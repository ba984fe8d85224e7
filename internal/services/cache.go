package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/pkg/models"
)

const (
	ratingsVersionKey = "cellar:version:ratings"
	catalogVersionKey = "cellar:version:catalog"
)

// RecommendationCache memoizes recommendation responses keyed by the
// current ratings and catalog versions. Writers bump a version after every
// change, which retires all entries computed from older data.
//
// A nil key-value store disables the cache; every method then degrades to a
// no-op. Cache failures are logged and never returned.
type RecommendationCache struct {
	kv      database.KeyValueStore
	ttl     time.Duration
	metrics *MetricsCollector
	logger  *logrus.Logger
}

func NewRecommendationCache(kv database.KeyValueStore, cfg config.CachingConfig, metrics *MetricsCollector, logger *logrus.Logger) *RecommendationCache {
	if !cfg.Enabled {
		kv = nil
	}
	return &RecommendationCache{
		kv:      kv,
		ttl:     cfg.RecommendationsTTL,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *RecommendationCache) Enabled() bool {
	return c != nil && c.kv != nil
}

// Key returns the cache key for the current data versions. ok is false when
// the cache is disabled or the versions cannot be read.
func (c *RecommendationCache) Key(ctx context.Context) (key string, ok bool) {
	if !c.Enabled() {
		return "", false
	}
	ratingsVersion, err := c.version(ctx, ratingsVersionKey)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read ratings version")
		return "", false
	}
	catalogVersion, err := c.version(ctx, catalogVersionKey)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to read catalog version")
		return "", false
	}
	return fmt.Sprintf("cellar:recommendations:r%d:c%d", ratingsVersion, catalogVersion), true
}

func (c *RecommendationCache) version(ctx context.Context, key string) (int64, error) {
	raw, err := c.kv.Get(ctx, key)
	if errors.Is(err, database.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

func (c *RecommendationCache) Get(ctx context.Context, key string) (*models.RecommendationsResponse, bool) {
	if !c.Enabled() {
		return nil, false
	}

	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrKeyNotFound) {
			c.logger.WithError(err).WithField("key", key).Warn("Failed to read cached recommendations")
		}
		c.recordLookup(false)
		return nil, false
	}

	var resp models.RecommendationsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Discarding malformed cached recommendations")
		c.recordLookup(false)
		return nil, false
	}

	c.recordLookup(true)
	return &resp, true
}

func (c *RecommendationCache) Set(ctx context.Context, key string, resp *models.RecommendationsResponse) {
	if !c.Enabled() {
		return
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal recommendations for cache")
		return
	}
	if err := c.kv.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to cache recommendations")
	}
}

// BumpRatings retires every entry computed before the latest rating change.
func (c *RecommendationCache) BumpRatings(ctx context.Context) {
	c.bump(ctx, ratingsVersionKey)
}

// BumpCatalog retires every entry computed before the latest catalog change.
func (c *RecommendationCache) BumpCatalog(ctx context.Context) {
	c.bump(ctx, catalogVersionKey)
}

func (c *RecommendationCache) bump(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if _, err := c.kv.Incr(ctx, key); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to bump data version")
	}
}

func (c *RecommendationCache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup("recommendations", hit)
	}
}
