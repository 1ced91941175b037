package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-catalog-service/internal/domain"
	"storefront-catalog-service/internal/logging"
)

// CategoriesCacheKey holds the full category list.
const CategoriesCacheKey = "catalog:categories:all"

// CategoryCache keeps the full category list between requests. Failures
// are absorbed: a broken cache behaves like an empty one.
type CategoryCache interface {
	Get(ctx context.Context) ([]domain.Category, bool)
	Set(ctx context.Context, categories []domain.Category)
	Invalidate(ctx context.Context)
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) Get(context.Context) ([]domain.Category, bool) { return nil, false }
func (NopCache) Set(context.Context, []domain.Category)         {}
func (NopCache) Invalidate(context.Context)                     {}

// RedisCategoryCache stores the category list as JSON in Redis.
type RedisCategoryCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCategoryCache creates a cache entry that lives for ttl.
func NewRedisCategoryCache(client redis.Cmdable, ttl time.Duration) *RedisCategoryCache {
	return &RedisCategoryCache{client: client, ttl: ttl}
}

func (c *RedisCategoryCache) Get(ctx context.Context) ([]domain.Category, bool) {
	data, err := c.client.Get(ctx, CategoriesCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Warn("category_cache_read_failed")
		}
		return nil, false
	}
	var cats []domain.Category
	if err := json.Unmarshal(data, &cats); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("category_cache_corrupt")
		c.Invalidate(ctx)
		return nil, false
	}
	return cats, true
}

func (c *RedisCategoryCache) Set(ctx context.Context, categories []domain.Category) {
	data, err := json.Marshal(categories)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("category_cache_encode_failed")
		return
	}
	if err := c.client.Set(ctx, CategoriesCacheKey, data, c.ttl).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("category_cache_write_failed")
	}
}

func (c *RedisCategoryCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, CategoriesCacheKey).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("category_cache_invalidate_failed")
	}
}
