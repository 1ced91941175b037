package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"storefront-catalog-service/internal/domain"
)

// An unreachable Redis must behave like an empty cache.
func TestRedisCategoryCache_DegradesWhenUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewRedisCategoryCache(client, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, []domain.Category{{ID: 1, Name: "Irrigation Systems", Slug: "irrigation-systems"}})
	cats, ok := cache.Get(ctx)
	assert.False(t, ok)
	assert.Nil(t, cats)
	cache.Invalidate(ctx)
}

func TestQueryEngine_FallsBackToStoreWhenCacheIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	engine := NewQueryEngine(newTestStore(t), NewRedisCategoryCache(client, time.Minute))

	cats, err := engine.ListCategories(context.Background())
	assert.NoError(t, err)
	assert.Len(t, cats, 3)
}
