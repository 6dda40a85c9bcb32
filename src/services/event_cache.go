package services

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultEventCacheSize caps the number of remembered event ids
const DefaultEventCacheSize = 1000

// EventCache remembers which webhook event ids were already admitted for processing.
// Admission is best effort: it suppresses redelivery, it is not a lock.
type EventCache interface {
	// Admit records id and reports true when it was not seen before
	Admit(ctx context.Context, id string) (bool, error)
	// Has reports whether id was already admitted
	Has(ctx context.Context, id string) (bool, error)
	// Clear forgets every admitted id
	Clear(ctx context.Context) error
}

// MemoryEventCache is a per-process bounded set. Once full, the oldest
// admitted id is evicted. Lookups never refresh an entry, so eviction
// follows insertion order.
type MemoryEventCache struct {
	ids *lru.Cache[string, struct{}]
}

// NewMemoryEventCache creates a bounded in-process cache
func NewMemoryEventCache(size int) (*MemoryEventCache, error) {
	if size <= 0 {
		size = DefaultEventCacheSize
	}
	ids, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create event cache: %w", err)
	}
	return &MemoryEventCache{ids: ids}, nil
}

func (c *MemoryEventCache) Admit(_ context.Context, id string) (bool, error) {
	found, _ := c.ids.ContainsOrAdd(id, struct{}{})
	return !found, nil
}

func (c *MemoryEventCache) Has(_ context.Context, id string) (bool, error) {
	return c.ids.Contains(id), nil
}

func (c *MemoryEventCache) Clear(_ context.Context) error {
	c.ids.Purge()
	return nil
}

// Len returns the number of remembered ids
func (c *MemoryEventCache) Len() int {
	return c.ids.Len()
}

const redisEventKeyPrefix = "minutes:event:"

// RedisEventCache shares admitted ids between replicas. Keys expire after ttl
// instead of being capped by count.
type RedisEventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisEventCache connects to redisURL and verifies the connection
func NewRedisEventCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisEventCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return NewRedisEventCacheWithClient(client, ttl), nil
}

// NewRedisEventCacheWithClient wraps an existing client
func NewRedisEventCacheWithClient(client *redis.Client, ttl time.Duration) *RedisEventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventCache{client: client, ttl: ttl}
}

func (c *RedisEventCache) Admit(ctx context.Context, id string) (bool, error) {
	admitted, err := c.client.SetNX(ctx, redisEventKeyPrefix+id, time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("admitting event %s: %w", id, err)
	}
	return admitted, nil
}

func (c *RedisEventCache) Has(ctx context.Context, id string) (bool, error) {
	n, err := c.client.Exists(ctx, redisEventKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("checking event %s: %w", id, err)
	}
	return n > 0, nil
}

func (c *RedisEventCache) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisEventKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scanning event keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting event keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks the Redis connection
func (c *RedisEventCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool
func (c *RedisEventCache) Close() error {
	return c.client.Close()
}
