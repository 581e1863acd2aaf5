package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StructureCache remembers Chorus Pro structure ids by SIRET.
type StructureCache interface {
	Get(ctx context.Context, siret string) (id int64, ok bool, err error)
	Set(ctx context.Context, siret string, id int64) error
}

// DefaultStructureTTL is how long a SIRET lookup stays cached.
const DefaultStructureTTL = 24 * time.Hour

// RedisStructureCache stores ids under "chorus:structure:<siret>".
type RedisStructureCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStructureCache connects to redisURL and checks the connection.
func NewRedisStructureCache(redisURL string, ttl time.Duration) (*RedisStructureCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStructureCacheWithClient(client, ttl), nil
}

// NewRedisStructureCacheWithClient wraps an existing client.
func NewRedisStructureCacheWithClient(client *redis.Client, ttl time.Duration) *RedisStructureCache {
	if ttl <= 0 {
		ttl = DefaultStructureTTL
	}
	return &RedisStructureCache{client: client, ttl: ttl}
}

func structureKey(siret string) string {
	return "chorus:structure:" + siret
}

func (c *RedisStructureCache) Get(ctx context.Context, siret string) (int64, bool, error) {
	id, err := c.client.Get(ctx, structureKey(siret)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (c *RedisStructureCache) Set(ctx context.Context, siret string, id int64) error {
	return c.client.Set(ctx, structureKey(siret), id, c.ttl).Err()
}

// Close releases the Redis connection pool.
func (c *RedisStructureCache) Close() error {
	return c.client.Close()
}
