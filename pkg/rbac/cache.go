package rbac

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PermissionCache caches resolved permission sets per (user, tenant).
// Implementations must treat a miss as (nil, false, nil).
type PermissionCache interface {
	Get(ctx context.Context, userID, tenantID uuid.UUID) ([]string, bool, error)
	Set(ctx context.Context, userID, tenantID uuid.UUID, codes []string) error

	// InvalidateTenant drops every cached set for the tenant. Called by
	// the deployment pipeline after it mutates the RBAC graph.
	InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error
}

const cacheCodeSeparator = " "

// RedisPermissionCache stores resolved permission sets in Redis with a TTL.
// Codes are stored as a single space-joined string; an empty set is stored
// as an empty string so misses and empty results stay distinguishable.
type RedisPermissionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPermissionCache creates a cache over an existing Redis client.
// A non-positive TTL defaults to one minute.
func NewRedisPermissionCache(client *redis.Client, prefix string, ttl time.Duration) *RedisPermissionCache {
	if prefix == "" {
		prefix = "rbac"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisPermissionCache{client: client, prefix: prefix, ttl: ttl}
}

var _ PermissionCache = (*RedisPermissionCache)(nil)

func (c *RedisPermissionCache) key(userID, tenantID uuid.UUID) string {
	return fmt.Sprintf("%s:perms:%s:%s", c.prefix, tenantID, userID)
}

func (c *RedisPermissionCache) Get(ctx context.Context, userID, tenantID uuid.UUID) ([]string, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID, tenantID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	if val == "" {
		return nil, true, nil
	}
	return strings.Split(val, cacheCodeSeparator), true, nil
}

func (c *RedisPermissionCache) Set(ctx context.Context, userID, tenantID uuid.UUID, codes []string) error {
	return c.client.Set(ctx, c.key(userID, tenantID), strings.Join(codes, cacheCodeSeparator), c.ttl).Err()
}

func (c *RedisPermissionCache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	pattern := fmt.Sprintf("%s:perms:%s:*", c.prefix, tenantID)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
