package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/valcriss/sovrane/internal/core/port"
	"github.com/valcriss/sovrane/internal/repository"
)

const defaultCachePrefix = "sovrane"

// CacheRepository implements port.Cache on Redis. Both MFA variants store
// their codes, attempt counters, and replay markers through it.
type CacheRepository struct {
	client *red.Client
	prefix string
}

// NewCacheRepository constructs a cache repository with the provided
// client and key prefix.
func NewCacheRepository(client *red.Client, keyPrefix string) *CacheRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCachePrefix
	}

	return &CacheRepository{client: client, prefix: prefix}
}

// Get returns the value stored under key, or repository.ErrNotFound.
func (r *CacheRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores the value under key with the supplied TTL.
func (r *CacheRepository) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// SetIfAbsent stores the value only when the key does not exist yet.
// Returns false when another writer got there first.
func (r *CacheRepository) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Increment atomically increments the counter under key, applying the TTL
// when the counter is created.
func (r *CacheRepository) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	full := r.key(key)

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr: %w", err)
	}

	if count == 1 && ttl > 0 {
		if err := r.client.Expire(ctx, full, ttl).Err(); err != nil {
			return 0, fmt.Errorf("redis expire: %w", err)
		}
	}

	return count, nil
}

// Delete removes the key. Missing keys are not an error.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *CacheRepository) key(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

var _ port.Cache = (*CacheRepository)(nil)
