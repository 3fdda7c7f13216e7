package port

import (
	"context"
	"time"
)

// Cache is a TTL key/value store used by the MFA providers for codes,
// attempt counters, and replay markers. Increment and SetIfAbsent must be
// atomic; without that guarantee concurrent verification attempts could
// each pass the attempt gate or reuse a consumed code.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}
