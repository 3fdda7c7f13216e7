package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/valcriss/sovrane/internal/repository"
)

func newTestCache(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCacheRepository(client, "test"), mr
}

func TestCacheRepositoryGetSet(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	if _, err := cache.Get(ctx, "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want repository.ErrNotFound", err)
	}

	if err := cache.Set(ctx, "mfa:email:code:u1", "123456", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, err := cache.Get(ctx, "mfa:email:code:u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if value != "123456" {
		t.Fatalf("Get() = %q, want %q", value, "123456")
	}

	// Keys are namespaced under the configured prefix.
	if !mr.Exists("test:mfa:email:code:u1") {
		t.Fatal("key not stored under prefix")
	}
}

func TestCacheRepositorySetExpiry(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	if err := cache.Set(ctx, "code", "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "code"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get(expired) = %v, want repository.ErrNotFound", err)
	}
}

func TestCacheRepositorySetIfAbsent(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	fresh, err := cache.SetIfAbsent(ctx, "replay:u1:123456", "1", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if !fresh {
		t.Fatal("first SetIfAbsent() = false, want true")
	}

	fresh, err = cache.SetIfAbsent(ctx, "replay:u1:123456", "1", time.Minute)
	if err != nil {
		t.Fatalf("SetIfAbsent() error = %v", err)
	}
	if fresh {
		t.Fatal("second SetIfAbsent() = true, want false")
	}
}

func TestCacheRepositoryIncrement(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)

	for want := int64(1); want <= 3; want++ {
		count, err := cache.Increment(ctx, "attempts:u1", time.Minute)
		if err != nil {
			t.Fatalf("Increment() error = %v", err)
		}
		if count != want {
			t.Fatalf("Increment() = %d, want %d", count, want)
		}
	}

	// The TTL is attached when the counter is created, so the whole window
	// expires together.
	if ttl := mr.TTL("test:attempts:u1"); ttl != time.Minute {
		t.Fatalf("counter TTL = %v, want %v", ttl, time.Minute)
	}

	mr.FastForward(2 * time.Minute)

	count, err := cache.Increment(ctx, "attempts:u1", time.Minute)
	if err != nil {
		t.Fatalf("Increment() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("Increment(after expiry) = %d, want 1", count)
	}
}

func TestCacheRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)

	if err := cache.Set(ctx, "code", "value", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Delete(ctx, "code"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := cache.Get(ctx, "code"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Get(deleted) = %v, want repository.ErrNotFound", err)
	}

	// Deleting an absent key is not an error.
	if err := cache.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("Delete(missing) error = %v", err)
	}
}

func TestCacheRepositoryDefaultPrefix(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewCacheRepository(client, "  ")

	if err := cache.Set(ctx, "key", "value", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists("sovrane:key") {
		t.Fatal("blank prefix did not fall back to the default")
	}
}
