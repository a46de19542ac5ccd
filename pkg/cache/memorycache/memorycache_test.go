package memorycache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T, maxSize int64) *Cache {
	t.Helper()
	c, err := New(&Config{
		MaxSizeBytes:  maxSize,
		DefaultTTL:    time.Minute,
		EnableMetrics: true,
	})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	if err := cache.Set(ctx, "key1", "value1", time.Minute); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	value, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}

	_, found = cache.Get(ctx, "nonexistent")
	if found {
		t.Error("expected not to find nonexistent key")
	}
}

func TestCache_TTLExpiration(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	if err := cache.Set(ctx, "key1", "value1", 50*time.Millisecond); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	_, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1 before expiration")
	}

	time.Sleep(100 * time.Millisecond)

	_, found = cache.Get(ctx, "key1")
	if found {
		t.Error("expected not to find key1 after expiration")
	}
}

func TestCache_DefaultTTLFallback(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	// Non-positive TTL falls back to the configured default
	if err := cache.Set(ctx, "key1", "value1", 0); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}

	_, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected default TTL to keep key1 alive")
	}
}

func TestCache_LRUEviction(t *testing.T) {
	// Room for roughly two baseline-sized entries
	cache := newTestCache(t, 250)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		if err := cache.Set(ctx, key, i, time.Minute); err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
	}

	if cache.Len() >= 10 {
		t.Errorf("expected less than 10 items due to eviction, got %d", cache.Len())
	}

	// Most recent item survives
	if _, found := cache.Get(ctx, "j"); !found {
		t.Error("expected to find most recent item 'j'")
	}

	metrics := cache.Metrics()
	if metrics.KeysEvicted == 0 {
		t.Error("expected evictions to be recorded")
	}
}

func TestCache_GetRefreshesRecency(t *testing.T) {
	cache := newTestCache(t, 250)
	ctx := context.Background()

	cache.Set(ctx, "a", 1, time.Minute)
	cache.Set(ctx, "b", 2, time.Minute)

	// Touch "a" so "b" becomes the eviction candidate
	cache.Get(ctx, "a")
	cache.Set(ctx, "c", 3, time.Minute)

	if _, found := cache.Get(ctx, "a"); !found {
		t.Error("expected recently read 'a' to survive eviction")
	}
}

type sizedValue struct {
	bytes int64
}

func (v sizedValue) CacheSize() int64 { return v.bytes }

func TestCache_SizerAccounting(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	cache.Set(ctx, "big", sizedValue{bytes: 5000}, time.Minute)

	// baseline + key length + reported size
	want := int64(baselineEntrySize + len("big") + 5000)
	if cache.Size() != want {
		t.Errorf("expected accounted size %d, got %d", want, cache.Size())
	}

	cache.Set(ctx, "big", sizedValue{bytes: 100}, time.Minute)
	want = int64(baselineEntrySize + len("big") + 100)
	if cache.Size() != want {
		t.Errorf("expected accounted size %d after update, got %d", want, cache.Size())
	}
}

func TestCache_Delete(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", time.Minute)
	if _, found := cache.Get(ctx, "key1"); !found {
		t.Error("expected to find key1")
	}

	if err := cache.Delete(ctx, "key1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, found := cache.Get(ctx, "key1"); found {
		t.Error("expected not to find key1 after deletion")
	}

	if err := cache.Delete(ctx, "nonexistent"); err != nil {
		t.Fatalf("delete of non-existent key should not error: %v", err)
	}
}

func TestCache_Clear(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", time.Minute)
	cache.Set(ctx, "key2", "value2", time.Minute)
	cache.Set(ctx, "key3", "value3", time.Minute)

	if cache.Len() != 3 {
		t.Errorf("expected 3 items, got %d", cache.Len())
	}

	if err := cache.Clear(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	if cache.Len() != 0 {
		t.Errorf("expected 0 items after clear, got %d", cache.Len())
	}
	if cache.Size() != 0 {
		t.Errorf("expected 0 accounted bytes after clear, got %d", cache.Size())
	}
}

func TestCache_Metrics(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	metrics := cache.Metrics()
	if metrics.Hits != 0 || metrics.Misses != 0 {
		t.Errorf("expected 0 hits and misses initially, got %d hits and %d misses", metrics.Hits, metrics.Misses)
	}

	cache.Set(ctx, "key1", "value1", time.Minute)

	cache.Get(ctx, "key1")
	metrics = cache.Metrics()
	if metrics.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", metrics.Hits)
	}

	cache.Get(ctx, "nonexistent")
	metrics = cache.Metrics()
	if metrics.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", metrics.Misses)
	}

	expectedHitRate := 0.5 // 1 hit, 1 miss
	if metrics.HitRate() != expectedHitRate {
		t.Errorf("expected hit rate %f, got %f", expectedHitRate, metrics.HitRate())
	}
}

func TestCache_UpdateExisting(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	cache.Set(ctx, "key1", "value1", time.Minute)
	cache.Set(ctx, "key1", "value2", time.Minute)

	value, found := cache.Get(ctx, "key1")
	if !found {
		t.Error("expected to find key1")
	}
	if value != "value2" {
		t.Errorf("expected value2, got %v", value)
	}

	if cache.Len() != 1 {
		t.Errorf("expected 1 item, got %d", cache.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := newTestCache(t, 1024*1024)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				cache.Set(ctx, key, j, time.Minute)
				cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if cache.Len() != 10 {
		t.Errorf("expected 10 items, got %d", cache.Len())
	}
}
