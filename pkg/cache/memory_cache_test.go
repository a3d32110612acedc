package cache

import (
	"testing"
	"time"
)

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	// Set and Get
	cache.Set("key1", "value1", time.Hour)
	value, exists := cache.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	// TTL expiration
	cache.Set("key2", "value2", time.Millisecond*100)
	time.Sleep(time.Millisecond * 200)
	_, exists = cache.Get("key2")
	if exists {
		t.Error("Expected key2 to be expired")
	}

	// Zero TTL never expires
	cache.Set("key3", "value3", 0)
	time.Sleep(time.Millisecond * 50)
	_, exists = cache.Get("key3")
	if !exists {
		t.Error("Expected key3 to survive with zero TTL")
	}

	// Delete
	cache.Set("key4", "value4", time.Hour)
	cache.Delete("key4")
	_, exists = cache.Get("key4")
	if exists {
		t.Error("Expected key4 to be deleted")
	}

	// Clear
	cache.Set("key5", "value5", time.Hour)
	cache.Set("key6", "value6", time.Hour)
	cache.Clear()
	all := cache.GetAll()
	if len(all) != 0 {
		t.Error("Expected cache to be empty after Clear")
	}
}

func TestMemoryCacheGetAllSkipsExpired(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	cache.Set("live", 1, time.Hour)
	cache.Set("dead", 2, time.Millisecond*50)
	time.Sleep(time.Millisecond * 100)

	all := cache.GetAll()
	if len(all) != 1 {
		t.Fatalf("Expected 1 live entry, got %d", len(all))
	}
	if _, ok := all["live"]; !ok {
		t.Error("Expected live entry to be present")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Second)
	defer limiter.Close()

	// Within limit
	for i := 0; i < 3; i++ {
		if !limiter.Allow("client1") {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	// Over limit
	if limiter.Allow("client1") {
		t.Error("Expected request to be rate limited")
	}

	// Different key
	if !limiter.Allow("client2") {
		t.Error("Expected request for different client to be allowed")
	}

	// Reset
	limiter.Reset("client1")
	if !limiter.Allow("client1") {
		t.Error("Expected request after reset to be allowed")
	}
}

func TestRateLimiterWindowRollover(t *testing.T) {
	limiter := NewRateLimiter(1, time.Millisecond*100)
	defer limiter.Close()

	if !limiter.Allow("client") {
		t.Fatal("Expected first request to be allowed")
	}
	if limiter.Allow("client") {
		t.Fatal("Expected second request to be limited")
	}

	time.Sleep(time.Millisecond * 150)
	if !limiter.Allow("client") {
		t.Error("Expected request in fresh window to be allowed")
	}
}
