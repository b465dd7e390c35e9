package cache

import (
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/sirupsen/logrus"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	c := NewCache(&config.CacheConfig{Enabled: true, TTL: ttl, MaxSize: maxSize}, log)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now
	return c, clock
}

func TestGetAfterSet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 0)

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Fatalf("Get() = %q, %v; want v, true", got, ok)
	}
}

func TestGetAfterTTLIsAbsentAndRemoved(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 0)

	c.Set("k", "v")
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry should still be visible before ttl")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be absent once ttl has elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be removed on read, len = %d", c.Len())
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 0)

	c.Set("old", "1")
	clock.Advance(2 * time.Minute)
	c.Set("fresh", "2")

	if n := c.Cleanup(); n != 1 {
		t.Errorf("first Cleanup removed %d, want 1", n)
	}
	if n := c.Cleanup(); n != 0 {
		t.Errorf("second Cleanup removed %d, want 0", n)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive cleanup")
	}
}

func TestSetOverwritesAndRefreshes(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 0)

	c.Set("k", "first")
	clock.Advance(50 * time.Second)
	c.Set("k", "second")
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != "second" {
		t.Fatalf("Get() = %q, %v; want second, true", got, ok)
	}
}

func TestMaxSizeEvictsOldest(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 2)

	c.Set("a", "1")
	clock.Advance(time.Second)
	c.Set("b", "2")
	clock.Advance(time.Second)
	c.Set("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewCache(&config.CacheConfig{Enabled: false}, nil)
	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Fatal("disabled cache should never hit")
	}
	if c.Cleanup() != 0 {
		t.Fatal("disabled cache cleanup should be a no-op")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			c.Set(key, "v")
			c.Get(key)
			if i%10 == 0 {
				clock.Advance(time.Second)
				c.Cleanup()
			}
		}(i)
	}
	wg.Wait()
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("write a heist", models.HintPrimary)
	if a != Fingerprint("write a heist", models.HintPrimary) {
		t.Fatal("fingerprint must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a))
	}
	if Fingerprint("write a heist", models.HintNone) != Fingerprint("write a heist", models.HintAuto) {
		t.Error("missing hint should key as auto")
	}

	distinct := []string{
		Fingerprint("write a heist", models.HintSecondary),
		Fingerprint("write a heist!", models.HintPrimary),
		Fingerprint("a:b", "c"),
		Fingerprint("a", "b:c"),
	}
	seen := map[string]bool{a: true}
	for _, fp := range distinct {
		if seen[fp] {
			t.Errorf("unexpected fingerprint collision: %s", fp)
		}
		seen[fp] = true
	}
}
