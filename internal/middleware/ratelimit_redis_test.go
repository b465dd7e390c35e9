package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/go-redis/redis/v8"
)

func newTestRedisLimiter(t *testing.T, mr *miniredis.Miniredis, quota int) (*RedisLimiter, *time.Time) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewRedisLimiter(rdb, quota, time.Minute, quietLogger())
	l.now = func() time.Time { return now }
	return l, &now
}

func TestRedisLimiterWindow(t *testing.T) {
	l, now := newTestRedisLimiter(t, miniredis.RunT(t), 3)
	ctx := context.Background()

	steps := []struct {
		name    string
		advance time.Duration
		wantErr bool
	}{
		{"first", 0, false},
		{"second", time.Second, false},
		{"third", time.Second, false},
		{"fourth within window", time.Second, true},
		{"still within window", 50 * time.Second, true},
		{"after the first stamp ages out", 7500 * time.Millisecond, false},
		{"window full again", 0, true},
		{"after the whole window", time.Minute, false},
	}
	for _, s := range steps {
		*now = now.Add(s.advance)
		err := l.Admit(ctx, "10.0.0.1")
		if s.wantErr && !errors.Is(err, ErrRateLimited) {
			t.Fatalf("%s: expected ErrRateLimited, got %v", s.name, err)
		}
		if !s.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", s.name, err)
		}
	}
}

func TestRedisLimiterClientsAreIndependent(t *testing.T) {
	l, _ := newTestRedisLimiter(t, miniredis.RunT(t), 1)
	ctx := context.Background()

	if err := l.Admit(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit(ctx, "a"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second admit for a = %v", err)
	}
	if err := l.Admit(ctx, "b"); err != nil {
		t.Errorf("client b should be unaffected, got %v", err)
	}

	l.Reset(ctx, "a")
	if err := l.Admit(ctx, "a"); err != nil {
		t.Errorf("admit after reset = %v", err)
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	l, _ := newTestRedisLimiter(t, mr, 1)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx, "a"); err != nil {
			t.Fatalf("admit %d with redis down = %v, want nil", i+1, err)
		}
	}
}

func TestNewRateLimiterRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := &config.RateLimitConfig{Enabled: true, Backend: "redis", RequestsPerMinute: 2, Window: time.Minute}
	limiter, err := NewRateLimiter(cfg, rdb, quietLogger())
	if err != nil {
		t.Fatalf("NewRateLimiter() error = %v", err)
	}
	if _, ok := limiter.(*RedisLimiter); !ok {
		t.Fatalf("limiter is %T, want *RedisLimiter", limiter)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := limiter.Admit(ctx, "c"); err != nil {
			t.Fatalf("admit %d = %v", i+1, err)
		}
	}
	if err := limiter.Admit(ctx, "c"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("third admit = %v, want ErrRateLimited", err)
	}
}
