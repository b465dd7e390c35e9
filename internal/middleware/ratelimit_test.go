package middleware

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestLimiter(quota int) (*SlidingWindowLimiter, *time.Time) {
	l := NewSlidingWindowLimiter(quota, time.Minute, quietLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestQuotaWithinWindow(t *testing.T) {
	l, now := newTestLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("admission %d rejected: %v", i+1, err)
		}
		*now = now.Add(10 * time.Second)
	}

	err := l.Admit(ctx, "10.0.0.1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("4th admission = %v, want ErrRateLimited", err)
	}
	if err.Error() != "rate limit exceeded" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestAdmitAfterWindowElapses(t *testing.T) {
	l, now := newTestLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Admit(ctx, "c"); err != nil {
			t.Fatalf("admission %d rejected: %v", i+1, err)
		}
	}
	if err := l.Admit(ctx, "c"); err == nil {
		t.Fatal("expected rejection inside the window")
	}

	*now = now.Add(time.Minute)
	if err := l.Admit(ctx, "c"); err != nil {
		t.Fatalf("admission after window elapsed rejected: %v", err)
	}
}

func TestRejectionsDoNotExtendWindow(t *testing.T) {
	l, now := newTestLimiter(1)
	ctx := context.Background()

	if err := l.Admit(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		*now = now.Add(10 * time.Second)
		_ = l.Admit(ctx, "c")
	}
	*now = now.Add(10 * time.Second)
	if err := l.Admit(ctx, "c"); err != nil {
		t.Fatalf("rejected requests must not be recorded: %v", err)
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1)
	ctx := context.Background()

	if err := l.Admit(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit(ctx, "b"); err != nil {
		t.Fatalf("client b should have its own window: %v", err)
	}
	if err := l.Admit(ctx, "a"); err == nil {
		t.Fatal("client a should be limited")
	}

	l.Reset(ctx, "a")
	if err := l.Admit(ctx, "a"); err != nil {
		t.Fatalf("reset should clear the window: %v", err)
	}
}

func TestPruneForgetsIdleClients(t *testing.T) {
	l, now := newTestLimiter(5)
	ctx := context.Background()

	_ = l.Admit(ctx, "a")
	*now = now.Add(30 * time.Second)
	_ = l.Admit(ctx, "b")
	*now = now.Add(45 * time.Second)

	if tracked := l.Prune(); tracked != 1 {
		t.Fatalf("tracked clients = %d, want 1", tracked)
	}
}

func TestConcurrentAdmitsNeverExceedQuota(t *testing.T) {
	l := NewSlidingWindowLimiter(10, time.Minute, quietLogger())
	ctx := context.Background()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(ctx, "shared") == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != 10 {
		t.Fatalf("admitted %d, want exactly 10", got)
	}
}

func TestNewRateLimiterBackends(t *testing.T) {
	disabled, err := NewRateLimiter(&config.RateLimitConfig{Enabled: false}, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		if err := disabled.Admit(context.Background(), "x"); err != nil {
			t.Fatal("disabled limiter should admit everything")
		}
	}

	_, err = NewRateLimiter(&config.RateLimitConfig{Enabled: true, Backend: "redis", RequestsPerMinute: 5}, nil, quietLogger())
	if !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("redis backend without client = %v, want ErrInvalidConfiguration", err)
	}

	_, err = NewRateLimiter(&config.RateLimitConfig{Enabled: true, Backend: "etcd"}, nil, quietLogger())
	if !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("unknown backend = %v, want ErrInvalidConfiguration", err)
	}
}
