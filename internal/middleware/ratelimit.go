package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ErrRateLimited is returned when a client has used its quota for the current window
var ErrRateLimited = errors.New("rate limit exceeded")

const (
	defaultQuota  = 60
	defaultWindow = time.Minute
)

// RateLimiter interface for rate limiting
type RateLimiter interface {
	Admit(ctx context.Context, clientID string) error
	Reset(ctx context.Context, clientID string)
}

// NewRateLimiter creates the limiter selected by the configuration. rdb is only
// used by the redis backend.
func NewRateLimiter(cfg *config.RateLimitConfig, rdb *redis.Client, logger *logrus.Logger) (RateLimiter, error) {
	if !cfg.Enabled {
		return &SlidingWindowLimiter{enabled: false}, nil
	}

	switch cfg.Backend {
	case "", "memory":
		return NewSlidingWindowLimiter(cfg.RequestsPerMinute, cfg.Window, logger), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("%w: redis rate limit backend requires a redis client", config.ErrInvalidConfiguration)
		}
		return NewRedisLimiter(rdb, cfg.RequestsPerMinute, cfg.Window, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown rate limit backend %q", config.ErrInvalidConfiguration, cfg.Backend)
	}
}

// SlidingWindowLimiter admits at most quota requests per client within any
// trailing window. State is per process.
type SlidingWindowLimiter struct {
	enabled bool
	mu      sync.Mutex
	windows map[string][]time.Time
	quota   int
	window  time.Duration
	now     func() time.Time
	logger  *logrus.Logger
}

// NewSlidingWindowLimiter creates a new in-memory limiter
func NewSlidingWindowLimiter(quota int, window time.Duration, logger *logrus.Logger) *SlidingWindowLimiter {
	if quota <= 0 {
		quota = defaultQuota
	}
	if window <= 0 {
		window = defaultWindow
	}

	return &SlidingWindowLimiter{
		enabled: true,
		windows: make(map[string][]time.Time),
		quota:   quota,
		window:  window,
		now:     time.Now,
		logger:  logger,
	}
}

// Admit records a request for clientID or rejects it with ErrRateLimited
func (r *SlidingWindowLimiter) Admit(_ context.Context, clientID string) error {
	if !r.enabled {
		return nil
	}

	r.mu.Lock()
	now := r.now()
	stamps := r.prune(r.windows[clientID], now)
	if len(stamps) >= r.quota {
		r.windows[clientID] = stamps
		r.mu.Unlock()

		r.logger.WithFields(logrus.Fields{
			"client_id": clientID,
			"quota":     r.quota,
		}).Warn("Rate limit exceeded")
		return ErrRateLimited
	}
	r.windows[clientID] = append(stamps, now)
	r.mu.Unlock()

	return nil
}

// Reset forgets the window of a client
func (r *SlidingWindowLimiter) Reset(_ context.Context, clientID string) {
	if !r.enabled {
		return
	}

	r.mu.Lock()
	delete(r.windows, clientID)
	r.mu.Unlock()
}

// Prune drops timestamps outside the window and forgets idle clients. It
// returns the number of clients still tracked.
func (r *SlidingWindowLimiter) Prune() int {
	if !r.enabled {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for clientID, stamps := range r.windows {
		stamps = r.prune(stamps, now)
		if len(stamps) == 0 {
			delete(r.windows, clientID)
			continue
		}
		r.windows[clientID] = stamps
	}
	return len(r.windows)
}

// StartCleanup runs Prune every interval until ctx is done
func (r *SlidingWindowLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	if !r.enabled || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracked := r.Prune()
			r.logger.WithField("clients", tracked).Debug("Rate limiter windows pruned")
		}
	}
}

// prune keeps the timestamps younger than the window. Timestamps are appended
// in order so the survivors are a suffix.
func (r *SlidingWindowLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= r.window {
		i++
	}
	if i == 0 {
		return stamps
	}
	kept := make([]time.Time, len(stamps)-i)
	copy(kept, stamps[i:])
	return kept
}
