package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// slidingWindowScript prunes, counts and records in one atomic step.
// KEYS[1] window key; ARGV: now ms, window ms, quota, member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local quota = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= quota then
	return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RedisLimiter is a sliding window limiter shared by every process pointed at
// the same redis. It fails open when redis is unreachable.
type RedisLimiter struct {
	rdb    *redis.Client
	quota  int
	window time.Duration
	prefix string
	now    func() time.Time
	logger *logrus.Logger
}

// NewRedisLimiter creates a redis backed limiter
func NewRedisLimiter(rdb *redis.Client, quota int, window time.Duration, logger *logrus.Logger) *RedisLimiter {
	if quota <= 0 {
		quota = defaultQuota
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &RedisLimiter{
		rdb:    rdb,
		quota:  quota,
		window: window,
		prefix: "ratelimit:",
		now:    time.Now,
		logger: logger,
	}
}

// Admit records a request for clientID or rejects it with ErrRateLimited
func (r *RedisLimiter) Admit(ctx context.Context, clientID string) error {
	allowed, err := slidingWindowScript.Run(ctx, r.rdb,
		[]string{r.key(clientID)},
		r.now().UnixMilli(),
		r.window.Milliseconds(),
		r.quota,
		uuid.NewString(),
	).Int()
	if err != nil {
		r.logger.WithError(err).WithField("client_id", clientID).Warn("Rate limiter unavailable, admitting request")
		return nil
	}

	if allowed == 0 {
		r.logger.WithFields(logrus.Fields{
			"client_id": clientID,
			"quota":     r.quota,
		}).Warn("Rate limit exceeded")
		return ErrRateLimited
	}
	return nil
}

// Reset forgets the window of a client
func (r *RedisLimiter) Reset(ctx context.Context, clientID string) {
	if err := r.rdb.Del(ctx, r.key(clientID)).Err(); err != nil {
		r.logger.WithError(err).WithField("client_id", clientID).Warn("Failed to reset rate limit window")
	}
}

func (r *RedisLimiter) key(clientID string) string {
	return fmt.Sprintf("%s%s", r.prefix, clientID)
}
