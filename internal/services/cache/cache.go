package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/cf-ai-screenwriter-go/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// DefaultTTL applies when the configuration leaves the ttl unset
const DefaultTTL = 30 * time.Minute

// Service defines cache operations
type Service interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Cleanup() int
	Clear()
}

// Cache is a time-bounded response cache. Entries are stored without a
// go-cache expiration; age is checked against ttl on every read so a stale
// entry is never returned and is removed in the same critical section.
type Cache struct {
	enabled bool
	mu      sync.Mutex
	items   *cache.Cache
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	logger  *logrus.Logger
}

// NewCache creates a new cache service
func NewCache(cfg *config.CacheConfig, logger *logrus.Logger) *Cache {
	if !cfg.Enabled {
		return &Cache{enabled: false}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		enabled: true,
		items:   cache.New(cache.NoExpiration, 0),
		ttl:     ttl,
		maxSize: cfg.MaxSize,
		now:     time.Now,
		logger:  logger,
	}
}

// Get retrieves a cached response, dropping it if it has outlived the ttl
func (c *Cache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	val, found := c.items.Get(key)
	if !found {
		return "", false
	}

	entry := val.(*models.CacheEntry)
	if c.expired(entry) {
		c.items.Delete(key)
		c.logger.WithField("key", key).Debug("Cache entry expired")
		return "", false
	}

	c.logger.WithFields(logrus.Fields{
		"key": key,
		"age": c.now().Sub(entry.CreatedAt),
	}).Debug("Cache hit")
	return entry.Value, true
}

// Set stores a response in cache
func (c *Cache) Set(key, value string) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 {
		if _, exists := c.items.Get(key); !exists && c.items.ItemCount() >= c.maxSize {
			c.logger.Warn("Cache size limit reached, clearing old entries")
			if c.cleanupLocked() == 0 {
				c.evictOldestLocked()
			}
		}
	}

	c.items.Set(key, &models.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: c.now(),
	}, cache.NoExpiration)
}

// Cleanup removes every entry older than ttl and returns how many were dropped
func (c *Cache) Cleanup() int {
	if !c.enabled {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

// Clear removes all cached entries
func (c *Cache) Clear() {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.items.Flush()
	c.mu.Unlock()
	c.logger.Info("Cache cleared")
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	if !c.enabled {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.ItemCount()
}

// StartJanitor runs Cleanup every interval until ctx is done
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if !c.enabled || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Cleanup(); n > 0 {
				c.logger.WithField("removed", n).Debug("Expired cache entries removed")
			}
		}
	}
}

func (c *Cache) expired(entry *models.CacheEntry) bool {
	return c.now().Sub(entry.CreatedAt) >= c.ttl
}

func (c *Cache) cleanupLocked() int {
	removed := 0
	for key, item := range c.items.Items() {
		if c.expired(item.Object.(*models.CacheEntry)) {
			c.items.Delete(key)
			removed++
		}
	}
	return removed
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, item := range c.items.Items() {
		entry := item.Object.(*models.CacheEntry)
		if oldestKey == "" || entry.CreatedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.CreatedAt
		}
	}
	if oldestKey != "" {
		c.items.Delete(oldestKey)
	}
}

// Fingerprint derives the cache key for a prompt and provider hint. A missing
// hint is keyed as "auto". The prompt length prefix keeps ("a:b", "c") and
// ("a", "b:c") apart.
func Fingerprint(prompt string, hint models.ProviderHint) string {
	h := string(hint)
	if h == "" {
		h = string(models.HintAuto)
	}
	data := fmt.Sprintf("%d:%s:%s", len(prompt), prompt, h)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
