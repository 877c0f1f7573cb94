package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/textgate/textgate/internal/store"
	"github.com/textgate/textgate/pkg/errors"
	"github.com/textgate/textgate/pkg/logging"
	"github.com/textgate/textgate/pkg/metrics"
)

// Cache status values reported by Stats
const (
	StatusConnected   = "connected"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Config holds response cache configuration
type Config struct {
	KeyPrefix    string                   `json:"key_prefix"`
	DefaultTTL   time.Duration            `json:"default_ttl"`
	OperationTTL map[string]time.Duration `json:"operation_ttl"`
}

// DefaultConfig returns the default per-operation TTL table
func DefaultConfig() *Config {
	return &Config{
		KeyPrefix:  "ai_cache:",
		DefaultTTL: 1 * time.Hour,
		OperationTTL: map[string]time.Duration{
			"summarize":  2 * time.Hour,
			"sentiment":  24 * time.Hour,
			"key_points": 2 * time.Hour,
			"questions":  1 * time.Hour,
			"qa":         30 * time.Minute,
		},
	}
}

// Stats is a snapshot of cache availability and usage
type Stats struct {
	Status           string `json:"status"`
	Keys             int    `json:"keys"`
	MemoryUsed       string `json:"memory_used,omitempty"`
	ConnectedClients int    `json:"connected_clients,omitempty"`
}

// ResponseCache caches AI operation responses in a key/TTL store. Every
// store failure degrades to a cache miss or a skipped write; no method
// ever surfaces a store error to the caller. The Connect return value and
// Stats().Status are the only signals that caching is disabled.
type ResponseCache struct {
	store     *store.RedisClient
	config    *Config
	logger    *logging.Logger
	collector *metrics.Metrics

	mutex     sync.RWMutex
	connected bool
}

// NewResponseCache creates a response cache over the given store. The
// collector may be nil. The cache starts disconnected; call Connect.
func NewResponseCache(client *store.RedisClient, config *Config, collector *metrics.Metrics) *ResponseCache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ai_cache:"
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 1 * time.Hour
	}

	return &ResponseCache{
		store:     client,
		config:    config,
		logger:    logging.GetLogger(),
		collector: collector,
	}
}

// Connect probes the backing store. It returns false on any failure and
// never raises; callers run degraded without caching. Calling it again is
// a no-op once connected and a fresh attempt after a previous failure.
func (c *ResponseCache) Connect(ctx context.Context) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.connected {
		return true
	}

	if c.store == nil {
		c.logger.Warn("Response cache has no backing store, running without cache")
		return false
	}

	if err := c.store.Ping(ctx); err != nil {
		c.logger.Warn("Response cache store unreachable, running without cache",
			"error", err.Error(),
		)
		return false
	}

	c.connected = true
	c.logger.Info("Response cache connected")
	return true
}

// Connected reports whether the backing store connection is established
func (c *ResponseCache) Connected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.connected
}

// GetCachedResponse returns the cached payload for a request, or nil on a
// miss. A disconnected cache or a store failure is a miss, never an error.
func (c *ResponseCache) GetCachedResponse(ctx context.Context, text, operation string, options map[string]interface{}, question string) map[string]interface{} {
	key, err := cacheKey(c.config.KeyPrefix, text, operation, options, question)
	if err != nil {
		c.logger.Warn("Failed to derive cache key",
			"operation", operation,
			"error", err.Error(),
		)
		return nil
	}

	var payload map[string]interface{}
	hit := false

	ok := c.guarded("get", operation, func() error {
		data, err := c.store.Get(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil
			}
			return err
		}

		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return err
		}
		hit = true
		return nil
	})

	if !ok {
		return nil
	}
	if !hit {
		c.recordOutcome("get", "miss")
		return nil
	}

	c.recordOutcome("get", "hit")
	c.logger.Debug("Cache hit",
		"operation", operation,
	)
	return payload
}

// CacheResponse stores a response payload under the request's derived key
// with the operation's TTL. The stored payload is merged with cached_at
// and cache_hit marker fields. Store failures are logged and swallowed.
func (c *ResponseCache) CacheResponse(ctx context.Context, text, operation string, options map[string]interface{}, response map[string]interface{}, question string) {
	key, err := cacheKey(c.config.KeyPrefix, text, operation, options, question)
	if err != nil {
		c.logger.Warn("Failed to derive cache key",
			"operation", operation,
			"error", err.Error(),
		)
		return
	}

	entry := make(map[string]interface{}, len(response)+2)
	for k, v := range response {
		entry[k] = v
	}
	entry["cached_at"] = time.Now().UTC().Format(time.RFC3339)
	entry["cache_hit"] = true

	if c.guarded("set", operation, func() error {
		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return c.store.Set(ctx, key, data, c.TTLFor(operation))
	}) {
		c.recordOutcome("set", "stored")
	}
}

// InvalidatePattern deletes every cached entry whose key contains the
// given substring. Zero matches is not an error.
func (c *ResponseCache) InvalidatePattern(ctx context.Context, pattern string) {
	c.guarded("invalidate", pattern, func() error {
		keys, err := c.store.Keys(ctx, c.config.KeyPrefix+"*"+pattern+"*")
		if err != nil {
			return err
		}

		if len(keys) == 0 {
			return nil
		}

		deleted, err := c.store.Del(ctx, keys...)
		if err != nil {
			return err
		}

		c.logger.Info("Invalidated cache entries",
			"pattern", pattern,
			"deleted", deleted,
		)
		return nil
	})
}

// GetCacheStats returns current availability and usage counters
func (c *ResponseCache) GetCacheStats(ctx context.Context) Stats {
	if !c.Connected() {
		return Stats{Status: StatusUnavailable}
	}

	keys, err := c.store.Keys(ctx, c.config.KeyPrefix+"*")
	if err != nil {
		c.logger.Warn("Failed to read cache stats",
			"error", err.Error(),
		)
		return Stats{Status: StatusError}
	}

	stats := Stats{
		Status: StatusConnected,
		Keys:   len(keys),
	}

	// INFO fields are best-effort; not every store implementation
	// provides them.
	if info, err := c.store.Info(ctx, "memory"); err == nil {
		stats.MemoryUsed = infoField(info, "used_memory_human")
	}
	if info, err := c.store.Info(ctx, "clients"); err == nil {
		if n, err := strconv.Atoi(infoField(info, "connected_clients")); err == nil {
			stats.ConnectedClients = n
		}
	}

	return stats
}

// TTLFor resolves the TTL for an operation, falling back to the default
// for unknown operation names.
func (c *ResponseCache) TTLFor(operation string) time.Duration {
	if ttl, ok := c.config.OperationTTL[operation]; ok {
		return ttl
	}
	return c.config.DefaultTTL
}

// guarded runs one store operation under the degrade contract: skipped
// when disconnected, and any failure is logged at warning level and
// absorbed. It returns false when the operation did not complete.
func (c *ResponseCache) guarded(op, detail string, fn func() error) bool {
	if !c.Connected() {
		c.recordOutcome(op, "skipped")
		return false
	}

	start := time.Now()
	if err := fn(); err != nil {
		c.logger.Warn("Cache operation failed, degrading",
			"cache_op", op,
			"detail", detail,
			"error", err.Error(),
		)
		if c.collector != nil {
			c.collector.RecordCacheOperation(op, "error", time.Since(start))
		}
		return false
	}

	return true
}

func (c *ResponseCache) recordOutcome(op, result string) {
	if c.collector != nil {
		c.collector.RecordCacheOperation(op, result, 0)
	}
}

// infoField extracts a single "field:value" line from Redis INFO output
func infoField(info, field string) string {
	for _, line := range strings.Split(info, "\n") {
		if strings.HasPrefix(line, field+":") {
			return strings.TrimSpace(strings.TrimPrefix(line, field+":"))
		}
	}
	return ""
}
