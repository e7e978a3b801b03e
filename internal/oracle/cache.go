package oracle

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopradar/shopradar/internal/service"
)

// cacheEntry represents a memoized prediction.
type cacheEntry struct {
	expiry     time.Time
	prediction service.Prediction
}

// predictionCache provides thread-safe memoization of oracle predictions.
// Scoring a cached review snapshot on every request would re-bill the model
// and LLM endpoints for identical input; this keeps the re-derivation cheap.
type predictionCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// newPredictionCache creates a new cache with the specified TTL.
func newPredictionCache(ttl time.Duration) *predictionCache {
	if ttl == 0 {
		ttl = 15 * time.Minute // Default TTL
	}

	cache := &predictionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// cacheKey derives a stable key for a batch of texts.
func cacheKey(texts []string) string {
	hash := sha256.Sum256([]byte(strings.Join(texts, "\x1f")))
	return fmt.Sprintf("%x", hash)
}

// get retrieves a prediction from the cache if it exists and hasn't expired.
func (c *predictionCache) get(key string) (service.Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists {
		return service.Prediction{}, false
	}

	if time.Now().After(entry.expiry) {
		return service.Prediction{}, false
	}

	return entry.prediction, true
}

// set stores a prediction in the cache.
func (c *predictionCache) set(key string, prediction service.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		prediction: prediction,
		expiry:     time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *predictionCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// clear removes all entries from the cache.
func (c *predictionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// size returns the number of entries in the cache.
func (c *predictionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *predictionCache) Close() {
	close(c.stopCh)
}
