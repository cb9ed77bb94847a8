package forecast

import (
	"sync"
	"time"

	"github.com/maximepiton/raspit/pkg/logger"
)

// Cache holds the current datasets, latest day first. Entries are replaced
// wholesale, readers never observe a partially updated history.
type Cache struct {
	data        *Dataset
	days        []*Dataset
	lastUpdated time.Time
	expiresAt   time.Time
	lastError   error
	lastErrorAt time.Time
	updates     int
	failures    int

	expiry time.Duration
	logger *logger.Logger
	mu     sync.RWMutex
}

// NewCache creates a new forecast cache
func NewCache(config SourceConfig, logger *logger.Logger) *Cache {
	return &Cache{
		expiry: time.Duration(config.CacheExpiryMinutes) * time.Minute,
		logger: logger.Named("forecast-cache"),
	}
}

// Get returns the cached dataset, or nil if nothing has been fetched yet
func (c *Cache) Get() *Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Days returns the cached datasets, latest day first
func (c *Cache) Days() []*Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Dataset(nil), c.days...)
}

// Set replaces the cache with a single dataset
func (c *Cache) Set(data *Dataset) {
	c.SetDays([]*Dataset{data})
}

// SetDays replaces the cached history. days must not be empty.
func (c *Cache) SetDays(days []*Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	data := days[0]
	c.data = data
	c.days = append([]*Dataset(nil), days...)
	c.lastUpdated = now
	c.expiresAt = now.Add(c.expiry)
	c.lastError = nil
	c.updates++

	c.logger.Info("Forecast cache updated",
		logger.Int("hours", len(data.Hours)),
		logger.Int("days", len(days)),
		logger.Time("expires_at", c.expiresAt))
}

// RecordError keeps the last fetch error. The cached dataset is left in place.
func (c *Cache) RecordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastError = err
	c.lastErrorAt = time.Now()
	c.failures++

	c.logger.Warn("Forecast refresh failed, keeping cached data",
		logger.Error(err),
		logger.Bool("has_data", c.data != nil))
}

// IsExpired checks if the cached data has expired
func (c *Cache) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data == nil || time.Now().After(c.expiresAt)
}

// LastUpdated returns when the dataset was last replaced
func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// GetStats returns cache statistics
func (c *Cache) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]interface{}{
		"has_data":     c.data != nil,
		"is_expired":   c.data == nil || time.Now().After(c.expiresAt),
		"last_updated": c.lastUpdated,
		"updates":      c.updates,
		"failures":     c.failures,
	}

	if c.data != nil {
		stats["hours"] = len(c.data.Hours)
		stats["days"] = len(c.days)
	}
	if c.lastError != nil {
		stats["last_error"] = c.lastError.Error()
		stats["last_error_at"] = c.lastErrorAt
	}

	return stats
}
