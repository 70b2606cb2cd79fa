package eta

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
)

// Client is the interface the matcher uses to get courier travel estimates.
type Client interface {
	EstimateMinutes(from, to models.Coordinate) (float64, error)
}

// Cache is a tiny in-memory cache for ETA lookups keyed by coordinate pair.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	v  float64
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(a, b models.Coordinate) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Get returns the cached value and true if present and not expired.
func (c *Cache) Get(a, b models.Coordinate) (float64, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return 0, false
	}
	return e.v, true
}

// Set stores a value in the cache.
func (c *Cache) Set(a, b models.Coordinate, v float64) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: time.Now()}
	c.mu.Unlock()
}

// EstimateMinutes is the naive straight-line fallback: Haversine distance
// over speedKmh. In prod a routing engine gives far better numbers.
func EstimateMinutes(from, to models.Coordinate, speedKmh float64) float64 {
	if speedKmh <= 0 {
		speedKmh = geo.DefaultSpeedKmh
	}
	d, err := geo.DistanceKm(from, to)
	if err != nil {
		return 0
	}
	return d / speedKmh * 60
}
