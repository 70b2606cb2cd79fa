package geo

import (
	"sync"
	"time"

	"github.com/example/delivery-dispatch/internal/models"
)

// DriverIndex is the minimal interface the matcher and handlers need from
// a driver location store.
type DriverIndex interface {
	Upsert(d models.Driver)
	Nearby(origin models.Coordinate, maxDistanceKm float64, limit int) []DriverDistance
}

// Index is an in-memory DriverIndex. Fine for a single process; the Redis
// implementation covers multi-process deployments.
type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.Driver)}
}

func (g *Index) Upsert(d models.Driver) {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	g.drivers[d.ID] = d
}

func (g *Index) Remove(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.drivers, id)
}

// Snapshot returns a copy of the current driver set.
func (g *Index) Snapshot() []models.Driver {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.Driver, 0, len(g.drivers))
	for _, d := range g.drivers {
		out = append(out, d)
	}
	return out
}

// naive scan; in prod use geo-hash or the Redis GEO index
func (g *Index) Nearby(origin models.Coordinate, maxDistanceKm float64, limit int) []DriverDistance {
	matches, err := NearestOnlineDrivers(origin, g.Snapshot(), maxDistanceKm)
	if err != nil {
		return nil
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
