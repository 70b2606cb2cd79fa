package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/delivery-dispatch/internal/models"
)

// RedisIndex implements DriverIndex on top of Redis GEO commands so several
// processes can share one driver location set.
type RedisIndex struct {
	client *redis.Client
	key    string
	ctx    context.Context
}

func NewRedisIndex(addr, password, key string) *RedisIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisIndex{client: c, key: key, ctx: context.Background()}
}

func (r *RedisIndex) Upsert(d models.Driver) {
	_, _ = r.client.GeoAdd(r.ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lon, Latitude: d.Loc.Lat, Name: d.ID}).Result()
	_ = r.client.HSet(r.ctx, metaKey(d.ID), map[string]interface{}{
		"name":    d.Name,
		"rating":  strconv.FormatFloat(d.Rating, 'f', -1, 64),
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisIndex) Nearby(origin models.Coordinate, maxDistanceKm float64, limit int) []DriverDistance {
	res, err := r.client.GeoSearchLocation(r.ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  origin.Lon,
			Latitude:   origin.Lat,
			Radius:     maxDistanceKm,
			RadiusUnit: "km",
			Count:      limit,
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil
	}
	out := make([]DriverDistance, 0, len(res))
	for _, g := range res {
		d := models.Driver{ID: g.Name, Loc: models.Coordinate{Lat: g.Latitude, Lon: g.Longitude}}
		if m, err := r.client.HGetAll(r.ctx, metaKey(g.Name)).Result(); err == nil {
			d.Name = m["name"]
			if v, ok := m["rating"]; ok {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					d.Rating = f
				}
			}
			if v, ok := m["online"]; ok {
				d.Online = v == "true"
			}
		}
		if !d.Online {
			continue
		}
		dist := math2dp(g.Dist)
		out = append(out, DriverDistance{
			Driver:     d,
			DistanceKm: dist,
			EtaMinutes: DeliveryEtaMinutes(dist, 0, DefaultSpeedKmh),
		})
	}
	return out
}

func (r *RedisIndex) Close() error { return r.client.Close() }

func metaKey(id string) string { return "driver:meta:" + id }

func math2dp(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
