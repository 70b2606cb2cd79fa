package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/example/delivery-dispatch/internal/models"
)

// ErrInvalidCoordinate is returned for out-of-range latitude/longitude input.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

const (
	earthRadiusKm = 6371

	// DefaultPreparationMinutes is the kitchen prep time folded into a
	// delivery ETA when the caller has nothing better.
	DefaultPreparationMinutes = 10

	// DefaultSpeedKmh is the assumed courier (bike) travel speed.
	DefaultSpeedKmh = 15

	// DefaultPerKmFee is the per-kilometre surcharge beyond the first km,
	// in whole currency units.
	DefaultPerKmFee = 1000

	// DefaultDriverRadiusKm and DefaultMerchantRadiusKm bound the nearest
	// driver/merchant searches.
	DefaultDriverRadiusKm   = 5
	DefaultMerchantRadiusKm = 10
)

// DistanceKm returns the Haversine great-circle distance between a and b,
// rounded to two decimal places. Identical points yield 0.
func DistanceKm(a, b models.Coordinate) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, a.Lat, a.Lon)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, b.Lat, b.Lon)
	}
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Round(earthRadiusKm*c*100) / 100, nil
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

// DeliveryEtaMinutes estimates total delivery time: preparation plus travel
// at speedKmh. Non-positive speeds fall back to the bike default.
func DeliveryEtaMinutes(distanceKm, preparationMinutes, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	travel := distanceKm / speedKmh * 60
	return int(math.Round(preparationMinutes + travel))
}

// DeliveryFee computes the delivery charge: the base fee covers the first
// kilometre, each kilometre beyond that adds perKmFee, rounded to the
// nearest whole unit. Non-positive perKmFee falls back to the default.
func DeliveryFee(distanceKm float64, baseFee, perKmFee int64) int64 {
	if perKmFee <= 0 {
		perKmFee = DefaultPerKmFee
	}
	extra := math.Max(0, (distanceKm-1)*float64(perKmFee))
	return baseFee + int64(math.Round(extra))
}

// DriverDistance pairs a driver with their distance from a search origin
// and the estimated minutes until they could arrive (no prep time).
type DriverDistance struct {
	Driver     models.Driver `json:"driver"`
	DistanceKm float64       `json:"distance_km"`
	EtaMinutes int           `json:"eta_minutes"`
}

// NearestOnlineDrivers filters to online drivers with valid coordinates
// within maxDistanceKm of origin, ascending by distance, ties broken by
// driver id. An empty result is not an error.
func NearestOnlineDrivers(origin models.Coordinate, drivers []models.Driver, maxDistanceKm float64) ([]DriverDistance, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, origin.Lat, origin.Lon)
	}
	out := make([]DriverDistance, 0, len(drivers))
	for _, d := range drivers {
		if !d.Online || !d.Loc.Valid() {
			continue
		}
		dist, err := DistanceKm(origin, d.Loc)
		if err != nil || dist > maxDistanceKm {
			continue
		}
		out = append(out, DriverDistance{
			Driver:     d,
			DistanceKm: dist,
			EtaMinutes: DeliveryEtaMinutes(dist, 0, DefaultSpeedKmh),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Driver.ID < out[j].Driver.ID
	})
	return out, nil
}

// MerchantMatch pairs a merchant with the distance, delivery estimate and
// fee computed for a particular customer location.
type MerchantMatch struct {
	Merchant   models.Merchant `json:"merchant"`
	DistanceKm float64         `json:"distance_km"`
	EtaMinutes int             `json:"eta_minutes"`
	EtaRange   string          `json:"estimated_delivery_time"`
	Fee        int64           `json:"delivery_fee"`
}

// NearbyOpenMerchants filters to open merchants within maxDistanceKm of
// origin, computing the ETA and fee per merchant using that merchant's own
// base fee. Ordered ascending by distance, ties broken by merchant id.
func NearbyOpenMerchants(origin models.Coordinate, merchants []models.Merchant, maxDistanceKm float64) ([]MerchantMatch, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, origin.Lat, origin.Lon)
	}
	out := make([]MerchantMatch, 0, len(merchants))
	for _, m := range merchants {
		if !m.Open || !m.Loc.Valid() {
			continue
		}
		dist, err := DistanceKm(origin, m.Loc)
		if err != nil || dist > maxDistanceKm {
			continue
		}
		eta := DeliveryEtaMinutes(dist, DefaultPreparationMinutes, DefaultSpeedKmh)
		out = append(out, MerchantMatch{
			Merchant:   m,
			DistanceKm: dist,
			EtaMinutes: eta,
			EtaRange:   fmt.Sprintf("%d-%d min", eta-5, eta+5),
			Fee:        DeliveryFee(dist, m.BaseFee, DefaultPerKmFee),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Merchant.ID < out[j].Merchant.ID
	})
	return out, nil
}
