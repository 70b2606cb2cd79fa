package geo

import (
	"errors"
	"testing"

	"github.com/example/delivery-dispatch/internal/models"
)

var (
	monas  = models.Coordinate{Lat: -6.1754, Lon: 106.8272}
	blokM  = models.Coordinate{Lat: -6.2446, Lon: 106.7995}
	kemang = models.Coordinate{Lat: -6.2607, Lon: 106.8137}
)

func TestDistanceKmSymmetricAndZero(t *testing.T) {
	ab, err := DistanceKm(monas, blokM)
	if err != nil {
		t.Fatalf("DistanceKm: %v", err)
	}
	ba, err := DistanceKm(blokM, monas)
	if err != nil {
		t.Fatalf("DistanceKm: %v", err)
	}
	if ab != ba {
		t.Fatalf("expected symmetry, got %f vs %f", ab, ba)
	}
	if ab <= 0 {
		t.Fatalf("expected positive distance, got %f", ab)
	}
	same, err := DistanceKm(monas, monas)
	if err != nil {
		t.Fatalf("DistanceKm: %v", err)
	}
	if same != 0 {
		t.Fatalf("expected 0 for identical points, got %f", same)
	}
}

func TestDistanceKmInvalidCoordinate(t *testing.T) {
	bad := models.Coordinate{Lat: 91, Lon: 0}
	if _, err := DistanceKm(bad, monas); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if _, err := DistanceKm(monas, models.Coordinate{Lat: 0, Lon: -181}); !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestDeliveryEtaMonotonic(t *testing.T) {
	prev := -1
	for _, d := range []float64{0, 0.5, 1, 2.5, 5, 12, 30} {
		eta := DeliveryEtaMinutes(d, DefaultPreparationMinutes, DefaultSpeedKmh)
		if eta < prev {
			t.Fatalf("eta decreased at distance %f: %d < %d", d, eta, prev)
		}
		prev = eta
	}
	// 3 km at 15 km/h is 12 minutes of travel plus prep
	if got := DeliveryEtaMinutes(3, 10, 15); got != 22 {
		t.Fatalf("expected 22 minutes, got %d", got)
	}
}

func TestDeliveryFeeFirstKmIncluded(t *testing.T) {
	if f := DeliveryFee(0, 3000, 0); f != 3000 {
		t.Fatalf("fee(0) = %d, want 3000", f)
	}
	if f := DeliveryFee(1, 3000, 0); f != 3000 {
		t.Fatalf("fee(1) = %d, want 3000", f)
	}
	if f := DeliveryFee(3.5, 3000, 0); f != 3000+2500 {
		t.Fatalf("fee(3.5) = %d, want 5500", f)
	}
	prev := int64(-1)
	for _, d := range []float64{0, 1, 1.2, 4, 9.9} {
		f := DeliveryFee(d, 3000, 0)
		if f < prev {
			t.Fatalf("fee decreased at distance %f: %d < %d", d, f, prev)
		}
		prev = f
	}
}

func TestNearestOnlineDrivers(t *testing.T) {
	origin := models.Coordinate{Lat: 0, Lon: 0}
	// roughly 0.5, 3.0 and 10.0 km due north (1 degree lat ~ 111.19 km)
	drivers := []models.Driver{
		{ID: "far", Online: true, Loc: models.Coordinate{Lat: 10.0 / 111.19, Lon: 0}},
		{ID: "mid", Online: true, Loc: models.Coordinate{Lat: 3.0 / 111.19, Lon: 0}},
		{ID: "near", Online: true, Loc: models.Coordinate{Lat: 0.5 / 111.19, Lon: 0}},
		{ID: "offline", Online: false, Loc: models.Coordinate{Lat: 0.1 / 111.19, Lon: 0}},
	}
	got, err := NearestOnlineDrivers(origin, drivers, 5)
	if err != nil {
		t.Fatalf("NearestOnlineDrivers: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].Driver.ID != "near" || got[1].Driver.ID != "mid" {
		t.Fatalf("wrong order: %s, %s", got[0].Driver.ID, got[1].Driver.ID)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Fatalf("not ascending: %f > %f", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestNearestOnlineDriversTieBreakByID(t *testing.T) {
	origin := models.Coordinate{Lat: 0, Lon: 0}
	loc := models.Coordinate{Lat: 0.01, Lon: 0}
	drivers := []models.Driver{
		{ID: "b", Online: true, Loc: loc},
		{ID: "a", Online: true, Loc: loc},
	}
	got, err := NearestOnlineDrivers(origin, drivers, 5)
	if err != nil {
		t.Fatalf("NearestOnlineDrivers: %v", err)
	}
	if len(got) != 2 || got[0].Driver.ID != "a" {
		t.Fatalf("expected deterministic id order, got %+v", got)
	}
}

func TestNearestOnlineDriversEmpty(t *testing.T) {
	got, err := NearestOnlineDrivers(models.Coordinate{}, nil, 5)
	if err != nil {
		t.Fatalf("NearestOnlineDrivers: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestNearbyOpenMerchants(t *testing.T) {
	origin := models.Coordinate{Lat: 0, Lon: 0}
	merchants := []models.Merchant{
		{ID: "m1", Open: true, BaseFee: 3000, Loc: models.Coordinate{Lat: 2.0 / 111.19, Lon: 0}},
		{ID: "m2", Open: true, BaseFee: 5000, Loc: models.Coordinate{Lat: 0.5 / 111.19, Lon: 0}},
		{ID: "closed", Open: false, BaseFee: 1000, Loc: models.Coordinate{Lat: 0.1 / 111.19, Lon: 0}},
		{ID: "far", Open: true, BaseFee: 1000, Loc: models.Coordinate{Lat: 50.0 / 111.19, Lon: 0}},
	}
	got, err := NearbyOpenMerchants(origin, merchants, 10)
	if err != nil {
		t.Fatalf("NearbyOpenMerchants: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 merchants, got %d", len(got))
	}
	if got[0].Merchant.ID != "m2" || got[1].Merchant.ID != "m1" {
		t.Fatalf("wrong order: %s, %s", got[0].Merchant.ID, got[1].Merchant.ID)
	}
	// each merchant's own base fee is used
	if got[0].Fee != 5000 {
		t.Fatalf("expected base fee 5000 within first km, got %d", got[0].Fee)
	}
	if got[1].Fee <= 3000 {
		t.Fatalf("expected fee above base for 2 km, got %d", got[1].Fee)
	}
	if got[0].EtaMinutes <= 0 || got[0].EtaRange == "" {
		t.Fatalf("expected eta fields, got %+v", got[0])
	}
}

func TestIndexNearbyLimit(t *testing.T) {
	idx := NewIndex()
	for i, id := range []string{"d1", "d2", "d3"} {
		idx.Upsert(models.Driver{ID: id, Online: true, Loc: models.Coordinate{Lat: float64(i) * 0.001, Lon: 0}})
	}
	got := idx.Nearby(models.Coordinate{Lat: 0, Lon: 0}, 5, 2)
	if len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
	if got[0].Driver.ID != "d1" {
		t.Fatalf("expected nearest first, got %s", got[0].Driver.ID)
	}
}
