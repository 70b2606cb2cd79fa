package match

import (
	"log/slog"
	"math"
	"strconv"

	"github.com/example/delivery-dispatch/internal/eta"
	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/notify"
	"github.com/example/delivery-dispatch/internal/observability"
)

// Notifier is the slice of the dispatcher the matcher needs.
type Notifier interface {
	Dispatch(eventType, recipientID string, data map[string]string) error
}

// Service selects nearby driver candidates for an order's pickup and sends
// each a delivery request. There is no offer/accept protocol: candidates
// are notified best-effort and assignment happens through the order API.
type Service struct {
	Drivers       geo.DriverIndex
	Notifier      Notifier
	ETAClient     eta.Client // optional routing engine
	ETACache      *eta.Cache // optional ETA cache
	MaxDistanceKm float64
	TopN          int
	Logger        *slog.Logger
}

// RequestPickup finds the nearest online drivers to the merchant and
// notifies each with a delivery_request. Returns the candidate list in
// ascending distance order; empty means no driver qualified.
func (s *Service) RequestPickup(o *models.Order, merchant *models.Merchant) []geo.DriverDistance {
	maxKm := s.MaxDistanceKm
	if maxKm <= 0 {
		maxKm = geo.DefaultDriverRadiusKm
	}
	topN := s.TopN
	if topN <= 0 {
		topN = 10
	}
	cands := s.Drivers.Nearby(merchant.Loc, maxKm, topN)
	for _, c := range cands {
		data := map[string]string{
			"orderNumber":  o.Number,
			"merchantName": merchant.Name,
			"etaMinutes":   strconv.Itoa(s.pickupEta(c, merchant.Loc)),
		}
		// best-effort: an unreachable driver just misses the request
		_ = s.Notifier.Dispatch(notify.EventDeliveryRequest, c.Driver.ID, data)
		observability.DispatchCandidatesTotal.Inc()
	}
	s.log().Info("pickup requested",
		"order_id", o.ID, "merchant_id", merchant.ID, "candidates", len(cands))
	return cands
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// pickupEta prefers the routing engine (through the cache) and falls back
// to the straight-line estimate already on the candidate.
func (s *Service) pickupEta(c geo.DriverDistance, pickup models.Coordinate) int {
	if s.ETACache != nil {
		if v, ok := s.ETACache.Get(c.Driver.Loc, pickup); ok {
			return int(math.Round(v))
		}
	}
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateMinutes(c.Driver.Loc, pickup); err == nil {
			if s.ETACache != nil {
				s.ETACache.Set(c.Driver.Loc, pickup, v)
			}
			return int(math.Round(v))
		}
	}
	return c.EtaMinutes
}
