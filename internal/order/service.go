package order

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/example/delivery-dispatch/internal/geo"
	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
	"github.com/example/delivery-dispatch/internal/storage"
)

// DefaultServiceFeeRate is the platform cut applied to the subtotal.
const DefaultServiceFeeRate = 0.05

// Notifier receives exactly one call per committed transition. The call is
// fire-and-forget: its outcome never affects the transition.
type Notifier interface {
	OrderTransition(o *models.Order, data map[string]string)
}

// Service owns order placement and status transitions.
type Service struct {
	Store          storage.OrderStore
	Merchants      storage.MerchantDirectory
	Notifier       Notifier
	Logger         *slog.Logger
	ServiceFeeRate float64
}

// PlaceItem is one requested line item. Unit price is captured here and
// frozen into the order.
type PlaceItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
}

type PlaceRequest struct {
	CustomerID      string            `json:"customer_id"`
	CustomerName    string            `json:"customer_name"`
	MerchantID      string            `json:"merchant_id"`
	Items           []PlaceItem       `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	DeliveryLoc     models.Coordinate `json:"delivery_loc"`
	DeliveryNotes   string            `json:"delivery_notes"`
}

// Place creates a pending order: computes the monetary breakdown, persists
// it with its initial history entry, and notifies the merchant.
func (s *Service) Place(req PlaceRequest) (*models.Order, error) {
	if req.MerchantID == "" || len(req.Items) == 0 || req.DeliveryAddress == "" {
		return nil, errors.New("merchant, items and delivery address are required")
	}
	merchant, err := s.Merchants.GetMerchant(req.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("merchant %s: %w", req.MerchantID, err)
	}

	dist, err := geo.DistanceKm(merchant.Loc, req.DeliveryLoc)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var subtotal int64
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item %s: quantity must be positive", it.MenuItemID)
		}
		line := it.UnitPrice * int64(it.Quantity)
		subtotal += line
		items = append(items, models.OrderItem{
			ID:         uuid.NewString(),
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: line,
		})
	}

	rate := s.ServiceFeeRate
	if rate <= 0 {
		rate = DefaultServiceFeeRate
	}
	deliveryFee := geo.DeliveryFee(dist, merchant.BaseFee, geo.DefaultPerKmFee)
	serviceFee := int64(math.Round(float64(subtotal) * rate))

	o := &models.Order{
		ID:              uuid.NewString(),
		Number:          NewOrderNumber(now),
		CustomerID:      req.CustomerID,
		MerchantID:      req.MerchantID,
		Items:           items,
		Status:          models.StatusPending,
		Subtotal:        subtotal,
		DeliveryFee:     deliveryFee,
		ServiceFee:      serviceFee,
		Total:           subtotal + deliveryFee + serviceFee,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLoc:     req.DeliveryLoc,
		DeliveryNotes:   req.DeliveryNotes,
		History: []models.StatusChange{
			{Status: models.StatusPending, ActorID: req.CustomerID, Timestamp: now},
		},
		CreatedAt: now,
	}
	if err := s.Store.SaveOrder(o); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	observability.OrdersPlacedTotal.Inc()
	s.log().Info("order placed",
		"order_id", o.ID, "order_number", o.Number,
		"merchant_id", o.MerchantID, "total", o.Total, "distance_km", dist)

	if s.Notifier != nil {
		s.Notifier.OrderTransition(o, map[string]string{
			"orderNumber":  o.Number,
			"customerName": req.CustomerName,
		})
	}
	return o, nil
}

// Transition moves an order to target on behalf of actorID, persists the
// result, and dispatches exactly one notification call for the committed
// transition. State-machine violations propagate; notification delivery
// never does.
func (s *Service) Transition(orderID string, target models.OrderStatus, actorID string, data map[string]string) (*models.Order, error) {
	o, err := s.Store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if err := Apply(o, target, actorID, time.Now()); err != nil {
		observability.TransitionsRejected.Inc()
		return nil, err
	}
	if err := s.Store.UpdateOrder(o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	observability.TransitionsTotal.WithLabelValues(string(target)).Inc()
	s.log().Info("order transition", "order_id", o.ID, "status", target, "actor_id", actorID)

	if s.Notifier != nil {
		if data == nil {
			data = map[string]string{}
		}
		if _, ok := data["orderNumber"]; !ok {
			data["orderNumber"] = o.Number
		}
		s.Notifier.OrderTransition(o, data)
	}
	return o, nil
}

// AssignDriver records the driver on the order without a status change.
// Driver-facing notifications ride on the next preparing/ready transition.
func (s *Service) AssignDriver(orderID, driverID string) (*models.Order, error) {
	o, err := s.Store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if Terminal(o.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrOrderFinalized, o.Number, o.Status)
	}
	o.DriverID = driverID
	if err := s.Store.UpdateOrder(o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// NewOrderNumber builds the human-facing order number from the placement
// time, e.g. ORD847291.
func NewOrderNumber(t time.Time) string {
	ms := strconv.FormatInt(t.UnixMilli(), 10)
	return "ORD" + ms[len(ms)-6:]
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
