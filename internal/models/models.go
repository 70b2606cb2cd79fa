package models

import "time"

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate is within the WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusOnTheWay  OrderStatus = "on_the_way"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderItem is a line item captured at order time. Prices are whole
// currency units (IDR) and never change after placement.
type OrderItem struct {
	ID         string `json:"id"`
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	TotalPrice int64  `json:"total_price"`
}

// StatusChange is one append-only entry in an order's status history.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
}

type Order struct {
	ID         string `json:"id"`
	Number     string `json:"order_number"`
	CustomerID string `json:"customer_id"`
	MerchantID string `json:"merchant_id"`
	DriverID   string `json:"driver_id,omitempty"`

	Items []OrderItem `json:"items"`

	Status  OrderStatus    `json:"status"`
	History []StatusChange `json:"history"`

	// Monetary breakdown; Total = Subtotal + DeliveryFee + ServiceFee.
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	ServiceFee  int64 `json:"service_fee"`
	Total       int64 `json:"total"`

	DeliveryAddress string     `json:"delivery_address"`
	DeliveryLoc     Coordinate `json:"delivery_loc"`
	DeliveryNotes   string     `json:"delivery_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Driver struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Loc        Coordinate `json:"loc"`
	Online     bool       `json:"online"`
	Rating     float64    `json:"rating"` // 0..5
	Deliveries int        `json:"deliveries"`
	Earnings   int64      `json:"earnings"`
	Updated    time.Time  `json:"updated"`
}

type Merchant struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Loc     Coordinate `json:"loc"`
	Open    bool       `json:"open"`
	BaseFee int64      `json:"base_delivery_fee"`
	Rating  float64    `json:"rating"`
}

// NotificationMessage is the "notification" frame pushed over the
// realtime channel. Data keeps the raw interpolation values so clients
// can render their own copy if they want to.
type NotificationMessage struct {
	Type             string            `json:"type"` // always "notification"
	NotificationType string            `json:"notificationType"`
	Title            string            `json:"title"`
	Message          string            `json:"message"`
	Data             map[string]string `json:"data,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// OrderUpdateMessage is the "order_update" frame broadcast on the orders
// channels.
type OrderUpdateMessage struct {
	Type      string      `json:"type"` // always "order_update"
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// DriverLocationMessage is the "driver_location" frame broadcast on the
// driver tracking channels.
type DriverLocationMessage struct {
	Type      string     `json:"type"` // always "driver_location"
	DriverID  string     `json:"driverId"`
	Location  Coordinate `json:"location"`
	Timestamp time.Time  `json:"timestamp"`
}
