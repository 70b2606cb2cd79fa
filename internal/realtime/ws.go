package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/delivery-dispatch/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTransport wraps a websocket.Conn with a write mutex.
// gorilla/websocket allows one concurrent writer; this enforces that.
type wsTransport struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsTransport) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// inboundFrame is the union of the message shapes clients may send.
type inboundFrame struct {
	Type     string             `json:"type"`
	Token    string             `json:"token,omitempty"`
	Channels []string           `json:"channels,omitempty"`
	OrderID  string             `json:"orderId,omitempty"`
	Status   models.OrderStatus `json:"status,omitempty"`
	Message  string             `json:"message,omitempty"`
	DriverID string             `json:"driverId,omitempty"`
	Location models.Coordinate  `json:"location,omitempty"`
}

// HandleWS upgrades the connection and runs its read loop. Messages from
// one connection are handled strictly sequentially; different connections
// run in their own handler goroutines.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	t := &wsTransport{ws: ws}
	defer func() {
		h.Disconnect(t)
		_ = ws.Close()
	}()

	var clientID string
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var f inboundFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			_ = t.Send(map[string]string{"error": "Invalid message format"})
			continue
		}

		switch f.Type {
		case "auth":
			ident, err := h.Authenticate(t, f.Token)
			if err != nil {
				_ = t.Send(map[string]string{"type": "auth_error", "message": "Invalid token"})
				continue
			}
			clientID = ident.UserID
			_ = t.Send(map[string]string{
				"type":     "auth_success",
				"clientId": clientID,
				"message":  "Authentication successful",
			})
		case "subscribe":
			if err := h.Subscribe(clientID, f.Channels); err != nil {
				_ = t.Send(map[string]string{"type": "error", "message": "Not authenticated"})
				continue
			}
			_ = t.Send(map[string]any{
				"type":     "subscription_success",
				"channels": f.Channels,
				"message":  "Subscribed to updates",
			})
		case "order_update":
			h.BroadcastOrderUpdate(f.OrderID, f.Status, f.Message)
		case "driver_location":
			h.BroadcastDriverLocation(f.DriverID, f.Location)
		default:
			_ = t.Send(map[string]string{"error": "Unknown message type"})
		}
	}
}

// BroadcastOrderUpdate fans an order status frame out to the global orders
// channel and the per-order channel, once per subscribed client.
func (h *Hub) BroadcastOrderUpdate(orderID string, status models.OrderStatus, message string) {
	h.PublishAny(models.OrderUpdateMessage{
		Type:      "order_update",
		OrderID:   orderID,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}, "orders", "order_"+orderID)
}

// BroadcastDriverLocation fans a driver location frame out to the tracking
// channels, once per subscribed client.
func (h *Hub) BroadcastDriverLocation(driverID string, loc models.Coordinate) {
	h.PublishAny(models.DriverLocationMessage{
		Type:      "driver_location",
		DriverID:  driverID,
		Location:  loc,
		Timestamp: time.Now(),
	}, "driver_tracking", "driver_"+driverID)
}
