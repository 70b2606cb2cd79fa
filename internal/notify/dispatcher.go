package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/delivery-dispatch/internal/models"
	"github.com/example/delivery-dispatch/internal/observability"
)

// Sender is the slice of the realtime channel the dispatcher needs.
type Sender interface {
	Unicast(clientID string, event any)
	PublishAny(event any, channels ...string)
	BroadcastRole(role string, event any)
}

// Persister is the "persist notification" extension point. Implement it
// elsewhere; the dispatcher only calls it best-effort.
type Persister interface {
	SaveNotification(userID string, n models.NotificationMessage) error
}

// PushSink is the push-notification extension point (FCM, APNs, ...).
type PushSink interface {
	Push(userID string, n models.NotificationMessage) error
}

// Dispatcher turns status transitions and promotional events into
// recipient-addressed messages and hands them to the realtime channel.
// Persist and Push are optional collaborators; nil means skip.
type Dispatcher struct {
	Sender  Sender
	Persist Persister
	Push    PushSink
	Logger  *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{Sender: sender, Logger: logger}
}

// Dispatch renders the template for eventType and delivers it to
// recipientID. The only error is an unregistered event type; recipient
// resolution and delivery failures are swallowed.
func (d *Dispatcher) Dispatch(eventType, recipientID string, data map[string]string) error {
	n, err := d.render(eventType, data)
	if err != nil {
		return err
	}
	d.deliver(recipientID, n)
	return nil
}

func (d *Dispatcher) render(eventType string, data map[string]string) (models.NotificationMessage, error) {
	tpl, ok := templates[eventType]
	if !ok {
		return models.NotificationMessage{}, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	title := Interpolate(tpl.Title, data)
	message := Interpolate(tpl.Message, data)
	if strings.Contains(title+message, "{") {
		d.log().Debug("unresolved notification placeholders", "type", eventType, "message", message)
	}
	return models.NotificationMessage{
		Type:             "notification",
		NotificationType: eventType,
		Title:            title,
		Message:          message,
		Data:             data,
		Timestamp:        time.Now(),
	}, nil
}

func (d *Dispatcher) deliver(recipientID string, n models.NotificationMessage) {
	if recipientID == "" {
		return
	}
	if d.Sender != nil {
		d.Sender.Unicast(recipientID, n)
	}
	if d.Persist != nil {
		if err := d.Persist.SaveNotification(recipientID, n); err != nil {
			d.log().Warn("persist notification failed", "recipient", recipientID, "error", err)
		}
	}
	if d.Push != nil {
		if err := d.Push.Push(recipientID, n); err != nil {
			d.log().Warn("push notification failed", "recipient", recipientID, "error", err)
		}
	}
	observability.NotificationsSentTotal.WithLabelValues(n.NotificationType).Inc()
}

// OrderTransition resolves the recipient set for the order's new status
// and dispatches once per recipient. Missing recipients (e.g. no driver
// assigned yet) are skipped, never errors.
func (d *Dispatcher) OrderTransition(o *models.Order, data map[string]string) {
	if data == nil {
		data = map[string]string{}
	}
	if data["orderNumber"] == "" {
		data["orderNumber"] = o.Number
	}

	switch o.Status {
	case models.StatusPending:
		d.dispatchTo(o.MerchantID, EventNewOrder, data)
	case models.StatusConfirmed:
		d.dispatchTo(o.CustomerID, EventOrderConfirmed, data)
	case models.StatusPreparing:
		d.dispatchTo(o.CustomerID, EventOrderPreparing, data)
		d.dispatchTo(o.DriverID, EventDeliveryRequest, data)
	case models.StatusReady:
		d.dispatchTo(o.CustomerID, EventOrderReady, data)
		d.dispatchTo(o.DriverID, EventDeliveryRequest, data)
	case models.StatusPickedUp:
		d.dispatchTo(o.CustomerID, EventOrderPickedUp, data)
	case models.StatusOnTheWay:
		d.dispatchTo(o.CustomerID, EventOrderOnTheWay, data)
	case models.StatusDelivered:
		d.dispatchTo(o.CustomerID, EventOrderDelivered, data)
	case models.StatusCancelled:
		if data["reason"] == "" {
			data["reason"] = DefaultCancelReason
		}
		d.dispatchTo(o.CustomerID, EventOrderCancelled, data)
	}

	d.broadcastOrderUpdate(o, data)
}

// broadcastOrderUpdate pushes the transition onto the order channels so
// any subscribed dashboard sees it, delivered at most once per client.
func (d *Dispatcher) broadcastOrderUpdate(o *models.Order, data map[string]string) {
	if d.Sender == nil {
		return
	}
	message := ""
	if key := statusEventKey(o.Status); key != "" {
		if n, err := d.render(key, data); err == nil {
			message = n.Message
		}
	}
	d.Sender.PublishAny(models.OrderUpdateMessage{
		Type:      "order_update",
		OrderID:   o.ID,
		Status:    o.Status,
		Message:   message,
		Timestamp: time.Now(),
	}, "orders", "order_"+o.ID)
}

func statusEventKey(s models.OrderStatus) string {
	switch s {
	case models.StatusPending:
		return EventNewOrder
	case models.StatusConfirmed:
		return EventOrderConfirmed
	case models.StatusPreparing:
		return EventOrderPreparing
	case models.StatusReady:
		return EventOrderReady
	case models.StatusPickedUp:
		return EventOrderPickedUp
	case models.StatusOnTheWay:
		return EventOrderOnTheWay
	case models.StatusDelivered:
		return EventOrderDelivered
	case models.StatusCancelled:
		return EventOrderCancelled
	}
	return ""
}

// PromoData describes a promotional campaign message.
type PromoData struct {
	Message      string
	MerchantName string
	Discount     int
}

// SendPromotion fans a promotional notification out to each user id.
func (d *Dispatcher) SendPromotion(userIDs []string, promo PromoData) {
	message := promo.Message
	if message == "" {
		message = fmt.Sprintf("Dapatkan diskon %d%% di %s!", promo.Discount, promo.MerchantName)
	}
	for _, id := range userIDs {
		_ = d.Dispatch(EventPromotion, id, map[string]string{"promoMessage": message})
	}
}

// SendToRole renders eventType once and broadcasts it to every connected
// client with the given role.
func (d *Dispatcher) SendToRole(role, eventType string, data map[string]string) error {
	n, err := d.render(eventType, data)
	if err != nil {
		return err
	}
	if d.Sender != nil {
		d.Sender.BroadcastRole(role, n)
	}
	observability.NotificationsSentTotal.WithLabelValues(eventType).Inc()
	return nil
}

func (d *Dispatcher) dispatchTo(recipientID, eventType string, data map[string]string) {
	if recipientID == "" {
		return
	}
	if err := d.Dispatch(eventType, recipientID, data); err != nil {
		d.log().Error("dispatch failed", "type", eventType, "recipient", recipientID, "error", err)
	}
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
