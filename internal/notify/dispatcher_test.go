package notify

import (
	"errors"
	"testing"

	"github.com/example/delivery-dispatch/internal/models"
)

type fakeSender struct {
	unicasts  map[string][]models.NotificationMessage
	published []any
	roleCasts map[string][]any
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		unicasts:  make(map[string][]models.NotificationMessage),
		roleCasts: make(map[string][]any),
	}
}

func (f *fakeSender) Unicast(clientID string, event any) {
	if n, ok := event.(models.NotificationMessage); ok {
		f.unicasts[clientID] = append(f.unicasts[clientID], n)
	}
}

func (f *fakeSender) PublishAny(event any, channels ...string) {
	f.published = append(f.published, event)
}

func (f *fakeSender) BroadcastRole(role string, event any) {
	f.roleCasts[role] = append(f.roleCasts[role], event)
}

func TestDispatchConfirmedTemplate(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, nil)

	err := d.Dispatch(EventOrderConfirmed, "u1", map[string]string{"orderNumber": "ORD000123"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	msgs := sender.unicasts["u1"]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Title != "Pesanan Dikonfirmasi" {
		t.Fatalf("title = %q", msgs[0].Title)
	}
	if msgs[0].Message != "Pesanan #ORD000123 telah dikonfirmasi oleh restoran" {
		t.Fatalf("message = %q", msgs[0].Message)
	}
	if msgs[0].Type != "notification" || msgs[0].NotificationType != EventOrderConfirmed {
		t.Fatalf("wrong envelope: %+v", msgs[0])
	}
	if msgs[0].Timestamp.IsZero() {
		t.Fatal("timestamp not set")
	}
}

func TestDispatchUnknownEventType(t *testing.T) {
	d := NewDispatcher(newFakeSender(), nil)
	err := d.Dispatch("order_exploded", "u1", nil)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestInterpolateLeavesMissingPlaceholders(t *testing.T) {
	got := Interpolate("Driver {driverName} telah mengambil pesanan #{orderNumber}", map[string]string{"orderNumber": "ORD000009"})
	want := "Driver {driverName} telah mengambil pesanan #ORD000009"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	// empty values behave like missing ones
	got = Interpolate("{promoMessage}", map[string]string{"promoMessage": ""})
	if got != "{promoMessage}" {
		t.Fatalf("got %q", got)
	}
}

func orderFixture(status models.OrderStatus, driverID string) *models.Order {
	return &models.Order{
		ID:         "o1",
		Number:     "ORD000777",
		CustomerID: "cust",
		MerchantID: "merch",
		DriverID:   driverID,
		Status:     status,
	}
}

func TestOrderTransitionRecipients(t *testing.T) {
	cases := []struct {
		status   models.OrderStatus
		driverID string
		want     map[string]string // recipient -> event type
	}{
		{models.StatusPending, "", map[string]string{"merch": EventNewOrder}},
		{models.StatusConfirmed, "", map[string]string{"cust": EventOrderConfirmed}},
		{models.StatusPreparing, "drv", map[string]string{"cust": EventOrderPreparing, "drv": EventDeliveryRequest}},
		{models.StatusPreparing, "", map[string]string{"cust": EventOrderPreparing}},
		{models.StatusReady, "drv", map[string]string{"cust": EventOrderReady, "drv": EventDeliveryRequest}},
		{models.StatusPickedUp, "drv", map[string]string{"cust": EventOrderPickedUp}},
		{models.StatusOnTheWay, "drv", map[string]string{"cust": EventOrderOnTheWay}},
		{models.StatusDelivered, "drv", map[string]string{"cust": EventOrderDelivered}},
		{models.StatusCancelled, "", map[string]string{"cust": EventOrderCancelled}},
	}
	for _, tc := range cases {
		sender := newFakeSender()
		d := NewDispatcher(sender, nil)
		d.OrderTransition(orderFixture(tc.status, tc.driverID), nil)

		for recipient, eventType := range tc.want {
			msgs := sender.unicasts[recipient]
			if len(msgs) != 1 {
				t.Fatalf("%s: recipient %s got %d messages", tc.status, recipient, len(msgs))
			}
			if msgs[0].NotificationType != eventType {
				t.Fatalf("%s: recipient %s got %s, want %s", tc.status, recipient, msgs[0].NotificationType, eventType)
			}
		}
		for recipient, msgs := range sender.unicasts {
			if _, ok := tc.want[recipient]; !ok && len(msgs) > 0 {
				t.Fatalf("%s: unexpected recipient %s", tc.status, recipient)
			}
		}
		if len(sender.published) != 1 {
			t.Fatalf("%s: expected one order_update broadcast, got %d", tc.status, len(sender.published))
		}
	}
}

func TestOrderTransitionCancelDefaultReason(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, nil)
	d.OrderTransition(orderFixture(models.StatusCancelled, ""), nil)

	msgs := sender.unicasts["cust"]
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want := "Pesanan #ORD000777 telah dibatalkan. Tidak ada alasan yang diberikan"
	if msgs[0].Message != want {
		t.Fatalf("got %q, want %q", msgs[0].Message, want)
	}
}

func TestOrderTransitionFillsOrderNumber(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, nil)
	d.OrderTransition(orderFixture(models.StatusConfirmed, ""), map[string]string{})
	msgs := sender.unicasts["cust"]
	if len(msgs) != 1 || msgs[0].Message != "Pesanan #ORD000777 telah dikonfirmasi oleh restoran" {
		t.Fatalf("got %+v", msgs)
	}
}

func TestSendPromotion(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, nil)
	d.SendPromotion([]string{"u1", "u2"}, PromoData{MerchantName: "Warung Tekno", Discount: 20})

	for _, id := range []string{"u1", "u2"} {
		msgs := sender.unicasts[id]
		if len(msgs) != 1 {
			t.Fatalf("user %s got %d messages", id, len(msgs))
		}
		if msgs[0].Message != "Dapatkan diskon 20% di Warung Tekno!" {
			t.Fatalf("got %q", msgs[0].Message)
		}
		if msgs[0].Title != "Promo Spesial!" {
			t.Fatalf("title = %q", msgs[0].Title)
		}
	}
}

func TestSendToRole(t *testing.T) {
	sender := newFakeSender()
	d := NewDispatcher(sender, nil)
	if err := d.SendToRole("driver", EventPromotion, map[string]string{"promoMessage": "Bonus akhir pekan"}); err != nil {
		t.Fatalf("SendToRole: %v", err)
	}
	if len(sender.roleCasts["driver"]) != 1 {
		t.Fatalf("expected 1 role broadcast, got %d", len(sender.roleCasts["driver"]))
	}
	if err := d.SendToRole("driver", "nope", nil); !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}
