package notify

import (
	"errors"
	"regexp"
)

// ErrUnknownEventType is returned when a dispatch names an event type that
// has no template. This is a wiring bug and must fail loudly, unlike
// delivery failures which are best-effort.
var ErrUnknownEventType = errors.New("unknown notification type")

// Template is a notification title/body pair with {placeholder} slots.
type Template struct {
	Title   string
	Message string
}

// Event type keys.
const (
	EventOrderConfirmed  = "order_confirmed"
	EventOrderPreparing  = "order_preparing"
	EventOrderReady      = "order_ready"
	EventOrderPickedUp   = "order_picked_up"
	EventOrderOnTheWay   = "order_on_the_way"
	EventOrderDelivered  = "order_delivered"
	EventOrderCancelled  = "order_cancelled"
	EventNewOrder        = "new_order"
	EventDeliveryRequest = "delivery_request"
	EventPromotion       = "promotion"
)

var templates = map[string]Template{
	EventOrderConfirmed: {
		Title:   "Pesanan Dikonfirmasi",
		Message: "Pesanan #{orderNumber} telah dikonfirmasi oleh restoran",
	},
	EventOrderPreparing: {
		Title:   "Pesanan Sedang Disiapkan",
		Message: "Restoran sedang menyiapkan pesanan #{orderNumber}",
	},
	EventOrderReady: {
		Title:   "Pesanan Siap Diambil",
		Message: "Pesanan #{orderNumber} siap diambil oleh driver",
	},
	EventOrderPickedUp: {
		Title:   "Pesanan Diambil Driver",
		Message: "Driver {driverName} telah mengambil pesanan #{orderNumber}",
	},
	EventOrderOnTheWay: {
		Title:   "Driver Dalam Perjalanan",
		Message: "{driverName} sedang dalam perjalanan mengantar pesanan Anda",
	},
	EventOrderDelivered: {
		Title:   "Pesanan Berhasil Diantar",
		Message: "Pesanan #{orderNumber} telah berhasil diantar. Jangan lupa beri rating!",
	},
	EventOrderCancelled: {
		Title:   "Pesanan Dibatalkan",
		Message: "Pesanan #{orderNumber} telah dibatalkan. {reason}",
	},
	EventNewOrder: {
		Title:   "Pesanan Baru",
		Message: "Ada pesanan baru #{orderNumber} dari {customerName}",
	},
	EventDeliveryRequest: {
		Title:   "Permintaan Pengantaran",
		Message: "Ada permintaan pengantaran baru dari {merchantName}",
	},
	EventPromotion: {
		Title:   "Promo Spesial!",
		Message: "{promoMessage}",
	},
}

// DefaultCancelReason is used when a cancellation carries no reason.
const DefaultCancelReason = "Tidak ada alasan yang diberikan"

var placeholderRe = regexp.MustCompile(`\{(\w+)\}`)

// Interpolate substitutes {key} placeholders from data. Placeholders with
// no (or an empty) value are left verbatim; delivery stays best-effort.
func Interpolate(tpl string, data map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := data[key]; ok && v != "" {
			return v
		}
		return m
	})
}
