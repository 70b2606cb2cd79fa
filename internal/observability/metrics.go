package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "orders_placed_total", Help: "Total number of orders placed"})
	TransitionsTotal  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "order_transitions_total", Help: "Committed order status transitions"},
		[]string{"status"},
	)
	TransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "order_transitions_rejected_total", Help: "Rejected order status transitions"})

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "notifications_sent_total", Help: "Notifications rendered and handed to the realtime channel"},
		[]string{"type"},
	)
	DeliveriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "realtime_deliveries_dropped_total", Help: "Realtime sends dropped on dead or broken transports"})

	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "delivery_dispatch", Name: "realtime_clients_connected", Help: "Authenticated realtime clients"})
	DriversOnline    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "delivery_dispatch", Name: "drivers_online", Help: "Number of online drivers"})

	DispatchCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "dispatch_candidates_total", Help: "Driver candidates notified with delivery requests"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "delivery_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delivery_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
