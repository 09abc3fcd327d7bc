package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors for the realtime core. Registered once at package init;
// components increment them directly.
var (
	EventsRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeshare_events_routed_total",
			Help: "Inbound socket events accepted by the router, by event name.",
		},
		[]string{"event"},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codeshare_events_dropped_total",
			Help: "Inbound events dropped: unknown routes and role mismatches.",
		},
	)

	OperationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codeshare_operation_errors_total",
			Help: "operation-error responses sent back to a requesting client.",
		},
	)

	BroadcastsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "codeshare_broadcasts_delivered_total",
			Help: "Individual event deliveries fanned out to room members.",
		},
	)

	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codeshare_open_connections",
			Help: "Currently open authenticated WebSocket connections.",
		},
	)

	OccupiedRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "codeshare_occupied_rooms",
			Help: "Rooms with at least one present member.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsRouted,
		EventsDropped,
		OperationErrors,
		BroadcastsDelivered,
		OpenConnections,
		OccupiedRooms,
	)
}

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
