package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery failure reasons.
const (
	ReasonClosed       = "closed"
	ReasonSlowConsumer = "slow_consumer"
	ReasonWrite        = "write"
)

var (
	// WSConnections is the number of open WebSocket connections.
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_ws_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	// WSAuthenticatedUsers is the number of users with a registered connection.
	WSAuthenticatedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studyhub_ws_authenticated_users",
			Help: "Current number of users reachable through the connection registry",
		},
	)

	FanoutEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_fanout_events_total",
			Help: "Total number of events enqueued to connections",
		},
		[]string{"event"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_delivery_failures_total",
			Help: "Total number of failed pushes to a connection",
		},
		[]string{"reason"}, // "closed", "slow_consumer", "write"
	)

	WSInbound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_ws_inbound_total",
			Help: "Total number of inbound WebSocket frames by type",
		},
		[]string{"type"},
	)

	MembershipCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyhub_membership_cache_total",
			Help: "Room membership cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// RecordDelivery counts one delivered event.
func RecordDelivery(event string) {
	FanoutEvents.WithLabelValues(event).Inc()
}

// RecordDeliveryFailure counts one failed push.
func RecordDeliveryFailure(reason string) {
	DeliveryFailures.WithLabelValues(reason).Inc()
}

// RecordInbound counts one inbound frame.
func RecordInbound(kind string) {
	WSInbound.WithLabelValues(kind).Inc()
}

// RecordCacheLookup counts a membership cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		MembershipCache.WithLabelValues("hit").Inc()
		return
	}
	MembershipCache.WithLabelValues("miss").Inc()
}
