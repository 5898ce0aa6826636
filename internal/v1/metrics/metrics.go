package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the signaling engine.
//
// Naming convention: namespace_subsystem_name
// - namespace: beamcast (application-level grouping)
// - subsystem: websocket, room, signaling, feed, ratelimit
// - name: specific metric (connections_active, frames_total, etc.)
//
// Metric types:
// - Gauge: current state (connections, rooms, participants)
// - Counter: cumulative events (frames processed, admission failures)
// - Histogram: distributions (frame handling time, room lifetime)

var (
	// ActiveWebSocketConnections tracks the current number of signaling connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beamcast",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// FramesProcessed counts inbound frames by type and outcome
	// (ok, error, dropped, malformed)
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "websocket",
		Name:      "frames_total",
		Help:      "Total inbound frames processed",
	}, []string{"frame_type", "status"})

	// FrameHandlingDuration tracks time spent handling one inbound frame
	FrameHandlingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beamcast",
		Subsystem: "websocket",
		Name:      "frame_handling_seconds",
		Help:      "Time spent handling inbound frames",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"frame_type"})

	// OutboundDropped counts frames dropped because a client's send queue was full
	OutboundDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "websocket",
		Name:      "outbound_dropped_total",
		Help:      "Outbound frames dropped due to slow clients",
	})

	// ActiveRooms tracks the current number of rooms, including those in grace
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beamcast",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of rooms",
	})

	// RoomParticipants tracks occupancy per room (0-2)
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "beamcast",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// AdmissionFailures counts rejected create/join attempts by error code
	AdmissionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "room",
		Name:      "admission_failures_total",
		Help:      "Create/join attempts rejected, by error code",
	}, []string{"code"})

	// RoomLifetime observes how long rooms lived, recorded at deletion
	RoomLifetime = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "beamcast",
		Subsystem: "room",
		Name:      "lifetime_seconds",
		Help:      "Room lifetime from creation to deletion",
		Buckets:   prometheus.ExponentialBuckets(30, 2, 12),
	})

	// SignalsRelayed counts offer/answer/ice frames relayed between slots
	SignalsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "signaling",
		Name:      "relayed_total",
		Help:      "WebRTC signaling frames relayed between peers",
	}, []string{"frame_type"})

	// ChatMessagesRelayed counts chat messages relayed between slots
	ChatMessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "signaling",
		Name:      "chat_messages_total",
		Help:      "Chat messages relayed between peers",
	})

	// FeedEventsPublished counts room lifecycle events published to the feed
	FeedEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "feed",
		Name:      "events_published_total",
		Help:      "Room lifecycle events published to the Redis feed",
	}, []string{"event"})

	// FeedEventsDropped counts events shed because the feed queue was full
	FeedEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "feed",
		Name:      "events_dropped_total",
		Help:      "Room lifecycle events dropped before publishing",
	})

	// CircuitBreakerState reports the feed breaker state (0 closed, 1 open, 2 half-open)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "beamcast",
		Subsystem: "feed",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0=closed, 1=open, 2=half-open",
	}, []string{"name"})

	// CircuitBreakerFailures counts operations refused by an open breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "feed",
		Name:      "circuit_breaker_failures_total",
		Help:      "Operations dropped because the circuit breaker was open",
	}, []string{"name"})

	// RateLimitRequests counts rate-limit checks performed
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "ratelimit",
		Name:      "requests_total",
		Help:      "Rate limit checks performed",
	}, []string{"scope"})

	// RateLimitExceeded counts requests refused by the limiter
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beamcast",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Requests rejected by the rate limiter",
	}, []string{"scope"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
