package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Client connection
	SocketConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gymchat_socket_connected",
			Help: "1 while the realtime connection is open",
		},
	)

	SocketReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymchat_socket_reconnect_attempts_total",
			Help: "Reconnect attempts after a failed dial or a dropped connection",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymchat_socket_events_received_total",
			Help: "Inbound realtime events",
		},
		[]string{"event"},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymchat_socket_events_emitted_total",
			Help: "Outbound realtime events by result",
		},
		[]string{"event", "result"},
	)

	// Conversation
	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymchat_messages_dropped_total",
			Help: "Inbound messages not appended to the active conversation",
		},
		[]string{"reason"}, // role_mismatch, inactive_peer, misrouted, decode, duplicate
	)

	StaleLoadsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymchat_stale_history_loads_total",
			Help: "History responses discarded because another peer was selected meanwhile",
		},
	)

	// REST
	RESTRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gymchat_rest_request_duration_seconds",
			Help:    "REST request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	RESTFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymchat_rest_failures_total",
			Help: "REST requests that failed or returned a non-2xx status",
		},
		[]string{"endpoint"},
	)

	NotificationsDisplayed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gymchat_notifications_displayed",
			Help: "Entries in the last computed notification display list",
		},
	)

	// Sandbox hub
	HubDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gymchat_hub_deliveries_total",
			Help: "Frames delivered by the sandbox hub",
		},
		[]string{"event"},
	)

	HubRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gymchat_hub_rate_limited_total",
			Help: "send_message frames rejected by the per-client limiter",
		},
	)

	HubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gymchat_hub_clients",
			Help: "Open sandbox socket clients",
		},
	)
)
