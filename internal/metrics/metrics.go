// Package metrics provides Prometheus instrumentation for the chat server.
// It exposes gauges for connection, registration, group and pair-chat counts,
// and counters for frame and message throughput.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of open TCP connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkline_connections_active",
		Help: "Current number of open client connections",
	})

	// ClientsRegistered tracks how many connections hold a registered name.
	ClientsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkline_clients_registered",
		Help: "Current number of clients registered by name",
	})

	// GroupsActive tracks the current number of groups.
	GroupsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkline_groups_active",
		Help: "Current number of chat groups",
	})

	// PairChatsActive tracks the current number of open pair chats.
	PairChatsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "talkline_pair_chats_active",
		Help: "Current number of open pair-chat sessions",
	})

	// FramesReceived counts every admitted inbound frame.
	FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkline_frames_received_total",
		Help: "Total number of inbound frames admitted by the rate limiter",
	})

	// MessagesTotal counts delivered application messages, labeled by kind:
	// "direct", "group", or "echo".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "talkline_messages_total",
		Help: "Total number of application messages delivered",
	}, []string{"kind"})

	// RateLimited counts frames refused by the rate limiter.
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkline_rate_limited_total",
		Help: "Total number of frames refused by the rate limiter",
	})

	// ProtocolErrors counts ERROR replies sent to clients.
	ProtocolErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "talkline_protocol_errors_total",
		Help: "Total number of ERROR replies sent to clients",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		ClientsRegistered,
		GroupsActive,
		PairChatsActive,
		FramesReceived,
		MessagesTotal,
		RateLimited,
		ProtocolErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
