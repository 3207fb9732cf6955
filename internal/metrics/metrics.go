// Package metrics holds the Prometheus collectors of the sync core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nchat"

// Metrics groups the counters updated by the API client, channel manager,
// peer directory and thread reconciler.
type Metrics struct {
	APIRequests          *prometheus.CounterVec
	PushesReceived       *prometheus.CounterVec
	PushDecodeErrors     prometheus.Counter
	DuplicatesSuppressed prometheus.Counter
	ThreadAppends        prometheus.Counter
	StaleFetchesDropped  prometheus.Counter
	ConnectAttempts      prometheus.Counter
	ConnectFailures      prometheus.Counter
	PeerRefreshes        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests and optional wiring rely on.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Remote API requests by operation and result kind.",
		}, []string{"op", "result"}),
		PushesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_envelopes_total",
			Help:      "Envelopes received on the notification channel by type.",
		}, []string{"type"}),
		PushDecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_decode_errors_total",
			Help:      "Malformed payloads dropped by the notification channel.",
		}),
		DuplicatesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_duplicates_suppressed_total",
			Help:      "Messages not appended because their event id was already present.",
		}),
		ThreadAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_appends_total",
			Help:      "Messages appended to the active thread.",
		}),
		StaleFetchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_stale_fetches_total",
			Help:      "Thread fetch results discarded because the active peer changed.",
		}),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connect_attempts_total",
			Help:      "Notification channel dial attempts.",
		}),
		ConnectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_connect_failures_total",
			Help:      "Notification channel dial or read failures.",
		}),
		PeerRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_refreshes_total",
			Help:      "Peer directory refreshes by outcome.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.APIRequests,
			m.PushesReceived,
			m.PushDecodeErrors,
			m.DuplicatesSuppressed,
			m.ThreadAppends,
			m.StaleFetchesDropped,
			m.ConnectAttempts,
			m.ConnectFailures,
			m.PeerRefreshes,
		)
	}
	return m
}

// OrNop returns m, or a fresh unregistered set when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m == nil {
		return New(nil)
	}
	return m
}

// Handler serves the collectors registered on g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
