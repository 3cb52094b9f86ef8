// Package metrics exposes the Prometheus metrics every OpenPortal agent
// process records about its own runtime: job throughput, board occupancy,
// live peer connections, and handshake/reconnect counts. It is the
// observability surface named in spec.md's ambient stack; it does not
// implement the out-of-scope tracing-export infrastructure.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openportal"

// Registry is the process-wide collector registry. Agents that don't wish
// to expose metrics simply never start a server on it.
var Registry = prometheus.NewRegistry()

var (
	// JobsTotal counts job state transitions observed on a board, by peer
	// and the state the job moved into.
	JobsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "transitions_total",
			Help:      "Total number of job state transitions observed on a board.",
		},
		[]string{"peer", "state"},
	)

	// BoardSize is the current number of jobs held by a peer's board.
	BoardSize = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "jobs",
			Help:      "Number of jobs currently tracked on a peer's board.",
		},
		[]string{"peer"},
	)

	// BoardOutOfOrder counts rejected stale Board.Add calls.
	BoardOutOfOrder = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "out_of_order_total",
			Help:      "Total number of Board.Add calls rejected as out of order.",
		},
		[]string{"peer"},
	)

	// ConnectionsActive is the number of live peer connections.
	ConnectionsActive = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connection",
			Name:      "active",
			Help:      "Number of currently connected peers.",
		},
	)

	// HandshakeFailures counts handshake aborts by reason.
	HandshakeFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handshake",
			Name:      "failures_total",
			Help:      "Total number of handshake failures by reason.",
		},
		[]string{"reason"},
	)

	// ReconnectAttempts counts client reconnect-supervisor attempts.
	ReconnectAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of reconnect attempts made by the client supervisor.",
		},
		[]string{"peer"},
	)

	// MessageLatency tracks round-trip time for awaited jobs.
	MessageLatency = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "await_seconds",
			Help:      "Time spent waiting for a forwarded job to reach a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)
)

// Handler returns the HTTP handler serving Registry in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
