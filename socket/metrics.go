package socket

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors a Client reports to.
// A nil *Metrics records nothing.
type Metrics struct {
	packetsSent       *prometheus.CounterVec
	packetsReceived   *prometheus.CounterVec
	decodeErrors      prometheus.Counter
	unmatchedReplies  prometheus.Counter
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	pendingRequests   prometheus.Gauge
	stateTransitions  *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
}

// NewMetrics registers the client collectors with reg under namespace.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	const subsystem = "socket"

	return &Metrics{
		packetsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Method packets written to the transport.",
		}, []string{"method"}),
		packetsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Packets decoded from the transport, by type.",
		}, []string{"type"}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they could not be decoded.",
		}),
		unmatchedReplies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unmatched_replies_total",
			Help:      "Replies dropped because no request with their id was pending.",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Completed requests by method and outcome.",
		}, []string{"method", "outcome"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to its resolution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		pendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_requests",
			Help:      "Requests waiting for a reply.",
		}),
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Connection state transitions by target state.",
		}, []string{"state"}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts.",
		}),
	}
}

func (m *Metrics) sent(method string) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(method).Inc()
}

func (m *Metrics) received(typ PacketType) {
	if m == nil {
		return
	}
	m.packetsReceived.WithLabelValues(string(typ)).Inc()
}

func (m *Metrics) decodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) unmatchedReply() {
	if m == nil {
		return
	}
	m.unmatchedReplies.Inc()
}

func (m *Metrics) requestDone(method, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
	m.requestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) setPending(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(n))
}

func (m *Metrics) transition(to ConnectionState) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(to.String()).Inc()
}

func (m *Metrics) reconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}
