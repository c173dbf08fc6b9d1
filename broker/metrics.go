package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// drop reasons recorded on the dropped-messages counter
const (
	dropQueueFull = "queue_full"
	dropCapacity  = "capacity"
	dropExpired   = "expired"
	dropOversize  = "oversize"
	dropOffline   = "offline"
	dropRetries   = "retries_exhausted"
)

type metrics struct {
	clientsConnected   prometheus.Gauge
	sessionsTotal      prometheus.Gauge
	messagesPublished  prometheus.Counter
	messagesDelivered  prometheus.Counter
	messagesDropped    *prometheus.CounterVec
	messagesRetained   prometheus.GaugeFunc
	inflightMessages   prometheus.Gauge
	protocolViolations prometheus.Counter
	authFailures       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, retainedCount func() float64) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &metrics{
		clientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "axd",
			Name:      "clients_connected",
			Help:      "Number of currently connected clients",
		}),
		sessionsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "axd",
			Name:      "sessions_total",
			Help:      "Number of sessions held by the router, connected or not",
		}),
		messagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "axd",
			Name:      "messages_published_total",
			Help:      "Publish events accepted by the router",
		}),
		messagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "axd",
			Name:      "messages_delivered_total",
			Help:      "Messages handed to connection outbound queues",
		}),
		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "axd",
			Name:      "messages_dropped_total",
			Help:      "Messages dropped by the router",
		}, []string{"reason"}),
		messagesRetained: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "axd",
			Name:      "messages_retained",
			Help:      "Entries in the retained message table",
		}, retainedCount),
		inflightMessages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "axd",
			Name:      "messages_inflight",
			Help:      "Outbound QoS1/2 messages awaiting acknowledgment",
		}),
		protocolViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "axd",
			Name:      "protocol_violations_total",
			Help:      "Malformed event sequences observed",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "axd",
			Name:      "auth_failures_total",
			Help:      "Rejected connects and denied publish or subscribe operations",
		}),
	}
}
