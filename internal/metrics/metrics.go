package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "wirechat"

var (
	// ConnectionsActive counts open transport connections, authenticated or not.
	ConnectionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "number of open client connections",
		}, []string{"transport"})

	// SessionsOnline mirrors the registry size.
	SessionsOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "number of authenticated sessions in the registry",
		})

	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "authentication attempts by action and result",
		}, []string{"action", "result"})

	MessagesBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_broadcast_total",
			Help:      "chat messages accepted for broadcast",
		})

	DeliveriesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "events that could not be queued for a recipient",
		}, []string{"event"})

	AcceptErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "failed accepts on the tcp listener",
		})

	ConnectionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "connections refused before a handler started",
		}, []string{"reason"})
)

// NewRegistry returns a registry holding the process and Go collectors plus
// every collector of this package. The collectors are package globals, so the
// same values are visible from every registry built here.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ConnectionsActive,
		SessionsOnline,
		AuthAttempts,
		MessagesBroadcast,
		DeliveriesDropped,
		AcceptErrors,
		ConnectionsRejected,
	)
	return reg
}
