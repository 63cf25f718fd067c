// Package metrics exposes Prometheus counters for the realtime channel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
)

// Collector implements realtime.Recorder on top of a Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	connections      *prometheus.GaugeVec
	authFailures     prometheus.Counter
	eventsEmitted    *prometheus.CounterVec
	deliveries       prometheus.Counter
	deliveryFailures prometheus.Counter
	invalidations    *prometheus.CounterVec
}

var _ realtime.Recorder = (*Collector)(nil)

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sgd_ws_connections",
			Help: "Live WebSocket connections by authentication state.",
		}, []string{"state"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgd_ws_auth_failures_total",
			Help: "Rejected authenticate handshakes.",
		}),
		eventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sgd_ws_events_emitted_total",
			Help: "Domain events handed to the dispatcher, by event name.",
		}, []string{"event"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgd_ws_deliveries_total",
			Help: "Event frames successfully queued to a connection.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sgd_ws_delivery_failures_total",
			Help: "Event frames dropped because the connection was stale.",
		}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sgd_ws_invalidations_total",
			Help: "Forced session invalidations, by reason.",
		}, []string{"reason"}),
	}

	c.registry.MustRegister(
		c.connections,
		c.authFailures,
		c.eventsEmitted,
		c.deliveries,
		c.deliveryFailures,
		c.invalidations,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ConnectionRegistered() {
	c.connections.WithLabelValues("unauthenticated").Inc()
}

func (c *Collector) ConnectionAuthenticated() {
	c.connections.WithLabelValues("unauthenticated").Dec()
	c.connections.WithLabelValues("authenticated").Inc()
}

func (c *Collector) ConnectionClosed(authenticated bool) {
	if authenticated {
		c.connections.WithLabelValues("authenticated").Dec()
		return
	}
	c.connections.WithLabelValues("unauthenticated").Dec()
}

func (c *Collector) AuthenticationFailed() {
	c.authFailures.Inc()
}

func (c *Collector) EventEmitted(event realtime.EventName) {
	c.eventsEmitted.WithLabelValues(string(event)).Inc()
}

func (c *Collector) Delivered() {
	c.deliveries.Inc()
}

func (c *Collector) DeliveryFailed() {
	c.deliveryFailures.Inc()
}

func (c *Collector) Invalidated(reason string) {
	c.invalidations.WithLabelValues(reason).Inc()
}
