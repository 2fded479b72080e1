// Package metrics exposes Conflux's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnections tracks the number of currently connected endpoints.
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "conflux_ws_connections",
		Help: "Current number of connected realtime endpoints",
	})

	// WSMessagesTotal counts chat messages accepted and broadcast by the hub.
	WSMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflux_ws_messages_total",
		Help: "Total number of chat messages broadcast",
	})

	// WSDroppedTotal counts clients disconnected for send-queue overflow.
	WSDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conflux_ws_dropped_clients_total",
		Help: "Total number of clients dropped due to backpressure",
	})

	// AuthFailuresTotal counts rejected auth operations by operation name.
	AuthFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflux_auth_failures_total",
		Help: "Total number of failed auth operations",
	}, []string{"op"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "conflux_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conflux_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(
		WSConnections,
		WSMessagesTotal,
		WSDroppedTotal,
		AuthFailuresTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
