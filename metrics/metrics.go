// Package metrics exposes prometheus instrumentation for the registry
// client and a standalone metrics server for the binaries that embed it.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruteri/enrollment-registry-client/interfaces"
)

// ClientMetrics records management-operation outcomes and latencies.
type ClientMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewClientMetrics creates and registers the client metrics on the default
// prometheus registry.
func NewClientMetrics(namespace string) *ClientMetrics {
	return &ClientMetrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_operations_total",
			Help:      "Registry management operations by operation and outcome kind",
		}, []string{"operation", "outcome"}),
		Duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registry_operation_duration_seconds",
			Help:      "End-to-end duration of registry management operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// ObserveOperation records one completed operation.
func (m *ClientMetrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	m.Operations.WithLabelValues(operation, interfaces.KindLabel(err)).Inc()
	m.Duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// MetricsServer serves the prometheus metrics endpoint on its own address.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given service name and listen address.
func New(name, addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

// ListenAndServe blocks serving the metrics endpoint.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
