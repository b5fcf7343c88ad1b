// Package metrics exposes workflow and HTTP metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/purchase-approval/internal/application/port"
)

// Registry owns every collector of the service
type Registry struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// NewRegistry creates the collectors under namespace, plus the Go runtime and process collectors
func NewRegistry(namespace string) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_operations_total",
			Help:      "Workflow operations by operation and outcome kind.",
		}, []string{"operation", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_transitions_total",
			Help:      "Committed request status changes.",
		}, []string{"from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by event type and resulting status.",
		}, []string{"event_type", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.operations,
		r.transitions,
		r.notifications,
		r.httpRequests,
		r.httpLatency,
	)
	return r
}

// OperationCompleted implements port.WorkflowMetrics
func (r *Registry) OperationCompleted(operation, outcome string) {
	r.operations.WithLabelValues(operation, outcome).Inc()
}

// TransitionRecorded implements port.WorkflowMetrics
func (r *Registry) TransitionRecorded(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

// NotificationDelivered implements port.WorkflowMetrics
func (r *Registry) NotificationDelivered(eventType, status string) {
	r.notifications.WithLabelValues(eventType, status).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry for scraping
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var _ port.WorkflowMetrics = (*Registry)(nil)
