package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	taskOps      *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		taskOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskapi_task_operations_total",
				Help: "Total number of task operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		taskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskapi_task_operation_duration_seconds",
				Help:    "Duration of task store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskapi_auth_events_total",
				Help: "Total number of authentication events by event",
			},
			[]string{"event"},
		),
	}
}

// ObserveTaskOp records one task operation.
func (m *Metrics) ObserveTaskOp(operation, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.taskOps.WithLabelValues(operation, result).Inc()
	m.taskDuration.WithLabelValues(operation).Observe(took.Seconds())
}

// AuthEvent counts an authentication event such as "register", "login_failed"
// or a rejected-token error code.
func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
