package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "icsr"

// Collector records workflow, validation and HTTP metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	transitionsTotal   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec

	validationRunsTotal prometheus.Counter
	validationFindings  *prometheus.CounterVec
	validationDuration  prometheus.Histogram

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with Go and process collectors registered
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Workflow transition attempts by edge and outcome",
		}, []string{"from", "to", "outcome"}),
		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transition_duration_seconds",
			Help:      "Time spent processing a transition request",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		validationRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "runs_total",
			Help:      "Completed validation runs",
		}),
		validationFindings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "findings_total",
			Help:      "Validation findings by severity",
		}, []string{"severity"}),
		validationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "run_duration_seconds",
			Help:      "Time spent evaluating all active rules for a case",
			Buckets:   prometheus.DefBuckets,
		}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// ObserveTransition implements the workflow engine's MetricsRecorder
func (c *Collector) ObserveTransition(from, to, outcome string, d time.Duration) {
	c.transitionsTotal.WithLabelValues(from, to, outcome).Inc()
	c.transitionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveValidation implements the validation engine's MetricsRecorder
func (c *Collector) ObserveValidation(errors, warnings, infos int, d time.Duration) {
	c.validationRunsTotal.Inc()
	c.validationFindings.WithLabelValues("error").Add(float64(errors))
	c.validationFindings.WithLabelValues("warning").Add(float64(warnings))
	c.validationFindings.WithLabelValues("info").Add(float64(infos))
	c.validationDuration.Observe(d.Seconds())
}

// ObserveRequest records one HTTP request
func (c *Collector) ObserveRequest(route, method string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the collector's registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
