// Package metrics exposes Prometheus counters for requests, image operations, sequence
// allocation and post-commit hooks.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services report to. Nop satisfies it when metrics are disabled.
type Recorder interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	ImageOperation(op, outcome string)
	SequenceAllocated(resource string)
	HookFailed(hook string)
}

// Image operation labels.
const (
	OpUpload  = "upload"
	OpDestroy = "destroy"

	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
)

// Collector records metrics into a Prometheus registry.
type Collector struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	images       *prometheus.CounterVec
	sequences    *prometheus.CounterVec
	hookFailures *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkadmin_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parkadmin_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkadmin_image_operations_total",
			Help: "CDN image operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkadmin_sequence_allocations_total",
			Help: "Sequence numbers handed out per resource.",
		}, []string{"resource"}),
		hookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parkadmin_post_commit_hook_failures_total",
			Help: "Failed post-commit hooks by name.",
		}, []string{"hook"}),
	}

	reg.MustRegister(c.requests, c.latency, c.images, c.sequences, c.hookFailures)

	return c
}

// ObserveRequest records a finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) ImageOperation(op, outcome string) {
	c.images.WithLabelValues(op, outcome).Inc()
}

func (c *Collector) SequenceAllocated(resource string) {
	c.sequences.WithLabelValues(resource).Inc()
}

func (c *Collector) HookFailed(hook string) {
	c.hookFailures.WithLabelValues(hook).Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every observation.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) ObserveRequest(string, string, int, time.Duration) {}
func (Nop) ImageOperation(string, string)                     {}
func (Nop) SequenceAllocated(string)                          {}
func (Nop) HookFailed(string)                                 {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
