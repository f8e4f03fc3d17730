package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "readiness"

// Collector records assignment lifecycle metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	assignmentsCreated  prometheus.Counter
	eligibilityBlocks   *prometheus.CounterVec
	deadlines           *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	immutableViolations prometheus.Counter
	sweepRuns           prometheus.Counter
	sweepTransitioned   prometheus.Counter
	sweepDuration       prometheus.Histogram
	notifyFailures      prometheus.Counter
}

// NewCollector registers every metric on reg. A nil reg gets a fresh private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Collector{
		gatherer: reg,
		assignmentsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_created_total",
			Help:      "Assignments created by batch requests",
		}),
		eligibilityBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_blocks_total",
			Help:      "Workers rejected from a batch, by reason",
		}, []string{"reason"}),
		deadlines: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadlines_total",
			Help:      "Computed deadlines by provenance and fallback reason",
		}, []string{"provenance", "fallback_reason"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Status transition attempts by target status and outcome",
		}, []string{"to", "outcome"}),
		immutableViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "immutable_violations_total",
			Help:      "Attempts to modify a terminal assignment",
		}),
		sweepRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Overdue sweeps executed",
		}),
		sweepTransitioned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitioned_total",
			Help:      "Assignments moved to overdue by the sweeper",
		}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of an overdue sweep",
			Buckets:   prometheus.DefBuckets,
		}),
		notifyFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_failures_total",
			Help:      "Assignment notifications that could not be delivered",
		}),
	}
}

// Handler serves the collector's registry in the prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) AssignmentsCreated(n int) {
	if c == nil {
		return
	}
	c.assignmentsCreated.Add(float64(n))
}

func (c *Collector) EligibilityBlocked(reason string) {
	if c == nil {
		return
	}
	c.eligibilityBlocks.WithLabelValues(reason).Inc()
}

func (c *Collector) DeadlineComputed(provenance, fallbackReason string) {
	if c == nil {
		return
	}
	c.deadlines.WithLabelValues(provenance, fallbackReason).Inc()
}

// Transition records an attempt; applied is false when a concurrent writer won
func (c *Collector) Transition(to string, applied bool) {
	if c == nil {
		return
	}
	outcome := "applied"
	if !applied {
		outcome = "noop"
	}
	c.transitions.WithLabelValues(to, outcome).Inc()
}

func (c *Collector) ImmutableViolation() {
	if c == nil {
		return
	}
	c.immutableViolations.Inc()
}

func (c *Collector) Sweep(transitioned int, seconds float64) {
	if c == nil {
		return
	}
	c.sweepRuns.Inc()
	c.sweepTransitioned.Add(float64(transitioned))
	c.sweepDuration.Observe(seconds)
}

func (c *Collector) NotifyFailed() {
	if c == nil {
		return
	}
	c.notifyFailures.Inc()
}
