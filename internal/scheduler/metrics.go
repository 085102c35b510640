package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the cycle scheduler
type Metrics struct {
	CyclesRun      prometheus.Counter
	CycleFailures  prometheus.Counter
	SkippedTicks   prometheus.Counter
	Matched        prometheus.Counter
	Unmatched      prometheus.Counter
	Rejected       *prometheus.CounterVec
	SubmitFailures prometheus.Counter
	CycleDuration  prometheus.Histogram
	LastRun        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CyclesRun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Total completed allocation cycles",
		}),
		CycleFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "scheduler",
			Name:      "cycle_failures_total",
			Help:      "Cycles aborted by fetch or lock errors",
		}),
		SkippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "scheduler",
			Name:      "skipped_ticks_total",
			Help:      "Ticks skipped because a cycle was still running",
		}),
		Matched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "allocator",
			Name:      "matched_total",
			Help:      "Demands assigned a resource",
		}),
		Unmatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "allocator",
			Name:      "unmatched_total",
			Help:      "Demands left without a resource after a cycle",
		}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "allocator",
			Name:      "rejected_records_total",
			Help:      "Malformed input records skipped",
		}, []string{"kind"}),
		SubmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "matcher",
			Subsystem: "settlement",
			Name:      "submit_failures_total",
			Help:      "Match submissions rejected by the settlement layer",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matcher",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of allocation cycles",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "matcher",
			Subsystem: "scheduler",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		}),
	}
}
