package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Keeper counters and gauges, partitioned by asset.

var (
	// Scheduler
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "checks_total",
		Help:      "Total upkeep checks, by whether the upkeep was due",
	}, []string{"asset", "due"})

	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "commits_total",
		Help:      "Total successful commits",
	}, []string{"asset"})

	CommitErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "commit_errors_total",
		Help:      "Total failed commits by reason",
	}, []string{"asset", "reason"})

	CommitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "commit_duration_seconds",
		Help:      "Duration of a commit including the reserve read",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"asset"})

	Counter = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "counter",
		Help:      "Number of commits since deployment",
	}, []string{"asset"})

	StateSaveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ratekeeper",
		Subsystem: "state",
		Name:      "save_errors_total",
		Help:      "Total failed state file writes after a commit",
	}, []string{"asset"})

	// Rate model, as fractions of one ray
	Slope1 = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ratekeeper",
		Subsystem: "ratemodel",
		Name:      "variable_rate_slope1",
		Help:      "Current variable rate slope1",
	}, []string{"asset"})

	Utilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ratekeeper",
		Subsystem: "reserve",
		Name:      "utilization",
		Help:      "Utilization sampled at the last commit",
	}, []string{"asset"})

	WindowAverage = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ratekeeper",
		Subsystem: "upkeep",
		Name:      "window_average",
		Help:      "Average utilization over the sample window",
	}, []string{"asset"})
)
