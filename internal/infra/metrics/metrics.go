// Package metrics provides Prometheus metrics for streakd: counters and
// histograms for action processing, validation, classifier calls, and the
// HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Streak engine ──────────────────────────────────────────────────────────

// ActionsProcessed tracks valid actions by activity type and transition
// outcome (started, extended, restarted, unchanged).
var ActionsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "actions_processed_total",
	Help:      "Valid actions processed, by activity type and outcome.",
}, []string{"type", "outcome"})

// ValidationFailures tracks rejected actions by activity type.
var ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "validation_failures_total",
	Help:      "Actions rejected by structural or classifier validation.",
}, []string{"type"})

// StreaksLost tracks streaks that expired past their effective deadline.
var StreaksLost = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "streaks_lost_total",
	Help:      "Streaks transitioned to lost.",
})

// LazyExpiries tracks streaks lost through the lazy re-evaluation pass.
var LazyExpiries = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "lazy_expiries_total",
	Help:      "Streaks lost by lazy re-evaluation of unmentioned types.",
})

// ─── Classifier ─────────────────────────────────────────────────────────────

// ClassifierCalls tracks content classifier consultations by outcome
// (accepted, rejected, unavailable).
var ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "classifier_calls_total",
	Help:      "Content classifier consultations, by outcome.",
}, []string{"outcome"})

// ClassifierLatency tracks classifier inference duration.
var ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "streakd",
	Name:      "classifier_latency_seconds",
	Help:      "Content classifier inference duration in seconds.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
})

// ClassifierCacheHits tracks verdicts served from the LRU cache.
var ClassifierCacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "classifier_cache_hits_total",
	Help:      "Classifier verdicts served from the verdict cache.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// RequestDuration tracks HTTP request duration by route.
var RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "streakd",
	Name:      "request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// RequestsRejected tracks requests rejected at the boundary (400s).
var RequestsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "streakd",
	Name:      "requests_rejected_total",
	Help:      "Requests rejected by boundary validation.",
})
