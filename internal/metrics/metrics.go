// Package metrics exposes the attribution core's Prometheus collectors:
// attribution outcomes, per-tag drops, event-report evictions, and
// per-invocation batch size. None of the core packages import this one
// directly, so the core itself stays free of an observability dependency;
// cmd/attributor records the batch size and datastore errors after each
// batch-driver run. RecordAttributed, RecordDrop and RecordEviction have
// no callers in this repository, so those counters stay at zero. The
// collectors follow
// the promauto registration style of the pack's metrics.go files (e.g.
// tomtom215-cartographus's internal/metrics package).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Attributions counts successful attributions, by which path produced
	// a report (event, aggregate, both).
	Attributions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attributor_attributions_total",
			Help: "Total number of triggers attributed, by which path(s) produced a report",
		},
		[]string{"path"},
	)

	// Drops counts business-rule drops by debug tag (spec.md §4.8, §4.6,
	// §4.7). "none" covers drops with no associated tag (e.g. aggregate
	// path drops, which spec.md names no debug tags for).
	Drops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attributor_drops_total",
			Help: "Total number of triggers dropped, by debug tag",
		},
		[]string{"tag"},
	)

	// Evictions counts event reports evicted by a higher-priority report
	// sharing the same report-time bucket (spec.md §4.7 step 9).
	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attributor_event_report_evictions_total",
			Help: "Total number of event reports evicted by a higher-priority report",
		},
	)

	// BatchSize observes the number of pending triggers the batch driver
	// processed in a single invocation (spec.md §4.1).
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attributor_batch_size",
			Help:    "Number of pending triggers processed per invocation",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// DatastoreErrors counts invocations that aborted on a datastore-
	// transient failure (spec.md §7 kind 1).
	DatastoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attributor_datastore_errors_total",
			Help: "Total number of invocations that aborted on a datastore error",
		},
	)
)

// RecordAttributed records a successful attribution for the given path
// label ("event", "aggregate", or "event+aggregate").
func RecordAttributed(path string) {
	Attributions.WithLabelValues(path).Inc()
}

// RecordDrop records a business-rule drop. tag is empty for drops spec.md
// names no debug tag for.
func RecordDrop(tag string) {
	if tag == "" {
		tag = "none"
	}

	Drops.WithLabelValues(tag).Inc()
}

// RecordEviction records one event-report eviction.
func RecordEviction() {
	Evictions.Inc()
}

// RecordBatch records the size of one batch-driver invocation.
func RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// RecordDatastoreError records one retry-needed invocation.
func RecordDatastoreError() {
	DatastoreErrors.Inc()
}
