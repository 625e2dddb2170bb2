// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine. Everything is
// labeled by coin; no HTTP exposition lives here.
type Metrics struct {
	// Monitor metrics
	EventsReceived *prometheus.CounterVec
	EventsDeduped  *prometheus.CounterVec
	Reconnects     *prometheus.CounterVec
	WatchSetSize   *prometheus.GaugeVec

	// Collector metrics
	SweepsAttempted *prometheus.CounterVec
	SweepsCollected *prometheus.CounterVec
	SweepsFailed    *prometheus.CounterVec
	ScansRun        *prometheus.CounterVec
	EligibleRecords *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sweepd"
	}

	return &Metrics{
		// Monitor metrics
		EventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_received_total",
			Help:      "Total number of transaction events received",
		}, []string{"coin"}),
		EventsDeduped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "events_deduped_total",
			Help:      "Total number of duplicate transaction events dropped",
		}, []string{"coin"}),
		Reconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "reconnects_total",
			Help:      "Total number of subscription channel reconnects",
		}, []string{"coin"}),
		WatchSetSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "watch_set_size",
			Help:      "Current number of watched addresses",
		}, []string{"coin"}),

		// Collector metrics
		SweepsAttempted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "sweeps_attempted_total",
			Help:      "Total number of sweep attempts",
		}, []string{"coin"}),
		SweepsCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "sweeps_collected_total",
			Help:      "Total number of sweeps broadcast successfully",
		}, []string{"coin"}),
		SweepsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "sweeps_failed_total",
			Help:      "Total number of records that reached the failed state",
		}, []string{"coin"}),
		ScansRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "scans_run_total",
			Help:      "Total number of periodic collection scans",
		}, []string{"coin"}),
		EligibleRecords: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "eligible_records",
			Help:      "Current number of records eligible for sweeping",
		}, []string{"coin"}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventReceived increments the received events counter.
func RecordEventReceived(coin string) {
	DefaultMetrics.EventsReceived.WithLabelValues(coin).Inc()
}

// RecordEventDeduped increments the deduplicated events counter.
func RecordEventDeduped(coin string) {
	DefaultMetrics.EventsDeduped.WithLabelValues(coin).Inc()
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect(coin string) {
	DefaultMetrics.Reconnects.WithLabelValues(coin).Inc()
}

// SetWatchSetSize updates the watch-set size gauge.
func SetWatchSetSize(coin string, size int) {
	DefaultMetrics.WatchSetSize.WithLabelValues(coin).Set(float64(size))
}

// RecordSweepAttempted increments the sweep attempts counter.
func RecordSweepAttempted(coin string) {
	DefaultMetrics.SweepsAttempted.WithLabelValues(coin).Inc()
}

// RecordSweepCollected increments the collected sweeps counter.
func RecordSweepCollected(coin string) {
	DefaultMetrics.SweepsCollected.WithLabelValues(coin).Inc()
}

// RecordSweepFailed increments the failed records counter.
func RecordSweepFailed(coin string) {
	DefaultMetrics.SweepsFailed.WithLabelValues(coin).Inc()
}

// RecordScan increments the scan counter.
func RecordScan(coin string) {
	DefaultMetrics.ScansRun.WithLabelValues(coin).Inc()
}

// SetEligibleRecords updates the eligible records gauge.
func SetEligibleRecords(coin string, count int) {
	DefaultMetrics.EligibleRecords.WithLabelValues(coin).Set(float64(count))
}
