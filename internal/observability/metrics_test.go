package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// All assertions live in one test because promauto registers on the
// global registry and a second NewMetrics with the same namespace
// would panic.
func TestMetrics(t *testing.T) {
	m := NewMetrics("sweepd_test")

	m.EventsReceived.WithLabelValues("DOGE").Inc()
	m.EventsReceived.WithLabelValues("DOGE").Inc()
	m.EventsDeduped.WithLabelValues("DOGE").Inc()
	m.WatchSetSize.WithLabelValues("DOGE").Set(7)
	m.SweepsAttempted.WithLabelValues("LTC").Inc()
	m.SweepsCollected.WithLabelValues("LTC").Inc()
	m.EligibleRecords.WithLabelValues("LTC").Set(3)

	if got := testutil.ToFloat64(m.EventsReceived.WithLabelValues("DOGE")); got != 2 {
		t.Errorf("events received = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsDeduped.WithLabelValues("DOGE")); got != 1 {
		t.Errorf("events deduped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.WatchSetSize.WithLabelValues("DOGE")); got != 7 {
		t.Errorf("watch set size = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.SweepsAttempted.WithLabelValues("LTC")); got != 1 {
		t.Errorf("sweeps attempted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EligibleRecords.WithLabelValues("LTC")); got != 3 {
		t.Errorf("eligible records = %v, want 3", got)
	}

	// An unused coin label reads zero, not an error.
	if got := testutil.ToFloat64(m.SweepsFailed.WithLabelValues("BTC")); got != 0 {
		t.Errorf("sweeps failed = %v, want 0", got)
	}

	// Package-level helpers target the default instance without
	// touching the test namespace.
	RecordEventReceived("DOGE")
	if got := testutil.ToFloat64(DefaultMetrics.EventsReceived.WithLabelValues("DOGE")); got != 1 {
		t.Errorf("default events received = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.EventsReceived.WithLabelValues("DOGE")); got != 2 {
		t.Errorf("test-namespace counter changed by default helper: %v", got)
	}
}
