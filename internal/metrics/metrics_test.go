package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Pass("source", "recorded")
	m.Pass("source", "recorded")
	m.Pass("destination", "reported")
	m.EventsSeen("source", 3)
	m.EventsSeen("source", 0)
	m.ActionSubmitted("source")
	m.DuplicateSkipped("destination")
	m.Error("transient")
	m.CursorHeight("source", 105)

	if got := testutil.ToFloat64(m.passes.WithLabelValues("source", "recorded")); got != 2 {
		t.Fatalf("passes = %v", got)
	}
	if got := testutil.ToFloat64(m.eventsSeen.WithLabelValues("source")); got != 3 {
		t.Fatalf("events seen = %v", got)
	}
	if got := testutil.ToFloat64(m.cursorHeight.WithLabelValues("source")); got != 105 {
		t.Fatalf("cursor height = %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("transient")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Pass("source", "recorded")
	m.Error("config")
	m.CursorHeight("source", 1)
}
