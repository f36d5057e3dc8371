package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Lookup(KindGeo, ResultCall)
	m.Upload("ok", 3)
	m.Scoring("ok", 1)
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Lookup(KindGeo, ResultCall)
	m.Lookup(KindGeo, ResultCall)
	m.Lookup(KindName, ResultFailure)
	m.Upload("ok", 5)
	m.Upload("invalid", 0)
	m.Scoring("ok", 2)

	if got := testutil.ToFloat64(m.Lookups.WithLabelValues(KindGeo, ResultCall)); got != 2 {
		t.Fatalf("expected 2 geo calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.Lookups.WithLabelValues(KindName, ResultFailure)); got != 1 {
		t.Fatalf("expected 1 name failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsIngested); got != 5 {
		t.Fatalf("expected 5 rows, got %v", got)
	}
	if got := testutil.ToFloat64(m.AnomaliesFlagged); got != 2 {
		t.Fatalf("expected 2 anomalies, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Uploads); n != 2 {
		t.Fatalf("expected 2 upload series, got %d", n)
	}
}
