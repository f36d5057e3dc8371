package metrics

import "github.com/prometheus/client_golang/prometheus"

// Lookup kinds and results used as label values.
const (
	KindGeo  = "geo"
	KindName = "name"

	ResultCall    = "call"
	ResultCached  = "cached"
	ResultLocal   = "local"
	ResultFailure = "failure"
)

// Metrics holds the dashboard's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Lookups          *prometheus.CounterVec
	RowsIngested     prometheus.Counter
	Uploads          *prometheus.CounterVec
	ScoringRuns      *prometheus.CounterVec
	AnomaliesFlagged prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipdr_enrichment_lookups_total",
			Help: "Enrichment lookups by kind and result",
		}, []string{"kind", "result"}),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ipdr_rows_ingested_total",
			Help: "Rows appended to ipdr_logs",
		}),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipdr_uploads_total",
			Help: "Processed uploads by outcome",
		}, []string{"outcome"}),
		ScoringRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ipdr_scoring_runs_total",
			Help: "Anomaly scoring runs by outcome",
		}, []string{"outcome"}),
		AnomaliesFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ipdr_anomalies_flagged_total",
			Help: "Sessions labelled anomalous",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.RowsIngested, m.Uploads, m.ScoringRuns, m.AnomaliesFlagged)
	}
	return m
}

func (m *Metrics) Lookup(kind, result string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Upload(outcome string, rows int) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	if rows > 0 {
		m.RowsIngested.Add(float64(rows))
	}
}

func (m *Metrics) Scoring(outcome string, flagged int) {
	if m == nil {
		return
	}
	m.ScoringRuns.WithLabelValues(outcome).Inc()
	if flagged > 0 {
		m.AnomaliesFlagged.Add(float64(flagged))
	}
}
