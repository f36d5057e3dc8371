package models

import (
	"math"
	"time"
)

// Labels assigned by the outlier detector.
const (
	LabelNormal    = 1
	LabelAnomalous = -1
)

// FeatureRecord is derived at read time from a persisted session.
// Missing numeric features are NaN.
type FeatureRecord struct {
	UserNumber         string     `json:"user_number"`
	SourceIP           string     `json:"source_ip"`
	DestinationIP      string     `json:"destination_ip"`
	SessionStartTime   *time.Time `json:"session_start_time"`
	SessionDuration    float64    `json:"session_duration"`
	DataUsageMB        float64    `json:"data_usage_mb"`
	HourOfDay          float64    `json:"hour_of_day"`
	DayOfWeek          float64    `json:"day_of_week"`
	AvgSessionDuration float64    `json:"avg_session_duration"`
	StdSessionDuration float64    `json:"std_session_duration"`
	AvgDataUsageMB     float64    `json:"avg_data_usage_mb"`
	StdDataUsageMB     float64    `json:"std_data_usage_mb"`
	UniqueDestCount    float64    `json:"unique_dest_count"`
}

// Vector returns the nine model features in a fixed order.
func (f *FeatureRecord) Vector() []float64 {
	return []float64{
		f.SessionDuration, f.DataUsageMB, f.HourOfDay, f.DayOfWeek,
		f.AvgSessionDuration, f.StdSessionDuration, f.AvgDataUsageMB,
		f.StdDataUsageMB, f.UniqueDestCount,
	}
}

// Complete reports whether every model feature is present.
func (f *FeatureRecord) Complete() bool {
	for _, v := range f.Vector() {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// ScoredRecord is a FeatureRecord labelled by the outlier detector.
type ScoredRecord struct {
	FeatureRecord
	Label int `json:"label"`
}

// Anomalous reports whether the record was flagged.
func (s *ScoredRecord) Anomalous() bool {
	return s.Label == LabelAnomalous
}
