package anomaly

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"ipdr-dashboard/internal/models"
)

// FeatureNames lists the model features in matrix column order.
var FeatureNames = []string{
	"session_duration", "data_usage_mb", "hour_of_day", "day_of_week",
	"avg_session_duration", "std_session_duration", "avg_data_usage_mb",
	"std_data_usage_mb", "unique_dest_count",
}

type hourKey struct {
	source string
	hour   time.Time
}

type groupStats struct {
	avgDuration, stdDuration float64
	avgVolume, stdVolume     float64
}

// BuildFeatures derives one FeatureRecord per row. Statistics are computed
// over the whole slice; a missing input leaves the dependent features NaN.
// Rows without a source address take no part in the per-address statistics.
func BuildFeatures(rows []models.IPDRLog) []models.FeatureRecord {
	durations := make(map[string][]float64)
	volumes := make(map[string][]float64)
	destinations := make(map[hourKey]map[string]struct{})

	for i := range rows {
		row := &rows[i]
		if row.SourceIP == "" {
			continue
		}
		if row.TotalDurationSeconds != nil {
			durations[row.SourceIP] = append(durations[row.SourceIP], *row.TotalDurationSeconds)
		}
		if row.DataUsageMB != nil {
			volumes[row.SourceIP] = append(volumes[row.SourceIP], *row.DataUsageMB)
		}
		if row.SessionStartTime != nil {
			k := hourKey{row.SourceIP, row.SessionStartTime.UTC().Truncate(time.Hour)}
			set, ok := destinations[k]
			if !ok {
				set = make(map[string]struct{})
				destinations[k] = set
			}
			if row.DestinationIP != "" {
				set[row.DestinationIP] = struct{}{}
			}
		}
	}

	stats := make(map[string]groupStats)
	for i := range rows {
		src := rows[i].SourceIP
		if _, done := stats[src]; done || src == "" {
			continue
		}
		var g groupStats
		g.avgDuration, g.stdDuration = meanStd(durations[src])
		g.avgVolume, g.stdVolume = meanStd(volumes[src])
		stats[src] = g
	}

	out := make([]models.FeatureRecord, len(rows))
	for i := range rows {
		row := &rows[i]
		f := models.FeatureRecord{
			UserNumber:         row.UserNumber,
			SourceIP:           row.SourceIP,
			DestinationIP:      row.DestinationIP,
			SessionStartTime:   row.SessionStartTime,
			SessionDuration:    valueOrNaN(row.TotalDurationSeconds),
			DataUsageMB:        valueOrNaN(row.DataUsageMB),
			HourOfDay:          math.NaN(),
			DayOfWeek:          math.NaN(),
			AvgSessionDuration: math.NaN(),
			StdSessionDuration: math.NaN(),
			AvgDataUsageMB:     math.NaN(),
			StdDataUsageMB:     math.NaN(),
			UniqueDestCount:    math.NaN(),
		}
		if row.SessionStartTime != nil {
			t := row.SessionStartTime.UTC()
			f.HourOfDay = float64(t.Hour())
			// Monday is 0.
			f.DayOfWeek = float64((int(t.Weekday()) + 6) % 7)
			if row.SourceIP != "" {
				f.UniqueDestCount = float64(len(destinations[hourKey{row.SourceIP, t.Truncate(time.Hour)}]))
			}
		}
		if g, ok := stats[row.SourceIP]; ok {
			f.AvgSessionDuration, f.StdSessionDuration = g.avgDuration, g.stdDuration
			f.AvgDataUsageMB, f.StdDataUsageMB = g.avgVolume, g.stdVolume
		}
		out[i] = f
	}
	return out
}

// meanStd returns the mean and sample standard deviation of xs. The mean
// of no values is NaN; the deviation of fewer than two values is 0.
func meanStd(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
