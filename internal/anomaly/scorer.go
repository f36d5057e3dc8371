package anomaly

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ipdr-dashboard/internal/metrics"
	"ipdr-dashboard/internal/models"
)

// ErrNotEnoughData is returned when no row has all model features.
var ErrNotEnoughData = errors.New("not enough data to run anomaly detection after cleaning")

// Result is the outcome of one scoring run.
type Result struct {
	Total     int                   `json:"total"`
	Scored    int                   `json:"scored"`
	Excluded  int                   `json:"excluded"`
	Flagged   int                   `json:"flagged"`
	Records   []models.ScoredRecord `json:"-"`
	Anomalies []models.ScoredRecord `json:"anomalies"`
}

// Scorer recomputes features and labels sessions on every call; it keeps no
// model between runs.
type Scorer struct {
	detector Detector
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewScorer(detector Detector, logger *zap.Logger, m *metrics.Metrics) *Scorer {
	if detector == nil {
		detector = NewIsolationForest(DefaultTrees, DefaultSampleSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{detector: detector, logger: logger, metrics: m}
}

// Score labels every row that has all nine features. Rows with a missing
// feature are excluded from scoring but counted in Result.Excluded.
func (s *Scorer) Score(rows []models.IPDRLog, contamination float64) (*Result, error) {
	if !(contamination > 0 && contamination < 1) {
		s.metrics.Scoring("invalid", 0)
		return nil, fmt.Errorf("%w: got %v", ErrInvalidContamination, contamination)
	}

	features := BuildFeatures(rows)
	clean := make([]models.FeatureRecord, 0, len(features))
	for _, f := range features {
		if f.Complete() {
			clean = append(clean, f)
		}
	}
	if len(clean) == 0 {
		s.metrics.Scoring("not_enough_data", 0)
		return nil, ErrNotEnoughData
	}

	X := make([][]float64, len(clean))
	for i := range clean {
		X[i] = clean[i].Vector()
	}
	labels, err := s.detector.FitPredict(Standardize(X), contamination)
	if err != nil {
		s.metrics.Scoring("error", 0)
		return nil, fmt.Errorf("outlier detection failed: %w", err)
	}
	if len(labels) != len(clean) {
		s.metrics.Scoring("error", 0)
		return nil, fmt.Errorf("detector returned %d labels for %d rows", len(labels), len(clean))
	}

	res := &Result{
		Total:     len(rows),
		Scored:    len(clean),
		Excluded:  len(rows) - len(clean),
		Records:   make([]models.ScoredRecord, len(clean)),
		Anomalies: []models.ScoredRecord{},
	}
	for i := range clean {
		rec := models.ScoredRecord{FeatureRecord: clean[i], Label: labels[i]}
		res.Records[i] = rec
		if rec.Anomalous() {
			res.Anomalies = append(res.Anomalies, rec)
		}
	}
	res.Flagged = len(res.Anomalies)

	s.metrics.Scoring("ok", res.Flagged)
	s.logger.Info("Anomaly detection finished",
		zap.Int("scored", res.Scored),
		zap.Int("excluded", res.Excluded),
		zap.Int("flagged", res.Flagged),
		zap.Float64("contamination", contamination),
	)
	return res, nil
}
