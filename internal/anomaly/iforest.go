package anomaly

import (
	"errors"
	"fmt"

	"github.com/e-XpertSolutions/go-iforest/iforest"

	"ipdr-dashboard/internal/models"
)

// Isolation forest defaults.
const (
	DefaultTrees      = 100
	DefaultSampleSize = 256
)

var (
	ErrInvalidContamination = errors.New("contamination must be in (0, 1)")
	ErrEmptyMatrix          = errors.New("feature matrix is empty")
)

// Detector labels each row of a standardized feature matrix as normal (1)
// or anomalous (-1), flagging roughly the contamination fraction of rows.
type Detector interface {
	FitPredict(X [][]float64, contamination float64) ([]int, error)
}

// IsolationForest adapts go-iforest to the Detector contract. A new forest
// is trained on every call.
type IsolationForest struct {
	Trees      int
	SampleSize int
}

func NewIsolationForest(trees, sampleSize int) *IsolationForest {
	if trees <= 0 {
		trees = DefaultTrees
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &IsolationForest{Trees: trees, SampleSize: sampleSize}
}

// FitPredict trains a forest on X with the contamination as outlier ratio
// and labels the training rows.
func (f *IsolationForest) FitPredict(X [][]float64, contamination float64) ([]int, error) {
	if !(contamination > 0 && contamination < 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidContamination, contamination)
	}
	if len(X) == 0 {
		return nil, ErrEmptyMatrix
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}

	// A single row cannot be isolated from anything.
	if len(X) < 2 {
		return []int{models.LabelNormal}, nil
	}

	sampleSize := f.SampleSize
	if sampleSize > len(X) {
		sampleSize = len(X)
	}
	forest := iforest.NewForest(f.Trees, sampleSize, contamination)
	forest.Train(X)
	forest.Test(X)

	if len(forest.Labels) != len(X) {
		return nil, fmt.Errorf("forest returned %d labels for %d rows", len(forest.Labels), len(X))
	}
	labels := make([]int, len(X))
	for i, l := range forest.Labels {
		if l == 1 {
			labels[i] = models.LabelAnomalous
		} else {
			labels[i] = models.LabelNormal
		}
	}
	return labels, nil
}
