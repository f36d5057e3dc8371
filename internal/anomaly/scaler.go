package anomaly

import "gonum.org/v1/gonum/stat"

// Standardize returns a copy of X with every column shifted to zero mean and
// scaled to unit population variance. Constant columns become all zeros.
func Standardize(X [][]float64) [][]float64 {
	if len(X) == 0 {
		return nil
	}
	width := len(X[0])
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, width)
	}

	col := make([]float64, len(X))
	for j := 0; j < width; j++ {
		constant := true
		for i := range X {
			col[i] = X[i][j]
			if col[i] != col[0] {
				constant = false
			}
		}
		if constant {
			continue
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		for i := range X {
			out[i][j] = (X[i][j] - mean) / std
		}
	}
	return out
}
