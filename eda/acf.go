package eda

import (
	"github.com/airsift/airsift/pkg/errors"
)

// ACF returns the autocorrelation of the series for lags 0 through
// maxLag, normalized by the series variance so lag 0 is exactly 1.
// maxLag is clamped to len(values)-1.
func ACF(values []float64, maxLag int) ([]float64, error) {
	n := len(values)
	if n == 0 {
		return nil, errors.NewValueError("ACF", "empty series")
	}
	if maxLag < 0 {
		return nil, errors.NewValueError("ACF", "maxLag must not be negative")
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	if variance == 0 {
		return nil, errors.NewValueError("ACF", "series has zero variance")
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (values[i] - mean) * (values[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf, nil
}
