// Package preprocessing provides the feature-engineering stages of the
// study pipeline:
//
//   - StandardScaler: zero-mean, unit-variance standardization
//   - MinMaxScaler: scaling to a fixed range
//   - OneHotEncoder: categorical values to 0/1 indicator columns
//   - FeatureEncoder: the declarative table-to-design-matrix specification
//     combining one-hot weekday encoding with numeric scaling
//
// All components follow the Fit/Transform/FitTransform pattern on gonum
// matrices and track fitted state through model.StateManager, so an
// unfitted Transform fails with a NotFittedError instead of producing
// garbage.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// zeroGuard is the threshold below which a spread is treated as zero and
// replaced by 1 to avoid division blow-ups on constant features.
const zeroGuard = 1e-8

// StandardScaler standardizes features to zero mean and unit variance
// using statistics learned from the training partition.
type StandardScaler struct {
	// State tracks fitted status. Public for gob encoding.
	State *model.StateManager

	// Mean holds the per-feature mean learned by Fit.
	Mean []float64

	// Scale holds the per-feature standard deviation learned by Fit.
	Scale []float64

	// NFeatures is the number of features seen at fit time.
	NFeatures int

	// WithMean controls whether the mean is subtracted.
	WithMean bool

	// WithStd controls whether values are divided by the deviation.
	WithStd bool
}

// NewStandardScaler creates a StandardScaler.
//
// Parameters:
//   - withMean: center each feature at zero
//   - withStd: divide each feature by its standard deviation
//
// Example:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(XTrain)
//	XScaled, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault creates a StandardScaler with both centering
// and scaling enabled.
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted reports whether Fit has completed successfully.
func (s *StandardScaler) IsFitted() bool {
	return s.State.IsFitted()
}

// Fit learns the per-feature mean and standard deviation from X.
//
// Errors:
//   - ErrEmptyData: if X has no rows or columns
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer airsiftErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return airsiftErrors.NewModelError("StandardScaler.Fit", "empty data", airsiftErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	if s.WithMean {
		for j := 0; j < c; j++ {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}
	}

	if s.WithStd {
		for j := 0; j < c; j++ {
			sumSquares := 0.0
			for i := 0; i < r; i++ {
				diff := X.At(i, j) - s.Mean[j]
				sumSquares += diff * diff
			}
			s.Scale[j] = math.Sqrt(sumSquares / float64(r))

			// Constant features would otherwise divide by zero.
			if math.Abs(s.Scale[j]) < zeroGuard {
				s.Scale[j] = 1.0
			}
		}
	} else {
		for j := 0; j < c; j++ {
			s.Scale[j] = 1.0
		}
	}

	s.State.SetFitted()
	s.State.SetDimensions(c, r)
	return nil
}

// Transform standardizes X with the fitted statistics:
// X_scaled = (X - mean) / scale.
//
// Errors:
//   - NotFittedError: if Fit has not been called
//   - DimensionError: if X has a different feature count than training
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "StandardScaler.Transform")
	if !s.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, airsiftErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform fits the scaler on X and returns the transformed X.
func (s *StandardScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "StandardScaler.FitTransform")
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized data back to the original scale:
// X_orig = X_scaled * scale + mean.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, airsiftErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// GetParams returns the scaler's configuration.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String returns a short description of the scaler.
func (s *StandardScaler) String() string {
	if !s.State.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler scales features to a fixed range, by default [0, 1].
// Selected through the study configuration as an alternative to
// standardization.
type MinMaxScaler struct {
	// State tracks fitted status. Public for gob encoding.
	State *model.StateManager

	// DataMin and DataMax hold the per-feature extremes seen at fit time.
	DataMin []float64
	DataMax []float64

	// Scale holds the per-feature spread (max - min), guarded against zero.
	Scale []float64

	// NFeatures is the number of features seen at fit time.
	NFeatures int

	// FeatureRange is the target [min, max] of the transformation.
	FeatureRange [2]float64
}

// NewMinMaxScaler creates a MinMaxScaler targeting featureRange.
//
// Example:
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0, 1})
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		State:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault creates a MinMaxScaler targeting [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// IsFitted reports whether Fit has completed successfully.
func (m *MinMaxScaler) IsFitted() bool {
	return m.State.IsFitted()
}

// Fit learns the per-feature minimum and maximum from X.
func (m *MinMaxScaler) Fit(X mat.Matrix) (err error) {
	defer airsiftErrors.Recover(&err, "MinMaxScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return airsiftErrors.NewModelError("MinMaxScaler.Fit", "empty data", airsiftErrors.ErrEmptyData)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi

		spread := hi - lo
		if math.Abs(spread) < zeroGuard {
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = spread
		}
	}

	m.State.SetFitted()
	m.State.SetDimensions(c, r)
	return nil
}

// Transform scales X into the configured feature range:
// X_scaled = (X - data_min) / (data_max - data_min) * range + range_min.
func (m *MinMaxScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "MinMaxScaler.Transform")
	if !m.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("MinMaxScaler", "Transform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, airsiftErrors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	span := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			scaled := (X.At(i, j)-m.DataMin[j])/m.Scale[j]*span + m.FeatureRange[0]
			result.Set(i, j, scaled)
		}
	}
	return result, nil
}

// FitTransform fits the scaler on X and returns the transformed X.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "MinMaxScaler.FitTransform")
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform maps scaled data back to the original range.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "MinMaxScaler.InverseTransform")
	if !m.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, airsiftErrors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	span := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			original := (X.At(i, j)-m.FeatureRange[0])/span*m.Scale[j] + m.DataMin[j]
			result.Set(i, j, original)
		}
	}
	return result, nil
}

// GetParams returns the scaler's configuration.
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String returns a short description of the scaler.
func (m *MinMaxScaler) String() string {
	if !m.State.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f])",
			m.FeatureRange[0], m.FeatureRange[1])
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=[%.1f, %.1f], n_features=%d)",
		m.FeatureRange[0], m.FeatureRange[1], m.NFeatures)
}
