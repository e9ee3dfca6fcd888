package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/dataset"
	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// Scaling selects how numeric features are rescaled by a FeatureEncoder.
type Scaling string

const (
	ScalingStandard Scaling = "standard"
	ScalingMinMax   Scaling = "minmax"
	ScalingNone     Scaling = "none"
)

// FeatureSpec declares which table columns become model features and how.
// Categorical columns are one-hot encoded; numeric columns are rescaled
// according to Scaling. Indicator columns are never rescaled.
type FeatureSpec struct {
	Numeric     []string
	Categorical []string
	Scaling     Scaling
}

// DefaultFeatureSpec returns the study's feature set: numeric hour of day
// and site coordinates, one-hot encoded weekday, standardized numerics.
func DefaultFeatureSpec() FeatureSpec {
	return FeatureSpec{
		Numeric:     []string{dataset.ColHour, dataset.ColLat, dataset.ColLon},
		Categorical: []string{dataset.ColWeekday},
		Scaling:     ScalingStandard,
	}
}

// FeatureEncoder fits a FeatureSpec against a training table and turns
// tables into design matrices. Fitting on the training partition only and
// reusing the same encoder for validation and test keeps the split free of
// leakage.
type FeatureEncoder struct {
	// State tracks fitted status. Public for gob encoding.
	State *model.StateManager

	// Spec is the declarative column specification.
	Spec FeatureSpec

	// Encoder handles the categorical block. Nil when Spec has no
	// categorical columns.
	Encoder *OneHotEncoder

	// Standard and MinMax are the numeric scalers; at most one is non-nil,
	// chosen by Spec.Scaling.
	Standard *StandardScaler
	MinMax   *MinMaxScaler

	// NumericCols is the width of the numeric block.
	NumericCols int
}

// NewFeatureEncoder creates a FeatureEncoder for spec. An empty spec
// (no columns at all) is rejected at Fit time.
func NewFeatureEncoder(spec FeatureSpec) *FeatureEncoder {
	if spec.Scaling == "" {
		spec.Scaling = ScalingStandard
	}
	return &FeatureEncoder{
		State: model.NewStateManager(),
		Spec:  spec,
	}
}

// IsFitted reports whether Fit has completed successfully.
func (f *FeatureEncoder) IsFitted() bool {
	return f.State.IsFitted()
}

// Fit learns scaler statistics and category layouts from tbl.
func (f *FeatureEncoder) Fit(tbl *dataset.Table) (err error) {
	defer airsiftErrors.Recover(&err, "FeatureEncoder.Fit")
	if len(f.Spec.Numeric) == 0 && len(f.Spec.Categorical) == 0 {
		return airsiftErrors.NewValueError("FeatureEncoder.Fit", "feature spec names no columns")
	}
	if tbl.Len() == 0 {
		return airsiftErrors.NewModelError("FeatureEncoder.Fit", "empty table", airsiftErrors.ErrEmptyData)
	}

	f.NumericCols = len(f.Spec.Numeric)
	f.Standard = nil
	f.MinMax = nil
	f.Encoder = nil

	if f.NumericCols > 0 {
		num, err := tbl.NumericMatrix(f.Spec.Numeric)
		if err != nil {
			return err
		}
		switch f.Spec.Scaling {
		case ScalingStandard:
			f.Standard = NewStandardScalerDefault()
			if err := f.Standard.Fit(num); err != nil {
				return err
			}
		case ScalingMinMax:
			f.MinMax = NewMinMaxScalerDefault()
			if err := f.MinMax.Fit(num); err != nil {
				return err
			}
		case ScalingNone:
			// Numerics pass through untouched.
		default:
			return airsiftErrors.NewValueError("FeatureEncoder.Fit",
				"unknown scaling: "+string(f.Spec.Scaling))
		}
	}

	if len(f.Spec.Categorical) > 0 {
		cats, err := tbl.Categorical(f.Spec.Categorical)
		if err != nil {
			return err
		}
		f.Encoder = NewOneHotEncoder()
		if err := f.Encoder.Fit(cats); err != nil {
			return err
		}
	}

	f.State.SetFitted()
	f.State.SetDimensions(f.NOutputs(), tbl.Len())
	return nil
}

// Transform builds the design matrix for tbl: scaled numeric columns
// followed by the one-hot block, in FeatureNames order.
func (f *FeatureEncoder) Transform(tbl *dataset.Table) (_ *mat.Dense, err error) {
	defer airsiftErrors.Recover(&err, "FeatureEncoder.Transform")
	if !f.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("FeatureEncoder", "Transform")
	}
	if tbl.Len() == 0 {
		return nil, airsiftErrors.NewModelError("FeatureEncoder.Transform", "empty table", airsiftErrors.ErrEmptyData)
	}

	rows := tbl.Len()
	out := mat.NewDense(rows, f.NOutputs(), nil)
	col := 0

	if f.NumericCols > 0 {
		num, err := tbl.NumericMatrix(f.Spec.Numeric)
		if err != nil {
			return nil, err
		}

		var scaled mat.Matrix = num
		switch {
		case f.Standard != nil:
			scaled, err = f.Standard.Transform(num)
		case f.MinMax != nil:
			scaled, err = f.MinMax.Transform(num)
		}
		if err != nil {
			return nil, err
		}

		for i := 0; i < rows; i++ {
			for j := 0; j < f.NumericCols; j++ {
				out.Set(i, j, scaled.At(i, j))
			}
		}
		col = f.NumericCols
	}

	if f.Encoder != nil {
		cats, err := tbl.Categorical(f.Spec.Categorical)
		if err != nil {
			return nil, err
		}
		encoded, err := f.Encoder.Transform(cats)
		if err != nil {
			return nil, err
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < f.Encoder.NOutputs; j++ {
				out.Set(i, col+j, encoded.At(i, j))
			}
		}
	}

	return out, nil
}

// FitTransform fits the encoder on tbl and returns its design matrix.
func (f *FeatureEncoder) FitTransform(tbl *dataset.Table) (*mat.Dense, error) {
	if err := f.Fit(tbl); err != nil {
		return nil, err
	}
	return f.Transform(tbl)
}

// NOutputs returns the design-matrix width.
func (f *FeatureEncoder) NOutputs() int {
	n := f.NumericCols
	if f.Encoder != nil {
		n += f.Encoder.NOutputs
	}
	return n
}

// FeatureNames returns the design-matrix column names: numeric columns
// keep their table names, one-hot columns are "<column>_<category>".
func (f *FeatureEncoder) FeatureNames() []string {
	if !f.State.IsFitted() {
		return nil
	}

	names := make([]string, 0, f.NOutputs())
	names = append(names, f.Spec.Numeric...)
	if f.Encoder != nil {
		names = append(names, f.Encoder.GetFeatureNamesOut(f.Spec.Categorical)...)
	}
	return names
}
