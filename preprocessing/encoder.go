package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// OneHotEncoder converts categorical string features into 0/1 indicator
// columns. Categories are learned from the training data; a category not
// seen at fit time encodes as an all-zero block at transform time.
type OneHotEncoder struct {
	// State tracks fitted status. Public for gob encoding.
	State *model.StateManager

	// Categories holds the sorted category list per input feature.
	Categories [][]string

	// CategoryToIdx maps category value to column offset per feature.
	CategoryToIdx []map[string]int

	// NFeatures is the number of input string features.
	NFeatures int

	// NOutputs is the total number of indicator columns.
	NOutputs int
}

// NewOneHotEncoder creates an unfitted OneHotEncoder.
//
// Example:
//
//	encoder := preprocessing.NewOneHotEncoder()
//	err := encoder.Fit(weekdays)
//	encoded, err := encoder.Transform(weekdays)
func NewOneHotEncoder() *OneHotEncoder {
	return &OneHotEncoder{State: model.NewStateManager()}
}

// IsFitted reports whether Fit has completed successfully.
func (e *OneHotEncoder) IsFitted() bool {
	return e.State.IsFitted()
}

// Fit collects the distinct categories of every feature from data, which
// is one string row per sample. All rows must have the same width.
func (e *OneHotEncoder) Fit(data [][]string) (err error) {
	defer airsiftErrors.Recover(&err, "OneHotEncoder.Fit")
	if len(data) == 0 {
		return airsiftErrors.NewModelError("OneHotEncoder.Fit", "empty data", airsiftErrors.ErrEmptyData)
	}
	if len(data[0]) == 0 {
		return airsiftErrors.NewModelError("OneHotEncoder.Fit", "empty features", airsiftErrors.ErrEmptyData)
	}

	nSamples := len(data)
	nFeatures := len(data[0])

	for i, row := range data {
		if len(row) != nFeatures {
			return airsiftErrors.NewDimensionError("OneHotEncoder.Fit", nFeatures, len(row), i)
		}
	}

	e.NFeatures = nFeatures
	e.Categories = make([][]string, nFeatures)
	e.CategoryToIdx = make([]map[string]int, nFeatures)

	for j := 0; j < nFeatures; j++ {
		categorySet := make(map[string]bool)
		for i := 0; i < nSamples; i++ {
			categorySet[data[i][j]] = true
		}

		// Sorted order keeps column layout stable across runs.
		categories := make([]string, 0, len(categorySet))
		for category := range categorySet {
			categories = append(categories, category)
		}
		sort.Strings(categories)
		e.Categories[j] = categories

		categoryToIdx := make(map[string]int, len(categories))
		for idx, category := range categories {
			categoryToIdx[category] = idx
		}
		e.CategoryToIdx[j] = categoryToIdx
	}

	e.NOutputs = 0
	for _, categories := range e.Categories {
		e.NOutputs += len(categories)
	}

	e.State.SetFitted()
	e.State.SetDimensions(nFeatures, nSamples)
	return nil
}

// Transform encodes data with the fitted category layout. Unknown
// categories leave their feature's block all zero.
func (e *OneHotEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "OneHotEncoder.Transform")
	if !e.State.IsFitted() {
		return nil, airsiftErrors.NewNotFittedError("OneHotEncoder", "Transform")
	}

	if len(data) == 0 {
		return mat.NewDense(0, e.NOutputs, nil), nil
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures != e.NFeatures {
		return nil, airsiftErrors.NewDimensionError("OneHotEncoder.Transform", e.NFeatures, nFeatures, 1)
	}

	result := mat.NewDense(nSamples, e.NOutputs, nil)
	for i := 0; i < nSamples; i++ {
		outputIdx := 0
		for j := 0; j < nFeatures; j++ {
			if idx, exists := e.CategoryToIdx[j][data[i][j]]; exists {
				result.Set(i, outputIdx+idx, 1.0)
			}
			outputIdx += len(e.Categories[j])
		}
	}
	return result, nil
}

// FitTransform fits the encoder on data and returns the encoded matrix.
func (e *OneHotEncoder) FitTransform(data [][]string) (_ mat.Matrix, err error) {
	defer airsiftErrors.Recover(&err, "OneHotEncoder.FitTransform")
	if err := e.Fit(data); err != nil {
		return nil, err
	}
	return e.Transform(data)
}

// GetFeatureNamesOut returns the output column names as
// "<feature>_<category>". When inputFeatures is nil the features are
// named "x0", "x1", ...
func (e *OneHotEncoder) GetFeatureNamesOut(inputFeatures []string) []string {
	if !e.State.IsFitted() {
		return nil
	}

	var outputFeatures []string
	for i, categories := range e.Categories {
		name := fmt.Sprintf("x%d", i)
		if inputFeatures != nil && i < len(inputFeatures) {
			name = inputFeatures[i]
		}
		for _, category := range categories {
			outputFeatures = append(outputFeatures, fmt.Sprintf("%s_%s", name, category))
		}
	}
	return outputFeatures
}
