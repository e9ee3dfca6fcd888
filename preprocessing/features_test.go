package preprocessing_test

import (
	"math"
	"testing"

	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/preprocessing"
)

// trainTable builds two rows with easy statistics: hour mean=5 std=5,
// lat mean=35 std=5, lon mean=-95 std=5.
func trainTable() *dataset.Table {
	return &dataset.Table{
		PM25:    []float64{10.0, 20.0},
		Lat:     []float64{30.0, 40.0},
		Lon:     []float64{-100.0, -90.0},
		Hour:    []int{0, 10},
		Weekday: []string{"Monday", "Tuesday"},
	}
}

func TestFeatureEncoder_DefaultSpec(t *testing.T) {
	tbl := trainTable()

	encoder := preprocessing.NewFeatureEncoder(preprocessing.DefaultFeatureSpec())
	X, err := encoder.FitTransform(tbl)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if !encoder.IsFitted() {
		t.Error("Encoder should be fitted after FitTransform")
	}

	r, c := X.Dims()
	if r != 2 || c != 5 {
		t.Fatalf("Expected 2x5 design matrix, got %dx%d", r, c)
	}

	// Standardized numerics, then one-hot weekday in sorted order
	expected := [][]float64{
		{-1, -1, -1, 1, 0}, // hour=0 lat=30 lon=-100 Monday
		{1, 1, 1, 0, 1},    // hour=10 lat=40 lon=-90 Tuesday
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(X.At(i, j)-expected[i][j]) > epsilon {
				t.Errorf("X[%d][%d]: expected %f, got %f", i, j, expected[i][j], X.At(i, j))
			}
		}
	}
}

func TestFeatureEncoder_FeatureNames(t *testing.T) {
	encoder := preprocessing.NewFeatureEncoder(preprocessing.DefaultFeatureSpec())

	// Unfitted encoder has no names yet
	if names := encoder.FeatureNames(); names != nil {
		t.Errorf("Expected nil names before Fit, got %v", names)
	}

	if err := encoder.Fit(trainTable()); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	names := encoder.FeatureNames()
	expected := []string{"hour", "lat", "lon", "weekday_Monday", "weekday_Tuesday"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %d names, got %d: %v", len(expected), len(names), names)
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("Name[%d]: expected %s, got %s", i, want, names[i])
		}
	}

	if encoder.NOutputs() != len(expected) {
		t.Errorf("NOutputs: expected %d, got %d", len(expected), encoder.NOutputs())
	}
}

func TestFeatureEncoder_TrainStatisticsApply(t *testing.T) {
	encoder := preprocessing.NewFeatureEncoder(preprocessing.DefaultFeatureSpec())
	if err := encoder.Fit(trainTable()); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	// Unseen rows are scaled with training statistics and an unknown
	// weekday encodes as all zeros.
	test := &dataset.Table{
		PM25:    []float64{5.0},
		Lat:     []float64{35.0},
		Lon:     []float64{-95.0},
		Hour:    []int{5},
		Weekday: []string{"Wednesday"},
	}

	X, err := encoder.Transform(test)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	r, c := X.Dims()
	if r != 1 || c != 5 {
		t.Fatalf("Expected 1x5 matrix, got %dx%d", r, c)
	}

	for j := 0; j < c; j++ {
		if math.Abs(X.At(0, j)) > epsilon {
			t.Errorf("X[0][%d]: expected 0, got %f", j, X.At(0, j))
		}
	}
}

func TestFeatureEncoder_MinMaxScaling(t *testing.T) {
	spec := preprocessing.DefaultFeatureSpec()
	spec.Scaling = preprocessing.ScalingMinMax

	encoder := preprocessing.NewFeatureEncoder(spec)
	X, err := encoder.FitTransform(trainTable())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	expected := [][]float64{
		{0, 0, 0, 1, 0},
		{1, 1, 1, 0, 1},
	}
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(X.At(i, j)-expected[i][j]) > epsilon {
				t.Errorf("X[%d][%d]: expected %f, got %f", i, j, expected[i][j], X.At(i, j))
			}
		}
	}
}

func TestFeatureEncoder_NoScaling(t *testing.T) {
	spec := preprocessing.DefaultFeatureSpec()
	spec.Scaling = preprocessing.ScalingNone

	encoder := preprocessing.NewFeatureEncoder(spec)
	X, err := encoder.FitTransform(trainTable())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	expected := [][]float64{
		{0, 30, -100, 1, 0},
		{10, 40, -90, 0, 1},
	}
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(X.At(i, j)-expected[i][j]) > epsilon {
				t.Errorf("X[%d][%d]: expected %f, got %f", i, j, expected[i][j], X.At(i, j))
			}
		}
	}
}

func TestFeatureEncoder_NumericOnly(t *testing.T) {
	spec := preprocessing.FeatureSpec{
		Numeric: []string{dataset.ColHour},
		Scaling: preprocessing.ScalingNone,
	}

	encoder := preprocessing.NewFeatureEncoder(spec)
	X, err := encoder.FitTransform(trainTable())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := X.Dims()
	if r != 2 || c != 1 {
		t.Fatalf("Expected 2x1 matrix, got %dx%d", r, c)
	}
	if X.At(0, 0) != 0 || X.At(1, 0) != 10 {
		t.Errorf("Expected hours [0 10], got [%f %f]", X.At(0, 0), X.At(1, 0))
	}
}

func TestFeatureEncoder_CategoricalOnly(t *testing.T) {
	spec := preprocessing.FeatureSpec{
		Categorical: []string{dataset.ColWeekday},
	}

	encoder := preprocessing.NewFeatureEncoder(spec)
	X, err := encoder.FitTransform(trainTable())
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	r, c := X.Dims()
	if r != 2 || c != 2 {
		t.Fatalf("Expected 2x2 matrix, got %dx%d", r, c)
	}

	names := encoder.FeatureNames()
	expected := []string{"weekday_Monday", "weekday_Tuesday"}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("Name[%d]: expected %s, got %s", i, want, names[i])
		}
	}
}

func TestFeatureEncoder_ErrorCases(t *testing.T) {
	t.Run("empty spec", func(t *testing.T) {
		encoder := preprocessing.NewFeatureEncoder(preprocessing.FeatureSpec{})
		if err := encoder.Fit(trainTable()); err == nil {
			t.Error("Expected error for spec with no columns, got nil")
		}
	})

	t.Run("unfitted transform", func(t *testing.T) {
		encoder := preprocessing.NewFeatureEncoder(preprocessing.DefaultFeatureSpec())
		if _, err := encoder.Transform(trainTable()); err == nil {
			t.Error("Expected error for unfitted encoder, got nil")
		}
	})

	t.Run("unknown scaling", func(t *testing.T) {
		spec := preprocessing.DefaultFeatureSpec()
		spec.Scaling = preprocessing.Scaling("robust")
		encoder := preprocessing.NewFeatureEncoder(spec)
		if err := encoder.Fit(trainTable()); err == nil {
			t.Error("Expected error for unknown scaling, got nil")
		}
	})

	t.Run("empty table", func(t *testing.T) {
		encoder := preprocessing.NewFeatureEncoder(preprocessing.DefaultFeatureSpec())
		if err := encoder.Fit(&dataset.Table{}); err == nil {
			t.Error("Expected error for empty table, got nil")
		}
	})

	t.Run("unknown numeric column", func(t *testing.T) {
		spec := preprocessing.FeatureSpec{Numeric: []string{"altitude"}}
		encoder := preprocessing.NewFeatureEncoder(spec)
		if err := encoder.Fit(trainTable()); err == nil {
			t.Error("Expected error for unknown column, got nil")
		}
	})
}
