package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

func TestLinearRegressionFit(t *testing.T) {
	// y = 2x + 1, exact fit expected
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{3, 5, 7, 9, 11})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if !lr.IsFitted() {
		t.Error("model should be fitted after Fit")
	}

	weights := lr.GetWeights()
	if len(weights) != 1 {
		t.Fatalf("expected 1 weight, got %d", len(weights))
	}
	if math.Abs(weights[0]-2.0) > 1e-9 {
		t.Errorf("expected weight 2.0, got %f", weights[0])
	}
	if math.Abs(lr.GetIntercept()-1.0) > 1e-9 {
		t.Errorf("expected intercept 1.0, got %f", lr.GetIntercept())
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("expected R² of 1.0, got %f", score)
	}
}

func TestLinearRegressionMultiFeature(t *testing.T) {
	// y = 1*x1 + 2*x2 + 3
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
		2, 1,
		1, 2,
	})
	y := mat.NewDense(6, 1, []float64{3, 4, 5, 6, 7, 8})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	pred, err := lr.Predict(mat.NewDense(1, 2, []float64{3, 3}))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got := pred.At(0, 0); math.Abs(got-12.0) > 1e-8 {
		t.Errorf("expected prediction 12.0, got %f", got)
	}
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	// Predict before Fit
	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var notFitted *airsiftErrors.NotFittedError
	if !airsiftErrors.As(err, &notFitted) {
		t.Errorf("expected NotFittedError, got %v", err)
	}

	// Mismatched rows
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(2, 1, []float64{1, 2})
	if err := lr.Fit(X, y); err == nil {
		t.Error("expected error for mismatched dimensions")
	}

	// Feature count mismatch at predict time
	y3 := mat.NewDense(3, 1, []float64{1, 2, 3})
	if err := lr.Fit(X, y3); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	var dimErr *airsiftErrors.DimensionError
	if !airsiftErrors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}
