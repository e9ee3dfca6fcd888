package linear

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// makeBlobsWithNoise appends uniform noise columns carrying no class
// signal to a separable blob dataset.
func makeBlobsWithNoise(centers [][]float64, perClass, noiseFeatures int, seed uint64) (*mat.Dense, *mat.Dense) {
	Xs, y := makeBlobs(centers, perClass, 1.0, seed)
	rng := rand.New(rand.NewPCG(seed+100, seed+100))

	n, d := Xs.Dims()
	X := mat.NewDense(n, d+noiseFeatures, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			X.Set(i, j, Xs.At(i, j))
		}
		for j := 0; j < noiseFeatures; j++ {
			X.Set(i, d+j, 2*rng.Float64()-1)
		}
	}
	return X, y
}

func TestLassoLogisticFit(t *testing.T) {
	X, y := makeBlobs([][]float64{{0, 0}, {5, 0}, {0, 5}}, 40, 1.0, 7)

	l := NewLassoLogistic(WithLassoLambda(1e-3), WithLassoMaxIter(800))
	if err := l.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	score, err := l.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.9 {
		t.Errorf("expected accuracy >= 0.9 on separable blobs, got %f", score)
	}

	proba, err := l.PredictProba(X)
	if err != nil {
		t.Fatalf("PredictProba failed: %v", err)
	}
	rows, cols := proba.Dims()
	if cols != 3 {
		t.Fatalf("expected 3 probability columns, got %d", cols)
	}
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Fatalf("row %d probabilities sum to %f", i, sum)
		}
	}
}

func TestLassoLogisticSparsity(t *testing.T) {
	X, y := makeBlobsWithNoise([][]float64{{0, 0}, {6, 6}}, 60, 4, 8)

	l := NewLassoLogistic(WithLassoLambda(0.05), WithLassoMaxIter(800))
	if err := l.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if l.Sparsity() == 0 {
		t.Error("expected some zero coefficients with L1 penalty")
	}

	// The informative features still separate the classes.
	score, err := l.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score < 0.9 {
		t.Errorf("expected accuracy >= 0.9, got %f", score)
	}

	// Noise columns should carry less weight than informative ones.
	imp, err := l.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	maxNoise := 0.0
	for _, v := range imp[2:] {
		if v > maxNoise {
			maxNoise = v
		}
	}
	if imp[0] <= maxNoise && imp[1] <= maxNoise {
		t.Errorf("informative features should outweigh noise: %v", imp)
	}
}

func TestLassoLogisticStrongPenalty(t *testing.T) {
	X, y := makeBlobs([][]float64{{0, 0}, {2, 2}}, 30, 1.0, 9)

	// A huge lambda drives every coefficient to zero.
	l := NewLassoLogistic(WithLassoLambda(100))
	if err := l.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if got := l.Sparsity(); got != 1.0 {
		t.Errorf("expected all-zero coefficients, sparsity=%f", got)
	}
}

func TestLassoLogisticParams(t *testing.T) {
	l := NewLassoLogistic()

	params := l.GetParams()
	if params["lambda"] != 1e-3 {
		t.Errorf("expected default lambda 1e-3, got %v", params["lambda"])
	}

	if err := l.SetParams(map[string]interface{}{"lambda": 0.01, "max_iter": 250.0}); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	if l.lambda != 0.01 || l.maxIter != 250 {
		t.Errorf("SetParams did not apply: lambda=%v maxIter=%v", l.lambda, l.maxIter)
	}

	if err := l.SetParams(map[string]interface{}{"alpha": 0.1}); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestSoftThreshold(t *testing.T) {
	tests := []struct {
		v, thresh, want float64
	}{
		{3, 1, 2},
		{-3, 1, -2},
		{0.5, 1, 0},
		{-0.5, 1, 0},
		{1, 1, 0},
	}
	for _, tt := range tests {
		if got := softThreshold(tt.v, tt.thresh); got != tt.want {
			t.Errorf("softThreshold(%f, %f) = %f, want %f", tt.v, tt.thresh, got, tt.want)
		}
	}
}
