package svm

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// makeBlobs builds well-separated Gaussian clusters, one per center.
func makeBlobs(centers [][]float64, perClass int, spread float64, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	n := len(centers) * perClass
	d := len(centers[0])
	X := mat.NewDense(n, d, nil)
	y := mat.NewDense(n, 1, nil)
	row := 0
	for class, center := range centers {
		for i := 0; i < perClass; i++ {
			for j := 0; j < d; j++ {
				X.Set(row, j, center[j]+rng.NormFloat64()*spread)
			}
			y.Set(row, 0, float64(class))
			row++
		}
	}
	return X, y
}

func TestLinearSVCBinary(t *testing.T) {
	X, y := makeBlobs([][]float64{{-2, -2}, {2, 2}}, 40, 0.5, 7)

	clf := NewLinearSVC(WithSVCMaxIter(200), WithSVCRandomState(42))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if !clf.IsFitted() {
		t.Error("IsFitted() = false after Fit")
	}

	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc < 0.95 {
		t.Errorf("accuracy = %v, want >= 0.95", acc)
	}

	classes := clf.Classes()
	if len(classes) != 2 || classes[0] != 0 || classes[1] != 1 {
		t.Errorf("Classes() = %v, want [0 1]", classes)
	}
	if len(clf.LossCurve) == 0 {
		t.Error("LossCurve is empty after Fit")
	}
}

func TestLinearSVCMulticlass(t *testing.T) {
	X, y := makeBlobs([][]float64{{-3, 0}, {3, 0}, {0, 4}}, 40, 0.5, 11)

	clf := NewLinearSVC(WithSVCMaxIter(300), WithSVCRandomState(42))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc < 0.9 {
		t.Errorf("accuracy = %v, want >= 0.9", acc)
	}
	if len(clf.Coefs) != 3 {
		t.Errorf("len(Coefs) = %d, want 3", len(clf.Coefs))
	}
}

func TestLinearSVCSquaredHinge(t *testing.T) {
	X, y := makeBlobs([][]float64{{-2, -2}, {2, 2}}, 40, 0.5, 13)

	clf := NewLinearSVC(
		WithSVCLoss("squared_hinge"),
		WithSVCMaxIter(200),
		WithSVCRandomState(1),
	)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc < 0.95 {
		t.Errorf("squared_hinge accuracy = %v, want >= 0.95", acc)
	}
}

func TestLinearSVCAveraged(t *testing.T) {
	X, y := makeBlobs([][]float64{{-2, 0}, {2, 0}}, 40, 0.6, 17)

	clf := NewLinearSVC(
		WithSVCAveraged(true),
		WithSVCMaxIter(200),
		WithSVCRandomState(5),
	)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	acc, err := clf.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if acc < 0.9 {
		t.Errorf("averaged accuracy = %v, want >= 0.9", acc)
	}
}

func TestLinearSVCDecisionFunction(t *testing.T) {
	X, y := makeBlobs([][]float64{{-3, 0}, {3, 0}, {0, 4}}, 30, 0.5, 19)

	clf := NewLinearSVC(WithSVCMaxIter(200), WithSVCRandomState(3))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	scores, err := clf.DecisionFunction(X)
	if err != nil {
		t.Fatalf("DecisionFunction failed: %v", err)
	}
	n, k := scores.Dims()
	if n != 90 || k != 3 {
		t.Fatalf("scores dims = (%d, %d), want (90, 3)", n, k)
	}

	pred, err := clf.Predict(X)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	for i := 0; i < n; i++ {
		best := 0
		for ci := 1; ci < k; ci++ {
			if scores.At(i, ci) > scores.At(i, best) {
				best = ci
			}
		}
		if int(pred.At(i, 0)) != best {
			t.Fatalf("row %d: Predict = %v, argmax margin = %d", i, pred.At(i, 0), best)
		}
	}
}

func TestLinearSVCDeterminism(t *testing.T) {
	X, y := makeBlobs([][]float64{{-2, -2}, {2, 2}, {0, 4}}, 30, 0.6, 23)

	fit := func() []float64 {
		clf := NewLinearSVC(WithSVCMaxIter(100), WithSVCRandomState(9))
		if err := clf.Fit(X, y); err != nil {
			t.Fatalf("Fit failed: %v", err)
		}
		pred, err := clf.Predict(X)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		n, _ := pred.Dims()
		out := make([]float64, n)
		for i := 0; i < n; i++ {
			out[i] = pred.At(i, 0)
		}
		return out
	}

	a, b := fit(), fit()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("row %d: predictions differ across runs with same seed (%v vs %v)", i, a[i], b[i])
		}
	}
}

func TestLinearSVCFeatureImportances(t *testing.T) {
	// Only the first feature separates the classes.
	rng := rand.New(rand.NewPCG(29, 29))
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		class := i % 2
		X.Set(i, 0, float64(class*6-3)+rng.NormFloat64()*0.4)
		X.Set(i, 1, rng.NormFloat64())
		y.Set(i, 0, float64(class))
	}

	clf := NewLinearSVC(WithSVCMaxIter(200), WithSVCRandomState(2))
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	imp, err := clf.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances failed: %v", err)
	}
	if len(imp) != 2 {
		t.Fatalf("len(importances) = %d, want 2", len(imp))
	}
	if imp[0] <= imp[1] {
		t.Errorf("informative feature importance %v not above noise %v", imp[0], imp[1])
	}
}

func TestLinearSVCValidation(t *testing.T) {
	X, y := makeBlobs([][]float64{{-2, 0}, {2, 0}}, 10, 0.5, 31)

	cases := []struct {
		name string
		clf  *LinearSVC
	}{
		{"bad loss", NewLinearSVC(WithSVCLoss("log_loss"))},
		{"bad schedule", NewLinearSVC(WithSVCLearningRate("adaptive"))},
		{"bad alpha", NewLinearSVC(WithSVCAlpha(-1))},
	}
	for _, tc := range cases {
		if err := tc.clf.Fit(X, y); err == nil {
			t.Errorf("%s: Fit succeeded, want error", tc.name)
		}
	}

	single := NewLinearSVC()
	ySame := mat.NewDense(20, 1, nil)
	if err := single.Fit(X, ySame); err == nil {
		t.Error("Fit with a single class succeeded, want error")
	}
}

func TestLinearSVCNotFitted(t *testing.T) {
	clf := NewLinearSVC()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := clf.Predict(X)
	if err == nil {
		t.Fatal("Predict on unfitted model succeeded")
	}
	var nfe *airsiftErrors.NotFittedError
	if !airsiftErrors.As(err, &nfe) {
		t.Fatalf("error type = %T, want *NotFittedError", err)
	}
	if nfe.ModelName != "LinearSVC" {
		t.Errorf("ModelName = %q, want LinearSVC", nfe.ModelName)
	}

	if _, err := clf.FeatureImportances(); err == nil {
		t.Error("FeatureImportances on unfitted model succeeded")
	}
}

func TestLinearSVCParams(t *testing.T) {
	clf := NewLinearSVC()
	params := clf.GetParams()
	if params["loss"] != "hinge" {
		t.Errorf(`params["loss"] = %v, want hinge`, params["loss"])
	}
	if math.Abs(params["alpha"].(float64)-1e-4) > 1e-12 {
		t.Errorf(`params["alpha"] = %v, want 1e-4`, params["alpha"])
	}

	// Integers arrive as float64 after a JSON round trip.
	err := clf.SetParams(map[string]interface{}{
		"alpha":    0.001,
		"max_iter": 500.0,
		"loss":     "squared_hinge",
	})
	if err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	params = clf.GetParams()
	if params["max_iter"] != 500 {
		t.Errorf(`params["max_iter"] = %v, want 500`, params["max_iter"])
	}
	if params["loss"] != "squared_hinge" {
		t.Errorf(`params["loss"] = %v, want squared_hinge`, params["loss"])
	}

	if err := clf.SetParams(map[string]interface{}{"C": 1.0}); err == nil {
		t.Error("SetParams with unknown key succeeded, want error")
	}
	if err := clf.SetParams(map[string]interface{}{"max_iter": 10.5}); err == nil {
		t.Error("SetParams with fractional max_iter succeeded, want error")
	}
}
