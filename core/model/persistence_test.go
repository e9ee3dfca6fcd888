package model_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/models/linear"
)

func TestSaveLoadModel(t *testing.T) {
	reg := linear.NewLinearRegression()

	X := mat.NewDense(4, 1, []float64{1.0, 2.0, 3.0, 4.0})
	y := mat.NewVecDense(4, []float64{2.0, 4.0, 6.0, 8.0})
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	testX := mat.NewDense(1, 1, []float64{5.0})
	originalPred, err := reg.Predict(testX)
	if err != nil {
		t.Fatalf("Failed to predict with original model: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.gob")
	if err := model.SaveModel(reg, path); err != nil {
		t.Fatalf("Failed to save model: %v", err)
	}

	loadedReg := linear.NewLinearRegression()
	if err := model.LoadModel(loadedReg, path); err != nil {
		t.Fatalf("Failed to load model: %v", err)
	}
	if !loadedReg.IsFitted() {
		t.Error("Loaded model should be fitted")
	}

	loadedPred, err := loadedReg.Predict(testX)
	if err != nil {
		t.Fatalf("Failed to predict with loaded model: %v", err)
	}
	if got, want := loadedPred.At(0, 0), originalPred.At(0, 0); got != want {
		t.Errorf("Predictions do not match: original=%v, loaded=%v", want, got)
	}
}

func TestSaveLoadModelToWriter(t *testing.T) {
	reg := linear.NewLinearRegression()

	X := mat.NewDense(4, 2, []float64{
		1.0, 2.0,
		2.0, 1.0,
		3.0, 4.0,
		4.0, 3.0,
	})
	y := mat.NewVecDense(4, []float64{5.0, 4.0, 11.0, 10.0})
	if err := reg.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(reg, &buf); err != nil {
		t.Fatalf("Failed to save model to writer: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("No bytes written")
	}

	loadedReg := linear.NewLinearRegression()
	if err := model.LoadModelFromReader(loadedReg, &buf); err != nil {
		t.Fatalf("Failed to load model from reader: %v", err)
	}

	if got, want := loadedReg.GetIntercept(), reg.GetIntercept(); got != want {
		t.Errorf("Intercept does not match: original=%v, loaded=%v", want, got)
	}
	origW, loadedW := reg.GetWeights(), loadedReg.GetWeights()
	if len(origW) != len(loadedW) {
		t.Fatalf("Weight count does not match: original=%d, loaded=%d", len(origW), len(loadedW))
	}
	for i := range origW {
		if origW[i] != loadedW[i] {
			t.Errorf("Weight %d does not match: original=%v, loaded=%v", i, origW[i], loadedW[i])
		}
	}
}

func TestLoadModelFileNotFound(t *testing.T) {
	reg := linear.NewLinearRegression()
	err := model.LoadModel(reg, filepath.Join(t.TempDir(), "nonexistent.gob"))
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to open file") {
		t.Errorf("Expected error to contain 'failed to open file', got: %v", err)
	}
}

func TestSaveModelInvalidPath(t *testing.T) {
	reg := linear.NewLinearRegression()
	err := model.SaveModel(reg, "/invalid/path/model.gob")
	if err == nil {
		t.Fatal("Expected error for invalid path, got nil")
	}
	if !strings.Contains(err.Error(), "failed to create file") {
		t.Errorf("Expected error to contain 'failed to create file', got: %v", err)
	}
}
