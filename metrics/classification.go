package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// Accuracy calculates the classification accuracy.
//
// Accuracy is the fraction of correct predictions.
//
// Parameters:
//   - yTrue: Ground truth labels
//   - yPred: Predicted labels
//
// Returns:
//   - The accuracy (between 0 and 1)
//   - An error if inputs are invalid
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	errorRate, err := ClassificationError(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1.0 - errorRate, nil
}

// AccuracyMatrix is a convenience wrapper for Accuracy that accepts matrix
// inputs, the shape classifiers produce from Predict.
//
// This function extracts the first column from each input matrix and
// calls Accuracy with the resulting vectors.
//
// Parameters:
//   - yTrue: Matrix where the first column contains ground truth labels
//   - yPred: Matrix where the first column contains predicted labels
//
// Returns:
//   - The accuracy (between 0 and 1)
//   - An error if inputs are invalid
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, airsiftErrors.NewValueError(
			"AccuracyMatrix",
			"input matrices cannot be nil",
		)
	}

	r1, _ := yTrue.Dims()
	r2, _ := yPred.Dims()

	if r1 == 0 || r2 == 0 {
		return 0, airsiftErrors.NewValueError(
			"AccuracyMatrix",
			"input matrices cannot be empty",
		)
	}

	yTrueVec := mat.NewVecDense(r1, nil)
	yPredVec := mat.NewVecDense(r2, nil)

	for i := 0; i < r1; i++ {
		yTrueVec.SetVec(i, yTrue.At(i, 0))
	}
	for i := 0; i < r2; i++ {
		yPredVec.SetVec(i, yPred.At(i, 0))
	}

	return Accuracy(yTrueVec, yPredVec)
}

// ClassificationError calculates the classification error rate.
//
// The error rate is the fraction of incorrect predictions.
//
// Parameters:
//   - yTrue: Ground truth labels (integers)
//   - yPred: Predicted labels (integers)
//
// Returns:
//   - The error rate (between 0 and 1)
//   - An error if inputs are invalid
//
// Example:
//
//	yTrue := mat.NewVecDense(5, []float64{0, 1, 2, 1, 0})
//	yPred := mat.NewVecDense(5, []float64{0, 1, 1, 1, 0})
//	errorRate, err := ClassificationError(yTrue, yPred)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Error Rate: %f\n", errorRate) // Output: Error Rate: 0.2
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	// Input validation
	if yTrue == nil || yPred == nil {
		return 0, airsiftErrors.NewValueError(
			"ClassificationError",
			"input vectors cannot be nil",
		)
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, airsiftErrors.NewValueError(
			"ClassificationError",
			"input vectors cannot be empty",
		)
	}

	if n != yPred.Len() {
		return 0, airsiftErrors.NewDimensionError(
			"ClassificationError",
			n,
			yPred.Len(),
			0,
		)
	}

	// Count misclassifications
	errors := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) != yPred.AtVec(i) {
			errors++
		}
	}

	return float64(errors) / float64(n), nil
}

// LogLoss calculates the multiclass cross-entropy loss.
//
// Log loss measures the quality of predicted class probabilities: it is
// the negative mean log-probability assigned to the true class. Lower
// values indicate better calibrated predictions; a model that is always
// certain and always right scores 0.
//
// Parameters:
//   - yTrue: Ground truth class indices (integer-valued)
//   - proba: Predicted probabilities, one row per sample and one column
//     per class, rows summing to 1
//
// Returns:
//   - The average log loss
//   - An error if inputs are invalid
//
// Example:
//
//	yTrue := mat.NewVecDense(2, []float64{0, 1})
//	proba := mat.NewDense(2, 2, []float64{0.9, 0.1, 0.2, 0.8})
//	loss, err := LogLoss(yTrue, proba)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Log Loss: %f\n", loss)
func LogLoss(yTrue *mat.VecDense, proba mat.Matrix) (float64, error) {
	// Input validation
	if yTrue == nil || proba == nil {
		return 0, airsiftErrors.NewValueError(
			"LogLoss",
			"inputs cannot be nil",
		)
	}

	n := yTrue.Len()
	if n == 0 {
		return 0, airsiftErrors.NewValueError(
			"LogLoss",
			"input vectors cannot be empty",
		)
	}

	rows, classes := proba.Dims()
	if rows != n {
		return 0, airsiftErrors.NewDimensionError("LogLoss", n, rows, 0)
	}
	if classes == 0 {
		return 0, airsiftErrors.NewValueError("LogLoss", "probability matrix has no columns")
	}

	const epsilon = 1e-15 // Small value to avoid log(0)
	loss := 0.0

	for i := 0; i < n; i++ {
		y := yTrue.AtVec(i)
		class := int(y)
		if y != float64(class) || class < 0 || class >= classes {
			return 0, airsiftErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("must contain class indices in [0, %d), found %f at index %d", classes, y, i),
				y,
			)
		}

		p := proba.At(i, class)

		// Clip prediction to avoid log(0)
		if p < epsilon {
			p = epsilon
		} else if p > 1-epsilon {
			p = 1 - epsilon
		}

		loss -= logSafe(p)
	}

	return loss / float64(n), nil
}

// logSafe computes natural logarithm with safety checks
func logSafe(x float64) float64 {
	if x <= 0 {
		return -1e10 // Return a large negative number instead of -Inf
	}
	return math.Log(x)
}
