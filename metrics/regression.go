// Package metrics provides the evaluation metrics used to compare the
// study's classifiers and to score its exploratory trend fits.
//
// Classification metrics:
//   - Accuracy / ClassificationError: fraction of correct and incorrect labels
//   - ConfusionMatrix: multiclass tally with per-class precision, recall, F1
//   - ClassificationReport: aligned text summary with macro averages
//   - LogLoss: multiclass cross-entropy over predicted probabilities
//
// Regression metrics (used for the daily-mean trend line):
//   - MSE / RMSE: squared-error measures of fit
//   - MAE: robust absolute-error measure
//   - R²: coefficient of determination
//
// All metrics support vector inputs using gonum/mat; matrix wrappers are
// provided where callers hold column matrices.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// MSE calculates the Mean Squared Error between true and predicted values.
//
// Parameters:
//   - yTrue: True target values as a vector
//   - yPred: Predicted values as a vector
//
// Returns:
//   - The MSE value (non-negative)
//   - An error if the vectors are empty or have different lengths
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, airsiftErrors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, airsiftErrors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Dot(&diff, &diff) / float64(n), nil
}

// MSEMatrix is a convenience wrapper for MSE that accepts column matrices,
// the shape regressors produce from Predict.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return 0, airsiftErrors.NewValueError("MSEMatrix", "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return 0, airsiftErrors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return 0, airsiftErrors.NewValueError("MSEMatrix", "must be a column vector (n×1 matrix)")
	}

	yTrueVec := mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue))
	yPredVec := mat.NewVecDense(rPred, mat.Col(nil, 0, yPred))
	return MSE(yTrueVec, yPredVec)
}

// RMSE calculates the Root Mean Squared Error, the square root of MSE.
// RMSE is in the same units as the target, which makes it the easier of
// the two to read against raw concentrations.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the Mean Absolute Error between true and predicted values.
// Compared to MSE it weights every residual linearly, so single outlier
// days move it less.
//
// Parameters:
//   - yTrue: True target values as a vector
//   - yPred: Predicted values as a vector
//
// Returns:
//   - The MAE value (non-negative)
//   - An error if the vectors are empty or have different lengths
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, airsiftErrors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, airsiftErrors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	var diff mat.VecDense
	diff.SubVec(yTrue, yPred)
	return mat.Norm(&diff, 1) / float64(n), nil
}

// R2Score calculates the coefficient of determination (R²).
//
// R² is the proportion of variance in yTrue explained by the predictions:
// 1 means a perfect fit, 0 means no better than predicting the mean, and
// negative values mean worse than the mean.
//
// Parameters:
//   - yTrue: True target values as a vector
//   - yPred: Predicted values as a vector
//
// Returns:
//   - The R² score (at most 1, may be negative)
//   - An error if the vectors are empty, have different lengths, or yTrue
//     has zero variance (R² is undefined for a constant target)
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, airsiftErrors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, airsiftErrors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	var resid mat.VecDense
	resid.SubVec(yTrue, yPred)
	rss := mat.Dot(&resid, &resid)

	mean := mat.Sum(yTrue) / float64(n)
	var tss float64
	for i := 0; i < n; i++ {
		dev := yTrue.AtVec(i) - mean
		tss += dev * dev
	}
	if tss == 0 {
		return 0, airsiftErrors.NewValueError("R2Score", "zero variance in yTrue")
	}

	return 1 - rss/tss, nil
}
