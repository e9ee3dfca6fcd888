// Package linear provides the linear estimators used in the AQI study:
//
//   - LinearRegression: ordinary least squares, used for trend lines in
//     the exploratory plots
//   - LogisticRegression: L2-regularized multinomial or one-vs-rest
//     classification fitted with L-BFGS
//   - LassoLogistic: L1-regularized multinomial classification fitted
//     with proximal gradient descent, yielding sparse coefficients
//
// All classifiers operate on gonum matrices, satisfy the estimator
// interfaces in core/model, and persist with encoding/gob.
package linear
