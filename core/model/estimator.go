package model

import "gonum.org/v1/gonum/mat"

// Transformer is implemented by preprocessing stages that learn their
// parameters from data and then map matrices to matrices.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
}

// Classifier is the contract every airsift classifier satisfies.
//
// Fit trains on a feature matrix X (n_samples x n_features) and a label
// vector y (n_samples x 1) holding integer class indices as float64.
// Predict returns an (n_samples x 1) matrix of predicted class indices.
// Score returns mean accuracy on the given data.
type Classifier interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	Score(X, y mat.Matrix) (float64, error)
	IsFitted() bool
}

// ProbabilityEstimator is satisfied by classifiers that can emit
// per-class probabilities of shape (n_samples x n_classes), column order
// matching Classes() of the estimator.
type ProbabilityEstimator interface {
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// FeatureImporter is satisfied by estimators that rank input features.
// The returned slice is aligned with the training feature columns and
// sums to 1 when the estimator produces impurity-based importances.
type FeatureImporter interface {
	FeatureImportances() ([]float64, error)
}

// ParamSetter exposes sklearn-style hyperparameter access, used by the
// grid-search layer to stamp candidates onto fresh estimators.
type ParamSetter interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}
