package selection

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/pkg/errors"
)

// CVResult summarizes one cross-validation run.
type CVResult struct {
	Scores []float64
	Mean   float64
	Std    float64
}

// CrossValidate fits a fresh model from factory on each fold's training
// rows and scores it on the fold's validation rows.
func CrossValidate(factory func() (model.Classifier, error), X mat.Matrix, labels []int, folds []Fold) (CVResult, error) {
	if len(folds) == 0 {
		return CVResult{}, errors.NewValueError("CrossValidate", "no folds given")
	}
	n, _ := X.Dims()
	if n != len(labels) {
		return CVResult{}, errors.NewDimensionError("CrossValidate", n, len(labels), 0)
	}

	scores := make([]float64, len(folds))
	for f, fold := range folds {
		clf, err := factory()
		if err != nil {
			return CVResult{}, err
		}
		score, err := fitAndScore(clf, X, labels, fold)
		if err != nil {
			return CVResult{}, errors.Wrapf(err, "fold %d", f)
		}
		scores[f] = score
	}
	return summarize(scores), nil
}

// fitAndScore trains clf on the fold's training rows and returns its
// accuracy on the validation rows.
func fitAndScore(clf model.Classifier, X mat.Matrix, labels []int, fold Fold) (float64, error) {
	XTrain, err := dataset.TakeRows(X, fold.Train)
	if err != nil {
		return 0, err
	}
	XVal, err := dataset.TakeRows(X, fold.Val)
	if err != nil {
		return 0, err
	}
	trainLabels, err := dataset.TakeLabels(labels, fold.Train)
	if err != nil {
		return 0, err
	}
	valLabels, err := dataset.TakeLabels(labels, fold.Val)
	if err != nil {
		return 0, err
	}
	yTrain := dataset.LabelsToMatrix(trainLabels)
	yVal := dataset.LabelsToMatrix(valLabels)

	if err := clf.Fit(XTrain, yTrain); err != nil {
		return 0, err
	}
	return clf.Score(XVal, yVal)
}

func summarize(scores []float64) CVResult {
	return CVResult{
		Scores: scores,
		Mean:   stat.Mean(scores, nil),
		Std:    stat.PopStdDev(scores, nil),
	}
}
