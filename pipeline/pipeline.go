// Package pipeline couples a fitted feature encoder with a classifier so
// that the exact training-time preprocessing is replayed at prediction
// time. A saved pipeline restores both halves together.
package pipeline

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
	"github.com/airsift/airsift/preprocessing"
)

// Pipeline chains a FeatureEncoder and a classifier behind one Fit and
// Predict surface operating on tables instead of matrices.
type Pipeline struct {
	State *model.StateManager // Public for gob encoding

	Encoder *preprocessing.FeatureEncoder
	Model   model.Classifier

	logger log.Logger
}

// NewPipeline wraps an encoder and a classifier. Neither needs to be
// fitted yet.
func NewPipeline(encoder *preprocessing.FeatureEncoder, clf model.Classifier) *Pipeline {
	return &Pipeline{
		State:   model.NewStateManager(),
		Encoder: encoder,
		Model:   clf,
		logger: log.GetLoggerWithName("pipeline").With(
			log.ComponentKey, "pipeline",
		),
	}
}

// Fit fits the encoder on tbl, transforms it, and trains the classifier
// against the integer labels.
func (p *Pipeline) Fit(tbl *dataset.Table, labels []int) (err error) {
	defer errors.Recover(&err, "Pipeline.Fit")

	if p.Encoder == nil || p.Model == nil {
		return errors.NewValueError("Pipeline.Fit", "pipeline needs both an encoder and a model")
	}
	if tbl.Len() != len(labels) {
		return errors.NewDimensionError("Pipeline.Fit", tbl.Len(), len(labels), 0)
	}

	start := time.Now()
	X, err := p.Encoder.FitTransform(tbl)
	if err != nil {
		return errors.Wrap(err, "pipeline feature encoding failed")
	}
	y := dataset.LabelsToMatrix(labels)
	if err := p.Model.Fit(X, y); err != nil {
		return errors.Wrap(err, "pipeline model fit failed")
	}

	n, d := X.Dims()
	p.State.SetFitted()
	p.State.SetDimensions(d, n)

	if p.logger != nil {
		p.logger.Info("Pipeline fitted",
			log.OperationKey, log.OperationFit,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// transform replays the fitted encoding on a new table.
func (p *Pipeline) transform(tbl *dataset.Table) (*mat.Dense, error) {
	if !p.State.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	X, err := p.Encoder.Transform(tbl)
	if err != nil {
		return nil, errors.Wrap(err, "pipeline feature encoding failed")
	}
	return X, nil
}

// Predict returns one predicted label per table row.
func (p *Pipeline) Predict(tbl *dataset.Table) (_ []int, err error) {
	defer errors.Recover(&err, "Pipeline.Predict")

	X, err := p.transform(tbl)
	if err != nil {
		return nil, err
	}
	pred, err := p.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	return dataset.MatrixToLabels(pred)
}

// PredictProba returns per-class probabilities when the wrapped model
// provides them.
func (p *Pipeline) PredictProba(tbl *dataset.Table) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "Pipeline.PredictProba")

	prob, ok := p.Model.(model.ProbabilityEstimator)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotImplemented, "model %T does not provide probabilities", p.Model)
	}
	X, err := p.transform(tbl)
	if err != nil {
		return nil, err
	}
	return prob.PredictProba(X)
}

// Score returns mean accuracy against the given labels.
func (p *Pipeline) Score(tbl *dataset.Table, labels []int) (_ float64, err error) {
	defer errors.Recover(&err, "Pipeline.Score")

	if tbl.Len() != len(labels) {
		return 0, errors.NewDimensionError("Pipeline.Score", tbl.Len(), len(labels), 0)
	}
	pred, err := p.Predict(tbl)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, label := range labels {
		if pred[i] == label {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// FeatureNames returns the design-matrix column names from the encoder.
func (p *Pipeline) FeatureNames() []string {
	if p.Encoder == nil {
		return nil
	}
	return p.Encoder.FeatureNames()
}

// FeatureImportances returns the model's per-feature weights, aligned
// with FeatureNames, when the model exposes them.
func (p *Pipeline) FeatureImportances() ([]float64, error) {
	imp, ok := p.Model.(model.FeatureImporter)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotImplemented, "model %T does not expose feature importances", p.Model)
	}
	return imp.FeatureImportances()
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool {
	return p.State.IsFitted()
}

// Save writes the fitted pipeline to path with gob.
func (p *Pipeline) Save(path string) (err error) {
	defer errors.Recover(&err, "Pipeline.Save")

	if !p.State.IsFitted() {
		return errors.NewNotFittedError("Pipeline", "Save")
	}
	if err := model.SaveModel(p, path); err != nil {
		return errors.Wrap(err, "saving pipeline failed")
	}
	if p.logger != nil {
		p.logger.Info("Pipeline saved", log.PathKey, path)
	}
	return nil
}

// LoadPipeline restores a pipeline written by Save.
func LoadPipeline(path string) (_ *Pipeline, err error) {
	defer errors.Recover(&err, "LoadPipeline")

	p := &Pipeline{}
	if err := model.LoadModel(p, path); err != nil {
		return nil, errors.Wrap(err, "loading pipeline failed")
	}
	p.logger = log.GetLoggerWithName("pipeline").With(
		log.ComponentKey, "pipeline",
	)
	return p, nil
}
