package linear

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// LassoLogistic is an L1-regularized multinomial logistic classifier
// fitted with proximal gradient descent (ISTA). The L1 penalty drives
// coefficients of uninformative features to exactly zero, so the fitted
// model doubles as a feature selector.
type LassoLogistic struct {
	State *model.StateManager // Public for gob encoding

	Coefs       [][]float64 // one row per class
	Intercepts  []float64
	ClassLabels []int
	NFeatures   int
	NumIter     int
	Converged   bool

	// Hyperparameters.
	lambda       float64 // L1 strength
	maxIter      int
	tol          float64
	fitIntercept bool

	logger log.Logger
}

// LassoLogisticOption configures a LassoLogistic.
type LassoLogisticOption func(*LassoLogistic)

// WithLassoLambda sets the L1 penalty strength (default 1e-3).
func WithLassoLambda(lambda float64) LassoLogisticOption {
	return func(l *LassoLogistic) { l.lambda = lambda }
}

// WithLassoMaxIter sets the proximal-gradient iteration cap (default 500).
func WithLassoMaxIter(maxIter int) LassoLogisticOption {
	return func(l *LassoLogistic) { l.maxIter = maxIter }
}

// WithLassoTol sets the coefficient-change convergence tolerance
// (default 1e-5).
func WithLassoTol(tol float64) LassoLogisticOption {
	return func(l *LassoLogistic) { l.tol = tol }
}

// WithLassoFitIntercept controls whether intercepts are fitted
// (default true). Intercepts are never penalized.
func WithLassoFitIntercept(fit bool) LassoLogisticOption {
	return func(l *LassoLogistic) { l.fitIntercept = fit }
}

// NewLassoLogistic returns an untrained L1 logistic classifier.
func NewLassoLogistic(opts ...LassoLogisticOption) *LassoLogistic {
	l := &LassoLogistic{
		State:        model.NewStateManager(),
		lambda:       1e-3,
		maxIter:      500,
		tol:          1e-5,
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "LassoLogistic",
		log.ComponentKey, "linear",
	)
	return l
}

// Fit trains the classifier with ISTA: a gradient step on the smooth
// softmax loss followed by soft-thresholding of the weights. The step
// size is found by backtracking, halving until the step no longer
// increases the smooth loss.
func (l *LassoLogistic) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LassoLogistic.Fit")

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("LassoLogistic.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("LassoLogistic.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LassoLogistic.Fit", "y must be a column vector")
	}
	if l.lambda < 0 {
		return errors.NewValueError("LassoLogistic.Fit", "lambda must be non-negative")
	}

	l.ClassLabels = extractClasses(y)
	k := len(l.ClassLabels)
	if k < 2 {
		return errors.NewValueError("LassoLogistic.Fit", "need at least two classes")
	}
	l.NFeatures = d

	classIdx := make(map[int]int, k)
	for ci, class := range l.ClassLabels {
		classIdx[class] = ci
	}
	yIdx := make([]int, n)
	for i := 0; i < n; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	xD := mat.DenseCopyOf(X)

	W := make([][]float64, k)
	for ci := range W {
		W[ci] = make([]float64, d)
	}
	b := make([]float64, k)

	gradW := make([][]float64, k)
	for ci := range gradW {
		gradW[ci] = make([]float64, d)
	}
	gradB := make([]float64, k)

	candW := make([][]float64, k)
	for ci := range candW {
		candW[ci] = make([]float64, d)
	}
	candB := make([]float64, k)

	eta := 1.0
	loss := l.smoothLoss(xD, yIdx, W, b)
	l.Converged = false

	for iter := 0; iter < l.maxIter; iter++ {
		l.smoothGrad(xD, yIdx, W, b, gradW, gradB)

		// Backtrack until the proximal step decreases the smooth loss.
		var candLoss float64
		accepted := false
		for bt := 0; bt < 30; bt++ {
			thresh := eta * l.lambda
			for ci := 0; ci < k; ci++ {
				for j := 0; j < d; j++ {
					candW[ci][j] = softThreshold(W[ci][j]-eta*gradW[ci][j], thresh)
				}
				if l.fitIntercept {
					candB[ci] = b[ci] - eta*gradB[ci]
				}
			}
			candLoss = l.smoothLoss(xD, yIdx, candW, candB)
			if candLoss <= loss+1e-12 {
				accepted = true
				break
			}
			eta *= 0.5
		}
		if !accepted {
			break
		}

		maxDelta := 0.0
		for ci := 0; ci < k; ci++ {
			for j := 0; j < d; j++ {
				if delta := math.Abs(candW[ci][j] - W[ci][j]); delta > maxDelta {
					maxDelta = delta
				}
				W[ci][j] = candW[ci][j]
			}
			b[ci] = candB[ci]
		}
		loss = candLoss
		l.NumIter = iter + 1

		if maxDelta < l.tol {
			l.Converged = true
			break
		}
	}

	if !l.Converged {
		errors.Warn(errors.NewConvergenceWarning("LassoLogistic", l.maxIter,
			"proximal gradient did not converge; consider increasing max_iter or lambda"))
	}

	l.Coefs = W
	l.Intercepts = b
	l.State.SetFitted()
	l.State.SetDimensions(d, n)

	if l.logger != nil {
		l.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, k,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// smoothLoss is the mean softmax negative log-likelihood, excluding the
// L1 term handled by the proximal step.
func (l *LassoLogistic) smoothLoss(xD *mat.Dense, yIdx []int, W [][]float64, b []float64) float64 {
	n, d := xD.Dims()
	k := len(W)
	z := make([]float64, k)
	loss := 0.0
	for i := 0; i < n; i++ {
		for ci := 0; ci < k; ci++ {
			s := b[ci]
			for j := 0; j < d; j++ {
				s += W[ci][j] * xD.At(i, j)
			}
			z[ci] = s
		}
		zMax := z[0]
		for _, v := range z[1:] {
			if v > zMax {
				zMax = v
			}
		}
		sum := 0.0
		for _, v := range z {
			sum += math.Exp(v - zMax)
		}
		loss += math.Log(sum) + zMax - z[yIdx[i]]
	}
	return loss / float64(n)
}

// smoothGrad fills gradW and gradB with the gradient of smoothLoss.
func (l *LassoLogistic) smoothGrad(xD *mat.Dense, yIdx []int, W [][]float64, b []float64, gradW [][]float64, gradB []float64) {
	n, d := xD.Dims()
	k := len(W)

	for ci := 0; ci < k; ci++ {
		for j := 0; j < d; j++ {
			gradW[ci][j] = 0
		}
		gradB[ci] = 0
	}

	z := make([]float64, k)
	for i := 0; i < n; i++ {
		for ci := 0; ci < k; ci++ {
			s := b[ci]
			for j := 0; j < d; j++ {
				s += W[ci][j] * xD.At(i, j)
			}
			z[ci] = s
		}
		softmaxInPlace(z)
		for ci := 0; ci < k; ci++ {
			diff := z[ci]
			if ci == yIdx[i] {
				diff -= 1.0
			}
			for j := 0; j < d; j++ {
				gradW[ci][j] += diff * xD.At(i, j)
			}
			gradB[ci] += diff
		}
	}

	invN := 1.0 / float64(n)
	for ci := 0; ci < k; ci++ {
		for j := 0; j < d; j++ {
			gradW[ci][j] *= invN
		}
		gradB[ci] *= invN
	}
}

// softThreshold is the proximal operator of the L1 norm.
func softThreshold(v, thresh float64) float64 {
	switch {
	case v > thresh:
		return v - thresh
	case v < -thresh:
		return v + thresh
	default:
		return 0
	}
}

// Predict returns the most likely class label for each row of X.
func (l *LassoLogistic) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LassoLogistic.Predict")
	if !l.State.IsFitted() {
		return nil, errors.NewNotFittedError("LassoLogistic", "Predict")
	}

	n, d := X.Dims()
	if d != l.NFeatures {
		return nil, errors.NewDimensionError("LassoLogistic.Predict", l.NFeatures, d, 1)
	}

	k := len(l.ClassLabels)
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		bestScore := math.Inf(-1)
		for ci := 0; ci < k; ci++ {
			z := l.Intercepts[ci]
			for j := 0; j < d; j++ {
				z += l.Coefs[ci][j] * X.At(i, j)
			}
			if z > bestScore {
				bestScore = z
				best = ci
			}
		}
		pred.Set(i, 0, float64(l.ClassLabels[best]))
	}
	return pred, nil
}

// PredictProba returns softmax probabilities of shape
// (n_samples, n_classes).
func (l *LassoLogistic) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LassoLogistic.PredictProba")
	if !l.State.IsFitted() {
		return nil, errors.NewNotFittedError("LassoLogistic", "PredictProba")
	}

	n, d := X.Dims()
	if d != l.NFeatures {
		return nil, errors.NewDimensionError("LassoLogistic.PredictProba", l.NFeatures, d, 1)
	}

	k := len(l.ClassLabels)
	proba := mat.NewDense(n, k, nil)
	z := make([]float64, k)
	for i := 0; i < n; i++ {
		for ci := 0; ci < k; ci++ {
			s := l.Intercepts[ci]
			for j := 0; j < d; j++ {
				s += l.Coefs[ci][j] * X.At(i, j)
			}
			z[ci] = s
		}
		softmaxInPlace(z)
		for ci := 0; ci < k; ci++ {
			proba.Set(i, ci, z[ci])
		}
	}
	return proba, nil
}

// Score returns mean accuracy on the given data.
func (l *LassoLogistic) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "LassoLogistic.Score")
	pred, err := l.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracyOf(pred, y)
}

// Classes returns a copy of the sorted class labels seen during Fit.
func (l *LassoLogistic) Classes() []int {
	return append([]int(nil), l.ClassLabels...)
}

// FeatureImportances returns the mean absolute coefficient per feature.
// With a strong enough lambda many entries are exactly zero.
func (l *LassoLogistic) FeatureImportances() ([]float64, error) {
	if !l.State.IsFitted() {
		return nil, errors.NewNotFittedError("LassoLogistic", "FeatureImportances")
	}
	return meanAbsCoefs(l.Coefs, l.NFeatures), nil
}

// Sparsity returns the fraction of weight entries that are exactly zero.
func (l *LassoLogistic) Sparsity() float64 {
	if l.Coefs == nil {
		return 0
	}
	zeros, total := 0, 0
	for _, row := range l.Coefs {
		for _, w := range row {
			if w == 0 {
				zeros++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(zeros) / float64(total)
}

// IsFitted reports whether Fit has completed.
func (l *LassoLogistic) IsFitted() bool {
	return l.State.IsFitted()
}

// GetParams returns the hyperparameters.
func (l *LassoLogistic) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"lambda":        l.lambda,
		"max_iter":      l.maxIter,
		"tol":           l.tol,
		"fit_intercept": l.fitIntercept,
	}
}

// SetParams applies hyperparameters by name.
func (l *LassoLogistic) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "lambda":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LassoLogistic.SetParams", "lambda must be a number")
			}
			l.lambda = f
		case "max_iter":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("LassoLogistic.SetParams", "max_iter must be an integer")
			}
			l.maxIter = n
		case "tol":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LassoLogistic.SetParams", "tol must be a number")
			}
			l.tol = f
		case "fit_intercept":
			b, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("LassoLogistic.SetParams", "fit_intercept must be a bool")
			}
			l.fitIntercept = b
		default:
			return errors.NewValueError("LassoLogistic.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}
