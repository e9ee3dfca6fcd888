package linear

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// Multi-class strategies accepted by WithLRMultiClass.
const (
	MultiClassAuto        = "auto"
	MultiClassMultinomial = "multinomial"
	MultiClassOVR         = "ovr"
)

// LogisticRegression is an L2-regularized logistic classifier fitted
// with L-BFGS. Binary problems use the sigmoid likelihood; multi-class
// problems use either a single multinomial (softmax) model or a
// one-vs-rest ensemble of binary models, controlled by the multi_class
// parameter.
type LogisticRegression struct {
	State *model.StateManager // Public for gob encoding

	// Fitted parameters. Coefs has one row per class for multinomial and
	// one-vs-rest fits, and a single row for binary fits.
	Coefs       [][]float64
	Intercepts  []float64
	ClassLabels []int
	NFeatures   int
	NumIter     []int  // L-BFGS major iterations per optimization run
	Strategy    string // resolved at fit time: binary, ovr, or multinomial

	// Hyperparameters.
	c            float64
	penalty      string
	fitIntercept bool
	maxIter      int
	tol          float64
	multiClass   string

	logger log.Logger
}

// LogisticRegressionOption configures a LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// WithLRC sets the inverse regularization strength C (default 1.0).
// Smaller values mean stronger regularization.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.c = c }
}

// WithLRPenalty sets the penalty: "l2" (default) or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRFitIntercept controls whether an intercept is fitted (default true).
func WithLRFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRMaxIter sets the L-BFGS iteration cap (default 100).
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the gradient-norm convergence tolerance (default 1e-4).
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRMultiClass sets the multi-class strategy: "auto" (default),
// "multinomial", or "ovr".
func WithLRMultiClass(mc string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.multiClass = mc }
}

// NewLogisticRegression returns an untrained logistic classifier with
// sklearn-compatible defaults: C=1.0, l2 penalty, fitted intercept,
// 100 iterations, tol 1e-4, auto multi-class handling.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		c:            1.0,
		penalty:      "l2",
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
		multiClass:   MultiClassAuto,
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "LogisticRegression",
		log.ComponentKey, "linear",
	)
	return lr
}

// Fit trains the classifier on X (n_samples x n_features) and y, a
// column vector of integer class labels stored as float64.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("LogisticRegression.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValueError("LogisticRegression.Fit", "penalty must be l2 or none")
	}
	if lr.penalty == "l2" && lr.c <= 0 {
		return errors.NewValueError("LogisticRegression.Fit", "C must be positive for l2 penalty")
	}

	lr.ClassLabels = extractClasses(y)
	if len(lr.ClassLabels) < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "need at least two classes")
	}
	lr.NFeatures = d

	if lr.logger != nil {
		lr.logger.Info("Training started",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, len(lr.ClassLabels),
		)
	}

	switch {
	case len(lr.ClassLabels) == 2:
		lr.Strategy = "binary"
		err = lr.fitBinary(X, y)
	case lr.multiClass == MultiClassOVR:
		lr.Strategy = MultiClassOVR
		err = lr.fitOVR(X, y)
	default: // auto and multinomial
		lr.Strategy = MultiClassMultinomial
		err = lr.fitMultinomial(X, y)
	}
	if err != nil {
		return err
	}

	lr.State.SetFitted()
	lr.State.SetDimensions(d, n)

	if lr.logger != nil {
		lr.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// lambda returns the L2 strength derived from C, or 0 for penalty "none".
func (lr *LogisticRegression) lambda() float64 {
	if lr.penalty == "l2" {
		return 1.0 / lr.c
	}
	return 0
}

// fitBinary optimizes a single sigmoid model separating ClassLabels[1]
// (positive) from ClassLabels[0].
func (lr *LogisticRegression) fitBinary(X, y mat.Matrix) error {
	n, d := X.Dims()

	yBin := make([]float64, n)
	pos := lr.ClassLabels[1]
	for i := 0; i < n; i++ {
		if int(y.At(i, 0)) == pos {
			yBin[i] = 1.0
		}
	}

	theta, iters, err := lr.minimizeSigmoid(mat.DenseCopyOf(X), yBin)
	if err != nil {
		return err
	}

	lr.Coefs = [][]float64{append([]float64(nil), theta[:d]...)}
	lr.Intercepts = []float64{0}
	if lr.fitIntercept {
		lr.Intercepts[0] = theta[d]
	}
	lr.NumIter = []int{iters}
	return nil
}

// fitOVR fits one binary model per class against the rest.
func (lr *LogisticRegression) fitOVR(X, y mat.Matrix) error {
	n, d := X.Dims()
	k := len(lr.ClassLabels)
	xD := mat.DenseCopyOf(X)

	lr.Coefs = make([][]float64, k)
	lr.Intercepts = make([]float64, k)
	lr.NumIter = make([]int, k)

	for ci, class := range lr.ClassLabels {
		yBin := make([]float64, n)
		for i := 0; i < n; i++ {
			if int(y.At(i, 0)) == class {
				yBin[i] = 1.0
			}
		}

		theta, iters, err := lr.minimizeSigmoid(xD, yBin)
		if err != nil {
			return errors.Wrapf(err, "one-vs-rest fit failed for class %d", class)
		}
		lr.Coefs[ci] = append([]float64(nil), theta[:d]...)
		if lr.fitIntercept {
			lr.Intercepts[ci] = theta[d]
		}
		lr.NumIter[ci] = iters
	}
	return nil
}

// minimizeSigmoid runs L-BFGS on the mean negative log-likelihood of a
// binary sigmoid model with optional L2 on the weights. The parameter
// vector is [w_0..w_{d-1}] plus a trailing intercept when enabled.
func (lr *LogisticRegression) minimizeSigmoid(xD *mat.Dense, yBin []float64) ([]float64, int, error) {
	n, d := xD.Dims()
	pDim := d
	if lr.fitIntercept {
		pDim++
	}
	lambda := lr.lambda()

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			w := theta[:d]
			var b float64
			if lr.fitIntercept {
				b = theta[d]
			}
			loss := 0.0
			for i := 0; i < n; i++ {
				z := b
				for j := 0; j < d; j++ {
					z += w[j] * xD.At(i, j)
				}
				p := clampProbability(stableSigmoid(z))
				loss += -yBin[i]*math.Log(p) - (1.0-yBin[i])*math.Log(1.0-p)
			}
			loss /= float64(n)
			if lambda > 0 {
				reg := 0.0
				for j := 0; j < d; j++ {
					reg += w[j] * w[j]
				}
				loss += 0.5 * lambda * reg
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			w := theta[:d]
			var b float64
			if lr.fitIntercept {
				b = theta[d]
			}
			for j := range grad {
				grad[j] = 0
			}
			for i := 0; i < n; i++ {
				z := b
				for j := 0; j < d; j++ {
					z += w[j] * xD.At(i, j)
				}
				diff := stableSigmoid(z) - yBin[i]
				for j := 0; j < d; j++ {
					grad[j] += diff * xD.At(i, j)
				}
				if lr.fitIntercept {
					grad[d] += diff
				}
			}
			invN := 1.0 / float64(n)
			for j := range grad {
				grad[j] *= invN
			}
			if lambda > 0 {
				for j := 0; j < d; j++ {
					grad[j] += lambda * w[j]
				}
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	method := &optimize.LBFGS{}
	result, err := optimize.Minimize(prob, make([]float64, pDim), &settings, method)
	if err != nil {
		return nil, 0, errors.Wrap(err, "lbfgs optimization failed")
	}
	return result.X, result.Stats.MajorIterations, nil
}

// fitMultinomial optimizes a single softmax model over all classes. The
// parameter vector packs the K x d weight matrix row-major, followed by
// the K intercepts when enabled.
func (lr *LogisticRegression) fitMultinomial(X, y mat.Matrix) error {
	n, d := X.Dims()
	k := len(lr.ClassLabels)
	xD := mat.DenseCopyOf(X)
	lambda := lr.lambda()

	classIdx := make(map[int]int, k)
	for ci, class := range lr.ClassLabels {
		classIdx[class] = ci
	}
	yIdx := make([]int, n)
	for i := 0; i < n; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	pDim := k * d
	if lr.fitIntercept {
		pDim += k
	}

	// scores fills z with the K class scores for row i.
	scores := func(theta []float64, i int, z []float64) {
		for ci := 0; ci < k; ci++ {
			s := 0.0
			if lr.fitIntercept {
				s = theta[k*d+ci]
			}
			w := theta[ci*d : (ci+1)*d]
			for j := 0; j < d; j++ {
				s += w[j] * xD.At(i, j)
			}
			z[ci] = s
		}
	}

	prob := optimize.Problem{
		Func: func(theta []float64) float64 {
			z := make([]float64, k)
			loss := 0.0
			for i := 0; i < n; i++ {
				scores(theta, i, z)
				// log-sum-exp with max subtraction
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
			loss /= float64(n)
			if lambda > 0 {
				reg := 0.0
				for ci := 0; ci < k; ci++ {
					for j := 0; j < d; j++ {
						w := theta[ci*d+j]
						reg += w * w
					}
				}
				loss += 0.5 * lambda * reg
			}
			return loss
		},
		Grad: func(grad, theta []float64) {
			for j := range grad {
				grad[j] = 0
			}
			z := make([]float64, k)
			for i := 0; i < n; i++ {
				scores(theta, i, z)
				softmaxInPlace(z)
				for ci := 0; ci < k; ci++ {
					diff := z[ci]
					if ci == yIdx[i] {
						diff -= 1.0
					}
					base := ci * d
					for j := 0; j < d; j++ {
						grad[base+j] += diff * xD.At(i, j)
					}
					if lr.fitIntercept {
						grad[k*d+ci] += diff
					}
				}
			}
			invN := 1.0 / float64(n)
			for j := range grad {
				grad[j] *= invN
			}
			if lambda > 0 {
				for ci := 0; ci < k; ci++ {
					for j := 0; j < d; j++ {
						grad[ci*d+j] += lambda * theta[ci*d+j]
					}
				}
			}
		},
	}

	settings := optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	method := &optimize.LBFGS{}
	result, err := optimize.Minimize(prob, make([]float64, pDim), &settings, method)
	if err != nil {
		return errors.Wrap(err, "lbfgs optimization failed")
	}

	theta := result.X
	lr.Coefs = make([][]float64, k)
	lr.Intercepts = make([]float64, k)
	lr.NumIter = []int{result.Stats.MajorIterations}
	for ci := 0; ci < k; ci++ {
		lr.Coefs[ci] = append([]float64(nil), theta[ci*d:(ci+1)*d]...)
		if lr.fitIntercept {
			lr.Intercepts[ci] = theta[k*d+ci]
		}
	}
	return nil
}

// decisionFunction returns the raw per-class scores, one row per sample.
// Binary models produce a single column.
func (lr *LogisticRegression) decisionFunction(X mat.Matrix) (*mat.Dense, error) {
	n, d := X.Dims()
	if d != lr.NFeatures {
		return nil, errors.NewDimensionError("LogisticRegression.decisionFunction", lr.NFeatures, d, 1)
	}

	rows := len(lr.Coefs)
	scores := mat.NewDense(n, rows, nil)
	for i := 0; i < n; i++ {
		for ci := 0; ci < rows; ci++ {
			z := lr.Intercepts[ci]
			for j := 0; j < d; j++ {
				z += lr.Coefs[ci][j] * X.At(i, j)
			}
			scores.Set(i, ci, z)
		}
	}
	return scores, nil
}

// Predict returns the most likely class label for each row of X.
func (lr *LogisticRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.Predict")
	if !lr.State.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Predict")
	}

	scores, err := lr.decisionFunction(X)
	if err != nil {
		return nil, err
	}

	n, _ := scores.Dims()
	pred := mat.NewDense(n, 1, nil)
	if len(lr.Coefs) == 1 {
		for i := 0; i < n; i++ {
			label := lr.ClassLabels[0]
			if scores.At(i, 0) > 0 {
				label = lr.ClassLabels[1]
			}
			pred.Set(i, 0, float64(label))
		}
		return pred, nil
	}

	for i := 0; i < n; i++ {
		best := 0
		for ci := 1; ci < len(lr.Coefs); ci++ {
			if scores.At(i, ci) > scores.At(i, best) {
				best = ci
			}
		}
		pred.Set(i, 0, float64(lr.ClassLabels[best]))
	}
	return pred, nil
}

// PredictProba returns per-class probabilities of shape
// (n_samples, n_classes), columns ordered as Classes().
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LogisticRegression.PredictProba")
	if !lr.State.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}

	scores, err := lr.decisionFunction(X)
	if err != nil {
		return nil, err
	}

	n, _ := scores.Dims()
	k := len(lr.ClassLabels)
	proba := mat.NewDense(n, k, nil)

	if len(lr.Coefs) == 1 {
		for i := 0; i < n; i++ {
			p := stableSigmoid(scores.At(i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
		return proba, nil
	}

	row := make([]float64, k)
	for i := 0; i < n; i++ {
		for ci := 0; ci < k; ci++ {
			row[ci] = scores.At(i, ci)
		}
		if lr.Strategy == MultiClassOVR {
			// Per-class sigmoids normalized to sum to one.
			sum := 0.0
			for ci := 0; ci < k; ci++ {
				row[ci] = stableSigmoid(row[ci])
				sum += row[ci]
			}
			if sum > 0 {
				for ci := 0; ci < k; ci++ {
					row[ci] /= sum
				}
			}
		} else {
			softmaxInPlace(row)
		}
		for ci := 0; ci < k; ci++ {
			proba.Set(i, ci, row[ci])
		}
	}
	return proba, nil
}

// Score returns mean accuracy on the given data.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "LogisticRegression.Score")
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return accuracyOf(pred, y)
}

// Classes returns a copy of the sorted class labels seen during Fit.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// FeatureImportances returns the mean absolute coefficient per feature.
func (lr *LogisticRegression) FeatureImportances() ([]float64, error) {
	if !lr.State.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "FeatureImportances")
	}
	return meanAbsCoefs(lr.Coefs, lr.NFeatures), nil
}

// IsFitted reports whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.c,
		"penalty":       lr.penalty,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"multi_class":   lr.multiClass,
	}
}

// SetParams applies hyperparameters by sklearn name. Unknown keys are
// rejected so grid definitions fail loudly.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "C must be a number")
			}
			lr.c = f
		case "penalty":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "penalty must be a string")
			}
			lr.penalty = s
		case "fit_intercept":
			b, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "fit_intercept must be a bool")
			}
			lr.fitIntercept = b
		case "max_iter":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "max_iter must be an integer")
			}
			lr.maxIter = n
		case "tol":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "tol must be a number")
			}
			lr.tol = f
		case "multi_class":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("LogisticRegression.SetParams", "multi_class must be a string")
			}
			lr.multiClass = s
		default:
			return errors.NewValueError("LogisticRegression.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}

// extractClasses collects the distinct integer labels in y, sorted
// ascending.
func extractClasses(y mat.Matrix) []int {
	n, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < n; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// accuracyOf compares a prediction column against a label column.
func accuracyOf(pred mat.Matrix, y mat.Matrix) (float64, error) {
	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("accuracy", n, ny, 0)
	}
	if n == 0 {
		return 0, errors.NewModelError("accuracy", "empty data", errors.ErrEmptyData)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if int(pred.At(i, 0)) == int(y.At(i, 0)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// meanAbsCoefs averages |coef| across class rows for each feature.
func meanAbsCoefs(coefs [][]float64, d int) []float64 {
	imp := make([]float64, d)
	for _, row := range coefs {
		for j := 0; j < d; j++ {
			imp[j] += math.Abs(row[j])
		}
	}
	for j := range imp {
		imp[j] /= float64(len(coefs))
	}
	return imp
}

// stableSigmoid computes sigmoid(z) without overflow for large |z|.
func stableSigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// clampProbability keeps p inside (0, 1) so log(p) stays finite.
func clampProbability(p float64) float64 {
	const eps = 1e-15
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// softmaxInPlace overwrites z with softmax(z), subtracting the max for
// numerical stability.
func softmaxInPlace(z []float64) {
	zMax := z[0]
	for _, v := range z[1:] {
		if v > zMax {
			zMax = v
		}
	}
	sum := 0.0
	for i := range z {
		z[i] = math.Exp(z[i] - zMax)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
	}
}
