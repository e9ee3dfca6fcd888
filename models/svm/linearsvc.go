// Package svm implements a linear support vector classifier trained
// with stochastic gradient descent on the hinge loss, one binary model
// per class (one-vs-rest).
package svm

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// Learning-rate schedules accepted by WithSVCLearningRate.
const (
	ScheduleConstant   = "constant"
	ScheduleOptimal    = "optimal"
	ScheduleInvScaling = "invscaling"
)

// LinearSVC is a linear one-vs-rest SVM fitted with SGD. The loss is
// "hinge" (default) or "squared_hinge"; regularization is L2 with
// strength alpha. There is no probability output; use DecisionFunction
// for raw margins.
type LinearSVC struct {
	State *model.StateManager // Public for gob encoding

	Coefs       [][]float64 // one row per class
	Intercepts  []float64
	ClassLabels []int
	NFeatures   int
	NumIter     int       // epochs actually run
	LossCurve   []float64 // mean loss per epoch
	Converged   bool

	// Hyperparameters.
	loss          string
	alpha         float64
	maxIter       int
	tol           float64
	eta0          float64
	schedule      string
	fitIntercept  bool
	shuffle       bool
	averaged      bool
	nIterNoChange int
	randomState   int64

	// t counts weight updates across the whole fit, driving the
	// learning-rate schedules.
	t int

	mu     sync.RWMutex
	logger log.Logger
}

// LinearSVCOption configures a LinearSVC.
type LinearSVCOption func(*LinearSVC)

// WithSVCLoss sets the loss: "hinge" (default) or "squared_hinge".
func WithSVCLoss(loss string) LinearSVCOption {
	return func(s *LinearSVC) { s.loss = loss }
}

// WithSVCAlpha sets the L2 regularization strength (default 1e-4).
func WithSVCAlpha(alpha float64) LinearSVCOption {
	return func(s *LinearSVC) { s.alpha = alpha }
}

// WithSVCMaxIter sets the epoch cap (default 1000).
func WithSVCMaxIter(maxIter int) LinearSVCOption {
	return func(s *LinearSVC) { s.maxIter = maxIter }
}

// WithSVCTol sets the loss-improvement tolerance for early stopping
// (default 1e-3).
func WithSVCTol(tol float64) LinearSVCOption {
	return func(s *LinearSVC) { s.tol = tol }
}

// WithSVCEta0 sets the base learning rate for the constant and
// invscaling schedules (default 0.01).
func WithSVCEta0(eta0 float64) LinearSVCOption {
	return func(s *LinearSVC) { s.eta0 = eta0 }
}

// WithSVCLearningRate sets the schedule: "optimal" (default),
// "constant", or "invscaling".
func WithSVCLearningRate(schedule string) LinearSVCOption {
	return func(s *LinearSVC) { s.schedule = schedule }
}

// WithSVCFitIntercept controls intercept fitting (default true).
func WithSVCFitIntercept(fit bool) LinearSVCOption {
	return func(s *LinearSVC) { s.fitIntercept = fit }
}

// WithSVCShuffle controls per-epoch shuffling (default true).
func WithSVCShuffle(shuffle bool) LinearSVCOption {
	return func(s *LinearSVC) { s.shuffle = shuffle }
}

// WithSVCAveraged enables averaged SGD: the fitted coefficients are the
// running average of the iterates, which smooths the hinge loss noise.
func WithSVCAveraged(averaged bool) LinearSVCOption {
	return func(s *LinearSVC) { s.averaged = averaged }
}

// WithSVCRandomState seeds the shuffling.
func WithSVCRandomState(seed int64) LinearSVCOption {
	return func(s *LinearSVC) { s.randomState = seed }
}

// NewLinearSVC returns an untrained linear SVM.
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	s := &LinearSVC{
		State:         model.NewStateManager(),
		loss:          "hinge",
		alpha:         1e-4,
		maxIter:       1000,
		tol:           1e-3,
		eta0:          0.01,
		schedule:      ScheduleOptimal,
		fitIntercept:  true,
		shuffle:       true,
		nIterNoChange: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "LinearSVC",
		log.ComponentKey, "svm",
	)
	return s
}

// Fit trains one binary SVM per class with SGD over maxIter epochs,
// stopping early when the epoch loss stops improving by tol for
// nIterNoChange consecutive epochs.
func (s *LinearSVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVC.Fit")
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("LinearSVC.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("LinearSVC.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearSVC.Fit", "y must be a column vector")
	}
	if s.loss != "hinge" && s.loss != "squared_hinge" {
		return errors.NewValueError("LinearSVC.Fit", "loss must be hinge or squared_hinge")
	}
	if s.alpha <= 0 {
		return errors.NewValueError("LinearSVC.Fit", "alpha must be positive")
	}
	switch s.schedule {
	case ScheduleConstant, ScheduleOptimal, ScheduleInvScaling:
	default:
		return errors.NewValueError("LinearSVC.Fit", "unknown learning_rate schedule: "+s.schedule)
	}

	s.extractClasses(y)
	k := len(s.ClassLabels)
	if k < 2 {
		return errors.NewValueError("LinearSVC.Fit", "need at least two classes")
	}
	s.NFeatures = d

	if s.logger != nil {
		s.logger.Info("Training started",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, k,
		)
	}

	s.Coefs = make([][]float64, k)
	s.Intercepts = make([]float64, k)
	avgCoefs := make([][]float64, k)
	avgIntercepts := make([]float64, k)
	for ci := 0; ci < k; ci++ {
		s.Coefs[ci] = make([]float64, d)
		avgCoefs[ci] = make([]float64, d)
	}

	classIdx := make(map[int]int, k)
	for ci, class := range s.ClassLabels {
		classIdx[class] = ci
	}
	yIdx := make([]int, n)
	for i := 0; i < n; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	rng := rand.New(rand.NewPCG(uint64(s.randomState), uint64(s.randomState)^0x9e3779b97f4a7c15))
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	s.t = 1
	s.NumIter = 0
	s.Converged = false
	s.LossCurve = s.LossCurve[:0]
	xi := make([]float64, d)

	for epoch := 0; epoch < s.maxIter; epoch++ {
		if s.shuffle {
			rng.Shuffle(n, func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}

		epochLoss := 0.0
		for _, idx := range indices {
			mat.Row(xi, idx, X)
			epochLoss += s.updateSample(xi, yIdx[idx], avgCoefs, avgIntercepts)
		}
		epochLoss /= float64(n)
		s.LossCurve = append(s.LossCurve, epochLoss)
		s.NumIter = epoch + 1

		if err := errors.CheckScalar("epoch_loss", epochLoss, s.NumIter); err != nil {
			errors.Warn(err)
			break
		}
		if s.checkConvergence() {
			s.Converged = true
			break
		}
	}

	if !s.Converged && s.NumIter == s.maxIter {
		errors.Warn(errors.NewConvergenceWarning("LinearSVC", s.NumIter, "maximum number of epochs reached"))
	}

	if s.averaged {
		for ci := 0; ci < k; ci++ {
			copy(s.Coefs[ci], avgCoefs[ci])
			s.Intercepts[ci] = avgIntercepts[ci]
		}
	}

	s.State.SetFitted()
	s.State.SetDimensions(d, n)

	if s.logger != nil {
		s.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.DurationMsKey, time.Since(start).Milliseconds(),
			"epochs", s.NumIter,
			"converged", s.Converged,
		)
	}
	return nil
}

// updateSample performs one SGD step for every class model against one
// sample and returns the mean hinge loss across classes.
func (s *LinearSVC) updateSample(x []float64, yIdx int, avgCoefs [][]float64, avgIntercepts []float64) float64 {
	k := len(s.ClassLabels)
	totalLoss := 0.0
	lr := s.learningRate()

	for ci := 0; ci < k; ci++ {
		target := -1.0
		if ci == yIdx {
			target = 1.0
		}

		score := s.Intercepts[ci]
		for j, xj := range x {
			score += s.Coefs[ci][j] * xj
		}

		var loss, dloss float64
		margin := target * score
		switch s.loss {
		case "squared_hinge":
			if margin < 1 {
				diff := 1 - margin
				loss = 0.5 * diff * diff
				dloss = -target * diff
			}
		default: // hinge
			if margin < 1 {
				loss = 1 - margin
				dloss = -target
			}
		}
		totalLoss += loss

		for j, xj := range x {
			grad := dloss*xj + s.alpha*s.Coefs[ci][j]
			s.Coefs[ci][j] -= lr * grad
			if s.averaged {
				avgCoefs[ci][j] += (s.Coefs[ci][j] - avgCoefs[ci][j]) / float64(s.t)
			}
		}
		if s.fitIntercept {
			s.Intercepts[ci] -= lr * dloss
			if s.averaged {
				avgIntercepts[ci] += (s.Intercepts[ci] - avgIntercepts[ci]) / float64(s.t)
			}
		}
	}

	s.t++
	return totalLoss / float64(k)
}

// learningRate returns the step size for update t.
func (s *LinearSVC) learningRate() float64 {
	switch s.schedule {
	case ScheduleConstant:
		return s.eta0
	case ScheduleInvScaling:
		return s.eta0 / math.Sqrt(float64(s.t))
	default: // optimal
		return 1.0 / (s.alpha * (float64(s.t) + 1.0/s.alpha))
	}
}

// checkConvergence reports whether the loss improved by less than tol
// over the last nIterNoChange epochs.
func (s *LinearSVC) checkConvergence() bool {
	if len(s.LossCurve) < s.nIterNoChange+1 {
		return false
	}
	window := s.LossCurve[len(s.LossCurve)-s.nIterNoChange-1:]
	best := window[0]
	for _, v := range window[1:] {
		if best-v > s.tol {
			return false
		}
	}
	return true
}

func (s *LinearSVC) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	s.ClassLabels = make([]int, 0, len(seen))
	for class := range seen {
		s.ClassLabels = append(s.ClassLabels, class)
	}
	sort.Ints(s.ClassLabels)
}

// DecisionFunction returns the per-class margins, one row per sample.
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LinearSVC.DecisionFunction")
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.State.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "DecisionFunction")
	}

	n, d := X.Dims()
	if d != s.NFeatures {
		return nil, errors.NewDimensionError("LinearSVC.DecisionFunction", s.NFeatures, d, 1)
	}

	k := len(s.ClassLabels)
	scores := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for ci := 0; ci < k; ci++ {
			z := s.Intercepts[ci]
			for j := 0; j < d; j++ {
				z += s.Coefs[ci][j] * X.At(i, j)
			}
			scores.Set(i, ci, z)
		}
	}
	return scores, nil
}

// Predict returns the class with the largest margin per row.
func (s *LinearSVC) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "LinearSVC.Predict")
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	n, k := scores.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for ci := 1; ci < k; ci++ {
			if scores.At(i, ci) > scores.At(i, best) {
				best = ci
			}
		}
		pred.Set(i, 0, float64(s.ClassLabels[best]))
	}
	return pred, nil
}

// Score returns mean accuracy on the given data.
func (s *LinearSVC) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "LinearSVC.Score")
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}

	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("LinearSVC.Score", n, ny, 0)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if int(pred.At(i, 0)) == int(y.At(i, 0)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Classes returns a copy of the sorted class labels seen during Fit.
func (s *LinearSVC) Classes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]int(nil), s.ClassLabels...)
}

// FeatureImportances returns the mean absolute coefficient per feature.
func (s *LinearSVC) FeatureImportances() ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.State.IsFitted() {
		return nil, errors.NewNotFittedError("LinearSVC", "FeatureImportances")
	}
	imp := make([]float64, s.NFeatures)
	for _, row := range s.Coefs {
		for j := 0; j < s.NFeatures; j++ {
			imp[j] += math.Abs(row[j])
		}
	}
	for j := range imp {
		imp[j] /= float64(len(s.Coefs))
	}
	return imp, nil
}

// IsFitted reports whether Fit has completed.
func (s *LinearSVC) IsFitted() bool {
	return s.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"loss":          s.loss,
		"alpha":         s.alpha,
		"max_iter":      s.maxIter,
		"tol":           s.tol,
		"eta0":          s.eta0,
		"learning_rate": s.schedule,
		"fit_intercept": s.fitIntercept,
		"shuffle":       s.shuffle,
		"averaged":      s.averaged,
		"random_state":  s.randomState,
	}
}

// SetParams applies hyperparameters by sklearn name.
func (s *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "loss":
			v, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "loss must be a string")
			}
			s.loss = v
		case "alpha":
			v, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "alpha must be a number")
			}
			s.alpha = v
		case "max_iter":
			v, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "max_iter must be an integer")
			}
			s.maxIter = v
		case "tol":
			v, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "tol must be a number")
			}
			s.tol = v
		case "eta0":
			v, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "eta0 must be a number")
			}
			s.eta0 = v
		case "learning_rate":
			v, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "learning_rate must be a string")
			}
			s.schedule = v
		case "fit_intercept":
			v, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "fit_intercept must be a bool")
			}
			s.fitIntercept = v
		case "shuffle":
			v, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "shuffle must be a bool")
			}
			s.shuffle = v
		case "averaged":
			v, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "averaged must be a bool")
			}
			s.averaged = v
		case "random_state":
			v, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("LinearSVC.SetParams", "random_state must be an integer")
			}
			s.randomState = int64(v)
		default:
			return errors.NewValueError("LinearSVC.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}
