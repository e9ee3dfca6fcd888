// Package bayes implements Gaussian naive Bayes for continuous
// features, with incremental fitting support.
package bayes

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// GaussianNB models each feature as a per-class Gaussian. Moments are
// tracked with Welford's algorithm so PartialFit over batches produces
// exactly the same parameters as a single Fit.
type GaussianNB struct {
	State *model.StateManager // Public for gob encoding

	ClassLabels []int
	ClassCount  []float64
	Theta       [][]float64 // per-class feature means
	Sigma       [][]float64 // per-class feature variances, without smoothing
	M2          [][]float64 // per-class sums of squared deviations
	EpsilonVar  float64     // smoothing added to every variance at predict time
	Priors      []float64   // fixed class priors; nil means learned frequencies
	NFeatures   int
	NSamples    int

	// Running whole-data moments; EpsilonVar derives from the largest
	// feature variance seen so far.
	TotalMean []float64
	TotalM2   []float64

	// Hyperparameters.
	varSmoothing float64

	mu     sync.RWMutex
	logger log.Logger
}

// GaussianNBOption configures a GaussianNB.
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing sets the portion of the largest feature variance
// added to all variances for stability (default 1e-9).
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) { nb.varSmoothing = v }
}

// WithPriors fixes the class priors instead of learning them from the
// class frequencies.
func WithPriors(priors []float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.Priors = append([]float64(nil), priors...)
	}
}

// NewGaussianNB returns an untrained Gaussian naive Bayes classifier.
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{
		State:        model.NewStateManager(),
		varSmoothing: 1e-9,
	}
	for _, opt := range opts {
		opt(nb)
	}
	nb.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "GaussianNB",
		log.ComponentKey, "bayes",
	)
	return nb
}

// Fit estimates per-class means and variances from scratch.
func (nb *GaussianNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")
	nb.mu.Lock()
	defer nb.mu.Unlock()

	start := time.Now()
	if err := validateXY(X, y, "GaussianNB.Fit"); err != nil {
		return err
	}

	nb.resetMoments()
	classes := extractClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("GaussianNB.Fit", "need at least two classes")
	}
	if err := nb.initMoments(X, classes); err != nil {
		return err
	}
	nb.accumulate(X, y)
	nb.State.SetFitted()
	n, d := X.Dims()
	nb.State.SetDimensions(d, n)

	if nb.logger != nil {
		nb.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, len(classes),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// PartialFit updates the moments with one batch. On the first call the
// full class list must be supplied via classes (or be present in y);
// later calls ignore it. Rows labeled with a class outside that list
// are skipped.
func (nb *GaussianNB) PartialFit(X, y mat.Matrix, classes []int) (err error) {
	defer errors.Recover(&err, "GaussianNB.PartialFit")
	nb.mu.Lock()
	defer nb.mu.Unlock()

	if err := validateXY(X, y, "GaussianNB.PartialFit"); err != nil {
		return err
	}

	_, d := X.Dims()
	if nb.ClassLabels == nil {
		if classes == nil {
			classes = extractClasses(y)
		} else {
			classes = append([]int(nil), classes...)
			sort.Ints(classes)
		}
		if len(classes) < 2 {
			return errors.NewValueError("GaussianNB.PartialFit", "need at least two classes")
		}
		if err := nb.initMoments(X, classes); err != nil {
			return err
		}
	} else if d != nb.NFeatures {
		return errors.NewDimensionError("GaussianNB.PartialFit", nb.NFeatures, d, 1)
	}

	nb.accumulate(X, y)
	nb.State.SetFitted()
	nb.State.SetDimensions(nb.NFeatures, nb.NSamples)
	return nil
}

func (nb *GaussianNB) resetMoments() {
	nb.ClassLabels = nil
	nb.ClassCount = nil
	nb.Theta = nil
	nb.Sigma = nil
	nb.M2 = nil
	nb.TotalMean = nil
	nb.TotalM2 = nil
	nb.EpsilonVar = 0
	nb.NSamples = 0
	nb.State.Reset()
}

func (nb *GaussianNB) initMoments(X mat.Matrix, classes []int) error {
	_, d := X.Dims()
	k := len(classes)
	if nb.Priors != nil && len(nb.Priors) != k {
		return errors.NewValueError("GaussianNB", "priors length does not match number of classes")
	}

	nb.ClassLabels = classes
	nb.NFeatures = d
	nb.ClassCount = make([]float64, k)
	nb.Theta = make([][]float64, k)
	nb.Sigma = make([][]float64, k)
	nb.M2 = make([][]float64, k)
	for c := 0; c < k; c++ {
		nb.Theta[c] = make([]float64, d)
		nb.Sigma[c] = make([]float64, d)
		nb.M2[c] = make([]float64, d)
	}
	nb.TotalMean = make([]float64, d)
	nb.TotalM2 = make([]float64, d)
	return nil
}

// accumulate folds the batch into the running class and whole-data
// moments, then refreshes the derived variances.
func (nb *GaussianNB) accumulate(X, y mat.Matrix) {
	n, d := X.Dims()
	classIdx := make(map[int]int, len(nb.ClassLabels))
	for c, class := range nb.ClassLabels {
		classIdx[class] = c
	}

	total := float64(nb.NSamples)
	for i := 0; i < n; i++ {
		c, ok := classIdx[int(y.At(i, 0))]
		if !ok {
			continue
		}
		nb.ClassCount[c]++
		nb.NSamples++
		total++

		for j := 0; j < d; j++ {
			v := X.At(i, j)

			delta := v - nb.Theta[c][j]
			nb.Theta[c][j] += delta / nb.ClassCount[c]
			nb.M2[c][j] += delta * (v - nb.Theta[c][j])

			tDelta := v - nb.TotalMean[j]
			nb.TotalMean[j] += tDelta / total
			nb.TotalM2[j] += tDelta * (v - nb.TotalMean[j])
		}
	}

	for c := range nb.ClassLabels {
		if nb.ClassCount[c] == 0 {
			continue
		}
		for j := 0; j < d; j++ {
			nb.Sigma[c][j] = nb.M2[c][j] / nb.ClassCount[c]
		}
	}

	maxVar := 0.0
	if nb.NSamples > 0 {
		for j := 0; j < d; j++ {
			if v := nb.TotalM2[j] / float64(nb.NSamples); v > maxVar {
				maxVar = v
			}
		}
	}
	nb.EpsilonVar = nb.varSmoothing * maxVar
	if nb.EpsilonVar == 0 {
		nb.EpsilonVar = nb.varSmoothing
	}
}

// jointLogLikelihood returns log P(class) + log P(x | class) for one row.
func (nb *GaussianNB) jointLogLikelihood(X mat.Matrix, row int, c int) float64 {
	logPrior := nb.classLogPrior(c)
	jll := logPrior
	for j := 0; j < nb.NFeatures; j++ {
		variance := nb.Sigma[c][j] + nb.EpsilonVar
		diff := X.At(row, j) - nb.Theta[c][j]
		jll += -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
	}
	return jll
}

func (nb *GaussianNB) classLogPrior(c int) float64 {
	if nb.Priors != nil {
		return math.Log(nb.Priors[c])
	}
	if nb.NSamples == 0 || nb.ClassCount[c] == 0 {
		return math.Inf(-1)
	}
	return math.Log(nb.ClassCount[c] / float64(nb.NSamples))
}

// Predict returns the class with the highest joint log likelihood.
func (nb *GaussianNB) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GaussianNB.Predict")
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if !nb.State.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "Predict")
	}
	n, d := X.Dims()
	if d != nb.NFeatures {
		return nil, errors.NewDimensionError("GaussianNB.Predict", nb.NFeatures, d, 1)
	}

	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		bestJLL := math.Inf(-1)
		for c := range nb.ClassLabels {
			if jll := nb.jointLogLikelihood(X, i, c); jll > bestJLL {
				bestJLL = jll
				best = c
			}
		}
		pred.Set(i, 0, float64(nb.ClassLabels[best]))
	}
	return pred, nil
}

// PredictLogProba returns log P(class | x), normalized per row with
// log-sum-exp.
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GaussianNB.PredictLogProba")
	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if !nb.State.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictLogProba")
	}
	n, d := X.Dims()
	if d != nb.NFeatures {
		return nil, errors.NewDimensionError("GaussianNB.PredictLogProba", nb.NFeatures, d, 1)
	}

	k := len(nb.ClassLabels)
	logProba := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		maxJLL := math.Inf(-1)
		for c := 0; c < k; c++ {
			jll := nb.jointLogLikelihood(X, i, c)
			logProba.Set(i, c, jll)
			if jll > maxJLL {
				maxJLL = jll
			}
		}

		sumExp := 0.0
		for c := 0; c < k; c++ {
			sumExp += math.Exp(logProba.At(i, c) - maxJLL)
		}
		logSumExp := math.Log(sumExp) + maxJLL
		for c := 0; c < k; c++ {
			logProba.Set(i, c, logProba.At(i, c)-logSumExp)
		}
	}
	return logProba, nil
}

// PredictProba returns P(class | x) per row.
func (nb *GaussianNB) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GaussianNB.PredictProba")
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	n, k := logProba.Dims()
	proba := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			proba.Set(i, c, math.Exp(logProba.At(i, c)))
		}
	}
	return proba, nil
}

// Score returns mean accuracy on the given data.
func (nb *GaussianNB) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "GaussianNB.Score")
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("GaussianNB.Score", n, ny, 0)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if int(pred.At(i, 0)) == int(y.At(i, 0)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Classes returns a copy of the sorted class labels.
func (nb *GaussianNB) Classes() []int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return append([]int(nil), nb.ClassLabels...)
}

// NSamplesSeen returns the number of samples folded in so far.
func (nb *GaussianNB) NSamplesSeen() int {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	return nb.NSamples
}

// IsFitted reports whether any training data has been seen.
func (nb *GaussianNB) IsFitted() bool {
	return nb.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (nb *GaussianNB) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"var_smoothing": nb.varSmoothing,
	}
}

// SetParams applies hyperparameters by sklearn name.
func (nb *GaussianNB) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "var_smoothing":
			v, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("GaussianNB.SetParams", "var_smoothing must be a number")
			}
			nb.varSmoothing = v
		default:
			return errors.NewValueError("GaussianNB.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}

func validateXY(X, y mat.Matrix, op string) error {
	n, d := X.Dims()
	ry, cy := y.Dims()
	if n == 0 || d == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError(op, n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError(op, "y must be a column vector")
	}
	return nil
}

func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes
}
