package ensemble

import (
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/core/parallel"
	"github.com/airsift/airsift/models/tree"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// RandomForestClassifier is a bagging ensemble of CART trees. Each tree
// trains on a bootstrap resample and considers a random feature subset
// at every split; trees fit in parallel. Predictions aggregate by
// majority vote, probabilities by averaging leaf frequencies.
type RandomForestClassifier struct {
	State *model.StateManager // Public for gob encoding

	Trees       []*tree.DecisionTreeClassifier
	ClassLabels []int
	NFeatures   int
	Importances []float64 // mean of per-tree importances, normalized

	// Hyperparameters.
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "sqrt" (default), "log2", "all"
	criterion       string
	bootstrap       bool
	randomState     int64
	workers         int // parallel tree fits; <= 0 means GOMAXPROCS

	logger log.Logger
}

// RandomForestOption configures a RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// WithRFEstimators sets the number of trees (default 100).
func WithRFEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithRFMaxDepth sets the per-tree depth cap; <= 0 means unlimited.
func WithRFMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithRFMinSamplesSplit sets the per-tree minimum node size for splits.
func WithRFMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithRFMinSamplesLeaf sets the per-tree minimum leaf size.
func WithRFMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithRFMaxFeatures sets the per-split feature budget: "sqrt"
// (default), "log2", or "all".
func WithRFMaxFeatures(mf string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = mf }
}

// WithRFCriterion sets the split criterion passed to each tree.
func WithRFCriterion(criterion string) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.criterion = criterion }
}

// WithRFBootstrap toggles bootstrap resampling (default true). When
// false every tree sees the full training set and only feature
// subsampling varies.
func WithRFBootstrap(b bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithRFRandomState seeds the per-tree bootstrap and feature sampling.
func WithRFRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithRFWorkers caps the goroutines used to fit trees.
func WithRFWorkers(workers int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.workers = workers }
}

// NewRandomForestClassifier returns an untrained forest.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		State:           model.NewStateManager(),
		nEstimators:     100,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		criterion:       "gini",
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	rf.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "RandomForestClassifier",
		log.ComponentKey, "ensemble",
	)
	return rf
}

// Fit trains nEstimators trees on bootstrap resamples of X and y.
//
// Each tree derives its own seed from the forest seed and its index, so
// results do not depend on goroutine scheduling.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("RandomForestClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("RandomForestClassifier.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", "y must be a column vector")
	}
	if rf.nEstimators < 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", "n_estimators must be at least 1")
	}

	rf.ClassLabels = extractClasses(y)
	if len(rf.ClassLabels) < 2 {
		return errors.NewValueError("RandomForestClassifier.Fit", "need at least two classes")
	}
	rf.NFeatures = d

	if rf.logger != nil {
		rf.logger.Info("Training started",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, len(rf.ClassLabels),
			"n_estimators", rf.nEstimators,
		)
	}

	xD := mat.DenseCopyOf(X)
	yD := mat.DenseCopyOf(y)

	rf.Trees = make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	fitErrs := make([]error, rf.nEstimators)

	parallel.ParallelizeWorkers(rf.nEstimators, rf.workers, func(startTree, endTree int) {
		for t := startTree; t < endTree; t++ {
			treeSeed := rf.randomState + int64(t)*7919 // distinct stream per tree
			xT, yT := xD, yD
			if rf.bootstrap {
				xT, yT = bootstrapSample(xD, yD, treeSeed)
			}

			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(rf.maxFeatures),
				tree.WithDTRandomState(treeSeed),
			)
			if err := dt.Fit(xT, yT); err != nil {
				fitErrs[t] = err
				continue
			}
			rf.Trees[t] = dt
		}
	})

	for t, fitErr := range fitErrs {
		if fitErr != nil {
			return errors.Wrapf(fitErr, "tree %d fit failed", t)
		}
	}

	rf.aggregateImportances()
	rf.State.SetFitted()
	rf.State.SetDimensions(d, n)

	if rf.logger != nil {
		rf.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// bootstrapSample draws n rows with replacement.
func bootstrapSample(X, y *mat.Dense, seed int64) (*mat.Dense, *mat.Dense) {
	n, d := X.Dims()
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))

	xB := mat.NewDense(n, d, nil)
	yB := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		src := rng.IntN(n)
		for j := 0; j < d; j++ {
			xB.Set(i, j, X.At(src, j))
		}
		yB.Set(i, 0, y.At(src, 0))
	}
	return xB, yB
}

// aggregateImportances averages tree importances. Trees grown on a
// bootstrap may miss classes entirely, but importances stay aligned to
// the training feature columns.
func (rf *RandomForestClassifier) aggregateImportances() {
	rf.Importances = make([]float64, rf.NFeatures)
	for _, dt := range rf.Trees {
		for j, v := range dt.Importances {
			rf.Importances[j] += v
		}
	}
	sum := 0.0
	for _, v := range rf.Importances {
		sum += v
	}
	if sum > 0 {
		for j := range rf.Importances {
			rf.Importances[j] /= sum
		}
	}
}

// Predict returns the majority vote over the fitted trees.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Predict")
	proba, err := rf.predictProba(X, "Predict")
	if err != nil {
		return nil, err
	}

	n, k := proba.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for ci := 1; ci < k; ci++ {
			if proba.At(i, ci) > proba.At(i, best) {
				best = ci
			}
		}
		pred.Set(i, 0, float64(rf.ClassLabels[best]))
	}
	return pred, nil
}

// PredictProba returns tree-averaged class probabilities of shape
// (n_samples, n_classes).
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.PredictProba")
	return rf.predictProba(X, "PredictProba")
}

func (rf *RandomForestClassifier) predictProba(X mat.Matrix, method string) (*mat.Dense, error) {
	if !rf.State.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", method)
	}

	n, d := X.Dims()
	if d != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestClassifier."+method, rf.NFeatures, d, 1)
	}

	k := len(rf.ClassLabels)
	colOf := make(map[int]int, k)
	for ci, class := range rf.ClassLabels {
		colOf[class] = ci
	}

	acc := mat.NewDense(n, k, nil)
	for _, dt := range rf.Trees {
		treeProba, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		// Bootstrap trees may have seen a subset of the classes; map
		// their columns onto the forest's label order.
		treeClasses := dt.Classes()
		for i := 0; i < n; i++ {
			for tc, class := range treeClasses {
				col := colOf[class]
				acc.Set(i, col, acc.At(i, col)+treeProba.At(i, tc))
			}
		}
	}

	inv := 1.0 / float64(len(rf.Trees))
	acc.Scale(inv, acc)
	return acc, nil
}

// Score returns mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Score")
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}

	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("RandomForestClassifier.Score", n, ny, 0)
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
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.ClassLabels...)
}

// FeatureImportances returns tree-averaged impurity importances,
// normalized to sum to 1.
func (rf *RandomForestClassifier) FeatureImportances() ([]float64, error) {
	if !rf.State.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "FeatureImportances")
	}
	return append([]float64(nil), rf.Importances...), nil
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestClassifier) IsFitted() bool {
	return rf.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"criterion":         rf.criterion,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
	}
}

// SetParams applies hyperparameters by sklearn name.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "n_estimators must be an integer")
			}
			rf.nEstimators = n
		case "max_depth":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "max_depth must be an integer")
			}
			rf.maxDepth = n
		case "min_samples_split":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "min_samples_split must be an integer")
			}
			rf.minSamplesSplit = n
		case "min_samples_leaf":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "min_samples_leaf must be an integer")
			}
			rf.minSamplesLeaf = n
		case "max_features":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "max_features must be a string")
			}
			rf.maxFeatures = s
		case "criterion":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "criterion must be a string")
			}
			rf.criterion = s
		case "bootstrap":
			b, ok := model.BoolParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "bootstrap must be a bool")
			}
			rf.bootstrap = b
		case "random_state":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("RandomForestClassifier.SetParams", "random_state must be an integer")
			}
			rf.randomState = int64(n)
		default:
			return errors.NewValueError("RandomForestClassifier.SetParams", "unknown parameter: "+key)
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
