package ensemble

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// GradientBoostingClassifier fits an additive model of small regression
// trees to the softmax cross-entropy loss. Every round grows one tree
// per class on the current gradients and hessians; leaf values are
// Newton steps shrunk by the learning rate.
type GradientBoostingClassifier struct {
	State *model.StateManager // Public for gob encoding

	Trees       [][]*RegNode // Trees[round][classIndex]
	InitScores  []float64    // log class priors
	ClassLabels []int
	NFeatures   int
	Importances []float64 // split-gain importances, normalized
	TrainLoss   []float64 // mean log loss after each round

	// Hyperparameters.
	nEstimators    int
	learningRate   float64
	maxDepth       int
	minSamplesLeaf int
	subsample      float64 // row fraction per round, (0, 1]
	lambda         float64 // L2 on leaf values
	randomState    int64

	logger log.Logger
}

// GradientBoostingOption configures a GradientBoostingClassifier.
type GradientBoostingOption func(*GradientBoostingClassifier)

// WithGBEstimators sets the number of boosting rounds (default 100).
func WithGBEstimators(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.nEstimators = n }
}

// WithGBLearningRate sets the shrinkage applied to every tree
// (default 0.1).
func WithGBLearningRate(lr float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.learningRate = lr }
}

// WithGBMaxDepth sets the depth of the per-round trees (default 3).
func WithGBMaxDepth(depth int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.maxDepth = depth }
}

// WithGBMinSamplesLeaf sets the minimum leaf size (default 1).
func WithGBMinSamplesLeaf(n int) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.minSamplesLeaf = n }
}

// WithGBSubsample sets the fraction of rows drawn (without
// replacement) for each round (default 1.0, meaning all rows).
func WithGBSubsample(fraction float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.subsample = fraction }
}

// WithGBLambda sets the L2 regularization on leaf values (default 1.0).
func WithGBLambda(lambda float64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.lambda = lambda }
}

// WithGBRandomState seeds the row subsampling.
func WithGBRandomState(seed int64) GradientBoostingOption {
	return func(gb *GradientBoostingClassifier) { gb.randomState = seed }
}

// NewGradientBoostingClassifier returns an untrained boosting model.
func NewGradientBoostingClassifier(opts ...GradientBoostingOption) *GradientBoostingClassifier {
	gb := &GradientBoostingClassifier{
		State:          model.NewStateManager(),
		nEstimators:    100,
		learningRate:   0.1,
		maxDepth:       3,
		minSamplesLeaf: 1,
		subsample:      1.0,
		lambda:         1.0,
	}
	for _, opt := range opts {
		opt(gb)
	}
	gb.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "GradientBoostingClassifier",
		log.ComponentKey, "ensemble",
	)
	return gb
}

// Fit runs nEstimators boosting rounds on X and y.
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("GradientBoostingClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("GradientBoostingClassifier.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "y must be a column vector")
	}
	if gb.nEstimators < 1 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "n_estimators must be at least 1")
	}
	if gb.learningRate <= 0 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "learning_rate must be positive")
	}
	if gb.subsample <= 0 || gb.subsample > 1 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "subsample must be in (0, 1]")
	}

	gb.ClassLabels = extractClasses(y)
	k := len(gb.ClassLabels)
	if k < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "need at least two classes")
	}
	gb.NFeatures = d

	if gb.logger != nil {
		gb.logger.Info("Training started",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, k,
			"n_estimators", gb.nEstimators,
		)
	}

	xD := mat.DenseCopyOf(X)

	classIdx := make(map[int]int, k)
	for ci, class := range gb.ClassLabels {
		classIdx[class] = ci
	}
	yIdx := make([]int, n)
	for i := 0; i < n; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	// Initial scores are the log class priors.
	gb.InitScores = make([]float64, k)
	counts := make([]float64, k)
	for _, ci := range yIdx {
		counts[ci]++
	}
	for ci := 0; ci < k; ci++ {
		p := counts[ci] / float64(n)
		if p <= 0 {
			p = 1.0 / float64(n)
		}
		gb.InitScores[ci] = math.Log(p)
	}

	// F holds the running scores, one row per sample.
	F := make([][]float64, n)
	for i := range F {
		F[i] = make([]float64, k)
		copy(F[i], gb.InitScores)
	}

	rng := rand.New(rand.NewPCG(uint64(gb.randomState), uint64(gb.randomState)^0x9e3779b97f4a7c15))
	gb.Importances = make([]float64, d)
	gb.Trees = make([][]*RegNode, 0, gb.nEstimators)
	gb.TrainLoss = make([]float64, 0, gb.nEstimators)

	prob := make([]float64, k)
	grad := make([]float64, n)
	hess := make([]float64, n)
	probs := mat.NewDense(n, k, nil)

	params := regTreeParams{
		maxDepth:       gb.maxDepth,
		minSamplesLeaf: gb.minSamplesLeaf,
		lambda:         gb.lambda,
		shrinkage:      gb.learningRate,
		featureGain:    gb.Importances,
	}

	for round := 0; round < gb.nEstimators; round++ {
		// Current probabilities and loss.
		loss := 0.0
		for i := 0; i < n; i++ {
			copy(prob, F[i])
			softmaxInPlace(prob)
			for ci := 0; ci < k; ci++ {
				probs.Set(i, ci, prob[ci])
			}
			p := prob[yIdx[i]]
			if p < 1e-15 {
				p = 1e-15
			}
			loss -= math.Log(p)
		}
		gb.TrainLoss = append(gb.TrainLoss, loss/float64(n))

		idx := gb.sampleRows(n, rng)

		roundTrees := make([]*RegNode, k)
		for ci := 0; ci < k; ci++ {
			for i := 0; i < n; i++ {
				p := probs.At(i, ci)
				target := 0.0
				if yIdx[i] == ci {
					target = 1.0
				}
				grad[i] = p - target
				h := p * (1 - p)
				if h < 1e-10 {
					h = 1e-10
				}
				hess[i] = h
			}
			roundTrees[ci] = fitRegTree(xD, grad, hess, idx, params, 0)
		}
		gb.Trees = append(gb.Trees, roundTrees)

		// Update scores on the full training set. Leaf values already
		// carry the learning rate.
		for i := 0; i < n; i++ {
			for ci := 0; ci < k; ci++ {
				F[i][ci] += predictRegTree(roundTrees[ci], xD, i)
			}
		}
	}

	gb.normalizeImportances()
	gb.State.SetFitted()
	gb.State.SetDimensions(d, n)

	if gb.logger != nil {
		gb.logger.Info("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// sampleRows draws ceil(subsample*n) distinct rows, or all rows when
// subsample is 1.
func (gb *GradientBoostingClassifier) sampleRows(n int, rng *rand.Rand) []int {
	if gb.subsample >= 1.0 {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	m := int(math.Ceil(gb.subsample * float64(n)))
	return rng.Perm(n)[:m]
}

func (gb *GradientBoostingClassifier) normalizeImportances() {
	sum := 0.0
	for _, v := range gb.Importances {
		sum += v
	}
	if sum > 0 {
		for i := range gb.Importances {
			gb.Importances[i] /= sum
		}
	}
}

// scoresFor computes the boosted scores for every row of X.
func (gb *GradientBoostingClassifier) scoresFor(X mat.Matrix) [][]float64 {
	n, _ := X.Dims()
	k := len(gb.ClassLabels)

	scores := make([][]float64, n)
	for i := 0; i < n; i++ {
		scores[i] = make([]float64, k)
		copy(scores[i], gb.InitScores)
	}
	for _, roundTrees := range gb.Trees {
		for ci, tree := range roundTrees {
			for i := 0; i < n; i++ {
				scores[i][ci] += predictRegTree(tree, X, i)
			}
		}
	}
	return scores
}

// Predict returns the class with the highest boosted score per row.
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Predict")
	if !gb.State.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "Predict")
	}

	n, d := X.Dims()
	if d != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.Predict", gb.NFeatures, d, 1)
	}

	scores := gb.scoresFor(X)
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for ci := 1; ci < len(scores[i]); ci++ {
			if scores[i][ci] > scores[i][best] {
				best = ci
			}
		}
		pred.Set(i, 0, float64(gb.ClassLabels[best]))
	}
	return pred, nil
}

// PredictProba returns softmax probabilities of the boosted scores.
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.PredictProba")
	if !gb.State.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "PredictProba")
	}

	n, d := X.Dims()
	if d != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingClassifier.PredictProba", gb.NFeatures, d, 1)
	}

	scores := gb.scoresFor(X)
	k := len(gb.ClassLabels)
	proba := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		softmaxInPlace(scores[i])
		for ci := 0; ci < k; ci++ {
			proba.Set(i, ci, scores[i][ci])
		}
	}
	return proba, nil
}

// Score returns mean accuracy on the given data.
func (gb *GradientBoostingClassifier) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Score")
	pred, err := gb.Predict(X)
	if err != nil {
		return 0, err
	}

	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("GradientBoostingClassifier.Score", n, ny, 0)
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
func (gb *GradientBoostingClassifier) Classes() []int {
	return append([]int(nil), gb.ClassLabels...)
}

// FeatureImportances returns normalized split-gain importances.
func (gb *GradientBoostingClassifier) FeatureImportances() ([]float64, error) {
	if !gb.State.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "FeatureImportances")
	}
	return append([]float64(nil), gb.Importances...), nil
}

// IsFitted reports whether Fit has completed.
func (gb *GradientBoostingClassifier) IsFitted() bool {
	return gb.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (gb *GradientBoostingClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     gb.nEstimators,
		"learning_rate":    gb.learningRate,
		"max_depth":        gb.maxDepth,
		"min_samples_leaf": gb.minSamplesLeaf,
		"subsample":        gb.subsample,
		"lambda":           gb.lambda,
		"random_state":     gb.randomState,
	}
}

// SetParams applies hyperparameters by sklearn name.
func (gb *GradientBoostingClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "n_estimators":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "n_estimators must be an integer")
			}
			gb.nEstimators = n
		case "learning_rate":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "learning_rate must be a number")
			}
			gb.learningRate = f
		case "max_depth":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "max_depth must be an integer")
			}
			gb.maxDepth = n
		case "min_samples_leaf":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "min_samples_leaf must be an integer")
			}
			gb.minSamplesLeaf = n
		case "subsample":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "subsample must be a number")
			}
			gb.subsample = f
		case "lambda":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "lambda must be a number")
			}
			gb.lambda = f
		case "random_state":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("GradientBoostingClassifier.SetParams", "random_state must be an integer")
			}
			gb.randomState = int64(n)
		default:
			return errors.NewValueError("GradientBoostingClassifier.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}

// softmaxInPlace overwrites z with softmax(z).
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
