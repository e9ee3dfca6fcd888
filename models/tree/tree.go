// Package tree implements a CART decision tree classifier with gini and
// entropy split criteria. Per-split feature subsampling (max_features)
// makes the same tree usable standalone and as the base learner of the
// random forest in models/ensemble.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// Node is a single tree node. Leaves carry class counts; internal nodes
// carry the split. Exported for gob encoding.
type Node struct {
	IsLeaf       bool
	Feature      int     // split feature (internal nodes)
	Threshold    float64 // split threshold; <= goes left
	Left         *Node
	Right        *Node
	ClassCounts  []int // samples per class index at this node
	PredictClass int   // majority class index
	Impurity     float64
	NSamples     int
	Depth        int
}

// DecisionTreeClassifier is a CART classifier.
type DecisionTreeClassifier struct {
	State *model.StateManager // Public for gob encoding

	// Fitted tree.
	Root        *Node
	ClassLabels []int
	NumClasses  int
	NFeatures   int
	Importances []float64 // impurity-based, normalized to sum to 1

	// Hyperparameters.
	criterion           string // "gini" or "entropy"
	maxDepth            int    // <= 0 means unlimited
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         string // "all", "sqrt", "log2"
	minImpurityDecrease float64
	randomState         int64

	rng    *rand.Rand // split-feature sampling; rebuilt each Fit
	logger log.Logger
}

// DecisionTreeClassifierOption configures a DecisionTreeClassifier.
type DecisionTreeClassifierOption func(*DecisionTreeClassifier)

// WithCriterion sets the splitting criterion: "gini" (default) or
// "entropy".
func WithCriterion(criterion string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth sets the depth cap. Values <= 0 grow the tree until the
// leaves are pure or too small to split.
func WithMaxDepth(depth int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum node size eligible for a split
// (default 2).
func WithMinSamplesSplit(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples each child must keep
// (default 1).
func WithMinSamplesLeaf(n int) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features each split considers: "all"
// (default), "sqrt", or "log2".
func WithMaxFeatures(mf string) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = mf }
}

// WithMinImpurityDecrease sets the smallest impurity decrease a split
// must achieve (default 0).
func WithMinImpurityDecrease(d float64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.minImpurityDecrease = d }
}

// WithDTRandomState seeds the feature subsampling used when
// max_features is not "all".
func WithDTRandomState(seed int64) DecisionTreeClassifierOption {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// NewDecisionTreeClassifier returns an untrained CART classifier.
func NewDecisionTreeClassifier(opts ...DecisionTreeClassifierOption) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		State:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "all",
	}
	for _, opt := range opts {
		opt(dt)
	}
	dt.logger = log.GetLoggerWithName("models").With(
		log.ModelNameKey, "DecisionTreeClassifier",
		log.ComponentKey, "tree",
	)
	return dt
}

// Fit grows the tree on X (n_samples x n_features) and y, a column
// vector of integer class labels.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	start := time.Now()
	n, d := X.Dims()
	ry, cy := y.Dims()

	if n == 0 || d == 0 {
		return errors.NewModelError("DecisionTreeClassifier.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != n {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", n, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "y must be a column vector")
	}
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "criterion must be gini or entropy")
	}
	switch dt.maxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return errors.NewValueError("DecisionTreeClassifier.Fit", "max_features must be all, sqrt, or log2")
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "min_samples_split must be at least 2")
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "min_samples_leaf must be at least 1")
	}

	dt.extractClasses(y)
	dt.NFeatures = d
	dt.Importances = make([]float64, d)
	dt.rng = rand.New(rand.NewPCG(uint64(dt.randomState), uint64(dt.randomState)))

	xD := mat.DenseCopyOf(X)

	classIdx := make(map[int]int, dt.NumClasses)
	for ci, class := range dt.ClassLabels {
		classIdx[class] = ci
	}
	yIdx := make([]int, n)
	for i := 0; i < n; i++ {
		yIdx[i] = classIdx[int(y.At(i, 0))]
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	dt.Root = dt.buildTree(xD, yIdx, idx, 0)
	dt.normalizeImportances()

	dt.State.SetFitted()
	dt.State.SetDimensions(d, n)

	if dt.logger != nil {
		dt.logger.Debug("Training completed",
			log.OperationKey, log.OperationFit,
			log.PhaseKey, log.PhaseTraining,
			log.SamplesKey, n,
			log.FeaturesKey, d,
			log.ClassesKey, dt.NumClasses,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

func (dt *DecisionTreeClassifier) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = struct{}{}
	}
	dt.ClassLabels = make([]int, 0, len(seen))
	for class := range seen {
		dt.ClassLabels = append(dt.ClassLabels, class)
	}
	sort.Ints(dt.ClassLabels)
	dt.NumClasses = len(dt.ClassLabels)
}

// buildTree grows the subtree over the samples selected by idx.
func (dt *DecisionTreeClassifier) buildTree(X *mat.Dense, yIdx, idx []int, depth int) *Node {
	classCounts := make([]int, dt.NumClasses)
	for _, i := range idx {
		classCounts[yIdx[i]]++
	}

	maxCount, predictClass := 0, 0
	for ci, count := range classCounts {
		if count > maxCount {
			maxCount = count
			predictClass = ci
		}
	}

	impurity := dt.calculateImpurity(classCounts, len(idx))
	node := &Node{
		ClassCounts:  classCounts,
		PredictClass: predictClass,
		Impurity:     impurity,
		NSamples:     len(idx),
		Depth:        depth,
	}

	if dt.shouldStop(len(idx), impurity, depth) {
		node.IsLeaf = true
		return node
	}

	feature, threshold, decrease := dt.findBestSplit(X, yIdx, idx, classCounts, impurity)
	if feature == -1 || decrease < dt.minImpurityDecrease {
		node.IsLeaf = true
		return node
	}

	var leftIdx, rightIdx []int
	for _, i := range idx {
		if X.At(i, feature) <= threshold {
			leftIdx = append(leftIdx, i)
		} else {
			rightIdx = append(rightIdx, i)
		}
	}
	if len(leftIdx) < dt.minSamplesLeaf || len(rightIdx) < dt.minSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.Feature = feature
	node.Threshold = threshold
	dt.Importances[feature] += decrease * float64(len(idx))

	node.Left = dt.buildTree(X, yIdx, leftIdx, depth+1)
	node.Right = dt.buildTree(X, yIdx, rightIdx, depth+1)
	return node
}

func (dt *DecisionTreeClassifier) shouldStop(nSamples int, impurity float64, depth int) bool {
	if dt.maxDepth > 0 && depth >= dt.maxDepth {
		return true
	}
	if nSamples < dt.minSamplesSplit {
		return true
	}
	return impurity == 0.0
}

// calculateImpurity computes gini or entropy from class counts.
func (dt *DecisionTreeClassifier) calculateImpurity(classCounts []int, total int) float64 {
	if total == 0 {
		return 0.0
	}

	if dt.criterion == "entropy" {
		entropy := 0.0
		for _, count := range classCounts {
			if count > 0 {
				p := float64(count) / float64(total)
				entropy -= p * math.Log2(p)
			}
		}
		return entropy
	}

	// gini: 1 - sum(p_i^2)
	sumSquared := 0.0
	for _, count := range classCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			sumSquared += p * p
		}
	}
	return 1.0 - sumSquared
}

// splitFeatures returns the feature indices considered at one split.
func (dt *DecisionTreeClassifier) splitFeatures() []int {
	k := dt.NFeatures
	switch dt.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(dt.NFeatures)))
	case "log2":
		k = int(math.Log2(float64(dt.NFeatures)))
	}
	if k < 1 {
		k = 1
	}
	if k >= dt.NFeatures {
		features := make([]int, dt.NFeatures)
		for i := range features {
			features[i] = i
		}
		return features
	}
	return dt.rng.Perm(dt.NFeatures)[:k]
}

// findBestSplit scans the candidate features with a sorted sweep: each
// sample moves from the right partition to the left and thresholds are
// evaluated between distinct adjacent values. A zero-decrease split is
// still returned when nothing better exists; children may separate
// classes the parent cannot (XOR-like layouts).
func (dt *DecisionTreeClassifier) findBestSplit(X *mat.Dense, yIdx, idx []int, parentCounts []int, parentImpurity float64) (int, float64, float64) {
	n := len(idx)
	bestFeature := -1
	bestThreshold := 0.0
	bestDecrease := math.Inf(-1)

	order := make([]int, n)
	leftCounts := make([]int, dt.NumClasses)
	rightCounts := make([]int, dt.NumClasses)

	for _, feature := range dt.splitFeatures() {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return X.At(order[a], feature) < X.At(order[b], feature)
		})

		for ci := range leftCounts {
			leftCounts[ci] = 0
			rightCounts[ci] = parentCounts[ci]
		}

		for t := 0; t < n-1; t++ {
			ci := yIdx[order[t]]
			leftCounts[ci]++
			rightCounts[ci]--

			v, next := X.At(order[t], feature), X.At(order[t+1], feature)
			if v == next {
				continue
			}

			nLeft, nRight := t+1, n-t-1
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}

			weighted := (float64(nLeft)*dt.calculateImpurity(leftCounts, nLeft) +
				float64(nRight)*dt.calculateImpurity(rightCounts, nRight)) / float64(n)
			decrease := parentImpurity - weighted

			if decrease > bestDecrease {
				bestDecrease = decrease
				bestFeature = feature
				bestThreshold = (v + next) / 2.0
			}
		}
	}

	return bestFeature, bestThreshold, bestDecrease
}

func (dt *DecisionTreeClassifier) normalizeImportances() {
	sum := 0.0
	for _, imp := range dt.Importances {
		sum += imp
	}
	if sum > 0 {
		for i := range dt.Importances {
			dt.Importances[i] /= sum
		}
	}
}

// leafFor walks a sample down to its leaf.
func (dt *DecisionTreeClassifier) leafFor(X mat.Matrix, row int) *Node {
	node := dt.Root
	for !node.IsLeaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// Predict returns the majority-class label of the leaf each row lands in.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Predict")
	if !dt.State.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "Predict")
	}

	n, d := X.Dims()
	if d != dt.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.Predict", dt.NFeatures, d, 1)
	}

	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		leaf := dt.leafFor(X, i)
		pred.Set(i, 0, float64(dt.ClassLabels[leaf.PredictClass]))
	}
	return pred, nil
}

// PredictProba returns leaf class frequencies of shape
// (n_samples, n_classes).
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.PredictProba")
	if !dt.State.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "PredictProba")
	}

	n, d := X.Dims()
	if d != dt.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeClassifier.PredictProba", dt.NFeatures, d, 1)
	}

	proba := mat.NewDense(n, dt.NumClasses, nil)
	for i := 0; i < n; i++ {
		leaf := dt.leafFor(X, i)
		total := 0
		for _, count := range leaf.ClassCounts {
			total += count
		}
		if total == 0 {
			continue
		}
		for ci := 0; ci < dt.NumClasses; ci++ {
			proba.Set(i, ci, float64(leaf.ClassCounts[ci])/float64(total))
		}
	}
	return proba, nil
}

// Score returns mean accuracy on the given data.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (_ float64, err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Score")
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}

	n, _ := pred.Dims()
	ny, _ := y.Dims()
	if ny != n {
		return 0, errors.NewDimensionError("DecisionTreeClassifier.Score", n, ny, 0)
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
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.ClassLabels...)
}

// FeatureImportances returns normalized impurity-based importances.
func (dt *DecisionTreeClassifier) FeatureImportances() ([]float64, error) {
	if !dt.State.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeClassifier", "FeatureImportances")
	}
	return append([]float64(nil), dt.Importances...), nil
}

// TreeDepth returns the depth of the deepest leaf, or 0 before fitting.
func (dt *DecisionTreeClassifier) TreeDepth() int {
	return nodeDepth(dt.Root)
}

func nodeDepth(node *Node) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return node.Depth
	}
	left, right := nodeDepth(node.Left), nodeDepth(node.Right)
	if left > right {
		return left
	}
	return right
}

// LeafCount returns the number of leaves, or 0 before fitting.
func (dt *DecisionTreeClassifier) LeafCount() int {
	return countLeaves(dt.Root)
}

func countLeaves(node *Node) int {
	if node == nil {
		return 0
	}
	if node.IsLeaf {
		return 1
	}
	return countLeaves(node.Left) + countLeaves(node.Right)
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeClassifier) IsFitted() bool {
	return dt.State.IsFitted()
}

// GetParams returns the hyperparameters in sklearn naming.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             dt.criterion,
		"max_depth":             dt.maxDepth,
		"min_samples_split":     dt.minSamplesSplit,
		"min_samples_leaf":      dt.minSamplesLeaf,
		"max_features":          dt.maxFeatures,
		"min_impurity_decrease": dt.minImpurityDecrease,
		"random_state":          dt.randomState,
	}
}

// SetParams applies hyperparameters by sklearn name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "criterion must be a string")
			}
			dt.criterion = s
		case "max_depth":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "max_depth must be an integer")
			}
			dt.maxDepth = n
		case "min_samples_split":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "min_samples_split must be an integer")
			}
			dt.minSamplesSplit = n
		case "min_samples_leaf":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "min_samples_leaf must be an integer")
			}
			dt.minSamplesLeaf = n
		case "max_features":
			s, ok := model.StringParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "max_features must be a string")
			}
			dt.maxFeatures = s
		case "min_impurity_decrease":
			f, ok := model.FloatParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "min_impurity_decrease must be a number")
			}
			dt.minImpurityDecrease = f
		case "random_state":
			n, ok := model.IntParam(value)
			if !ok {
				return errors.NewValueError("DecisionTreeClassifier.SetParams", "random_state must be an integer")
			}
			dt.randomState = int64(n)
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", "unknown parameter: "+key)
		}
	}
	return nil
}
