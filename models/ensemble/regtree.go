package ensemble

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// RegNode is a node of the regression trees grown during boosting.
// Leaves hold the already-shrunk Newton step for their samples, so a
// saved ensemble predicts from tree structure alone. Exported for gob
// encoding.
type RegNode struct {
	IsLeaf    bool
	Feature   int
	Threshold float64
	Left      *RegNode
	Right     *RegNode
	Value     float64
}

// regTreeParams bundles the growth limits shared by every boosting tree.
type regTreeParams struct {
	maxDepth       int
	minSamplesLeaf int
	minGain        float64
	lambda         float64 // L2 regularization on leaf values
	shrinkage      float64 // learning rate folded into leaf values

	// featureGain accumulates split gain per feature across all trees
	// of the ensemble; may be nil.
	featureGain []float64
}

// fitRegTree grows a regression tree on per-sample gradient and hessian
// statistics. Splits maximize the standard second-order gain
//
//	G_L^2/(H_L+lambda) + G_R^2/(H_R+lambda) - G^2/(H+lambda)
//
// and each leaf outputs -shrinkage*G/(H+lambda).
func fitRegTree(X *mat.Dense, grad, hess []float64, idx []int, p regTreeParams, depth int) *RegNode {
	var sumG, sumH float64
	for _, i := range idx {
		sumG += grad[i]
		sumH += hess[i]
	}

	node := &RegNode{Value: -p.shrinkage * sumG / (sumH + p.lambda)}

	if (p.maxDepth > 0 && depth >= p.maxDepth) || len(idx) < 2*p.minSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	feature, threshold, gain := bestRegSplit(X, grad, hess, idx, sumG, sumH, p)
	if feature == -1 || gain <= p.minGain {
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
	if len(leftIdx) < p.minSamplesLeaf || len(rightIdx) < p.minSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	if p.featureGain != nil {
		p.featureGain[feature] += gain
	}

	node.Feature = feature
	node.Threshold = threshold
	node.Left = fitRegTree(X, grad, hess, leftIdx, p, depth+1)
	node.Right = fitRegTree(X, grad, hess, rightIdx, p, depth+1)
	return node
}

// bestRegSplit sweeps each feature in sorted order, moving one sample at
// a time into the left partition.
func bestRegSplit(X *mat.Dense, grad, hess []float64, idx []int, sumG, sumH float64, p regTreeParams) (int, float64, float64) {
	n := len(idx)
	_, d := X.Dims()

	parentScore := sumG * sumG / (sumH + p.lambda)
	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	order := make([]int, n)
	for feature := 0; feature < d; feature++ {
		copy(order, idx)
		sort.Slice(order, func(a, b int) bool {
			return X.At(order[a], feature) < X.At(order[b], feature)
		})

		var gL, hL float64
		for t := 0; t < n-1; t++ {
			gL += grad[order[t]]
			hL += hess[order[t]]

			v, next := X.At(order[t], feature), X.At(order[t+1], feature)
			if v == next {
				continue
			}

			nLeft, nRight := t+1, n-t-1
			if nLeft < p.minSamplesLeaf || nRight < p.minSamplesLeaf {
				continue
			}

			gR, hR := sumG-gL, sumH-hL
			gain := gL*gL/(hL+p.lambda) + gR*gR/(hR+p.lambda) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (v + next) / 2.0
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// predictRegTree walks one sample down to its leaf value.
func predictRegTree(node *RegNode, X mat.Matrix, row int) float64 {
	for !node.IsLeaf {
		if X.At(row, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}
