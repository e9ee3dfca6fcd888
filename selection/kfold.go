package selection

import (
	"math/rand/v2"
	"sort"

	"github.com/airsift/airsift/pkg/errors"
)

// Fold is one cross-validation split: the model trains on Train and is
// scored on Val.
type Fold struct {
	Train []int
	Val   []int
}

// StratifiedKFold produces K folds in which every class appears in each
// validation set in roughly its overall proportion.
type StratifiedKFold struct {
	K    int
	Seed uint64
}

// NewStratifiedKFold returns a splitter with k folds.
func NewStratifiedKFold(k int, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{K: k, Seed: seed}
}

// Split assigns every index to exactly one validation fold. Classes are
// shuffled independently and dealt round-robin across folds, so each
// fold sees each class.
func (s *StratifiedKFold) Split(labels []int) ([]Fold, error) {
	if s.K < 2 {
		return nil, errors.NewValueError("StratifiedKFold.Split", "k must be at least 2")
	}
	if len(labels) < s.K {
		return nil, errors.NewValueError("StratifiedKFold.Split", "fewer samples than folds")
	}

	byClass := groupByClass(labels)
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	valSets := make([][]int, s.K)
	for _, class := range sortedClasses(byClass) {
		idx := byClass[class]
		if len(idx) < s.K {
			return nil, errors.NewValueError("StratifiedKFold.Split",
				"every class needs at least k samples")
		}
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		for i, row := range idx {
			f := i % s.K
			valSets[f] = append(valSets[f], row)
		}
	}

	folds := make([]Fold, s.K)
	for f := 0; f < s.K; f++ {
		val := valSets[f]
		sort.Ints(val)

		inVal := make(map[int]struct{}, len(val))
		for _, row := range val {
			inVal[row] = struct{}{}
		}
		train := make([]int, 0, len(labels)-len(val))
		for i := range labels {
			if _, ok := inVal[i]; !ok {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Val: val}
	}
	return folds, nil
}
