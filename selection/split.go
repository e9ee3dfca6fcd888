// Package selection provides stratified data splitting, k-fold cross
// validation, and parallel grid search over hyperparameter grids.
package selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/airsift/airsift/pkg/errors"
)

// TrainTestSplit partitions row indices into a train and a test set,
// stratified so every class keeps the same test fraction. Indices are
// returned sorted.
func TrainTestSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if len(labels) == 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "labels must not be empty")
	}
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit", "test fraction must be in (0, 1)")
	}

	byClass := groupByClass(labels)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	for _, class := range sortedClasses(byClass) {
		idx := byClass[class]
		if len(idx) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				"every class needs at least two samples to stratify")
		}
		rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})

		nTest := int(math.Round(testFraction * float64(len(idx))))
		if nTest < 1 {
			nTest = 1
		}
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func groupByClass(labels []int) map[int][]int {
	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	return byClass
}

func sortedClasses(byClass map[int][]int) []int {
	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes
}
