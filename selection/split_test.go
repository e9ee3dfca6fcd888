package selection

import (
	"testing"
)

// threeClassLabels builds labels with class sizes 40, 40, and 20.
func threeClassLabels() []int {
	labels := make([]int, 100)
	for i := 0; i < 40; i++ {
		labels[i] = 0
	}
	for i := 40; i < 80; i++ {
		labels[i] = 1
	}
	for i := 80; i < 100; i++ {
		labels[i] = 2
	}
	return labels
}

func countByClass(labels []int, idx []int) map[int]int {
	counts := make(map[int]int)
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

func TestTrainTestSplitStratified(t *testing.T) {
	labels := threeClassLabels()

	train, test, err := TrainTestSplit(labels, 0.25, 42)
	if err != nil {
		t.Fatalf("TrainTestSplit failed: %v", err)
	}
	if len(train)+len(test) != len(labels) {
		t.Fatalf("train %d + test %d != %d", len(train), len(test), len(labels))
	}

	testCounts := countByClass(labels, test)
	want := map[int]int{0: 10, 1: 10, 2: 5}
	for class, n := range want {
		if testCounts[class] != n {
			t.Errorf("class %d test count = %d, want %d", class, testCounts[class], n)
		}
	}

	seen := make(map[int]bool, len(labels))
	for _, i := range train {
		seen[i] = true
	}
	for _, i := range test {
		if seen[i] {
			t.Fatalf("index %d appears in both train and test", i)
		}
		seen[i] = true
	}
	if len(seen) != len(labels) {
		t.Errorf("split covers %d indices, want %d", len(seen), len(labels))
	}
}

func TestTrainTestSplitDeterminism(t *testing.T) {
	labels := threeClassLabels()

	train1, test1, err := TrainTestSplit(labels, 0.25, 7)
	if err != nil {
		t.Fatalf("TrainTestSplit failed: %v", err)
	}
	train2, test2, err := TrainTestSplit(labels, 0.25, 7)
	if err != nil {
		t.Fatalf("TrainTestSplit failed: %v", err)
	}
	if !equalInts(train1, train2) || !equalInts(test1, test2) {
		t.Error("same seed produced different splits")
	}

	_, test3, err := TrainTestSplit(labels, 0.25, 8)
	if err != nil {
		t.Fatalf("TrainTestSplit failed: %v", err)
	}
	if equalInts(test1, test3) {
		t.Error("different seeds produced identical test sets")
	}
}

func TestTrainTestSplitErrors(t *testing.T) {
	labels := threeClassLabels()

	if _, _, err := TrainTestSplit(nil, 0.25, 1); err == nil {
		t.Error("empty labels accepted")
	}
	if _, _, err := TrainTestSplit(labels, 0, 1); err == nil {
		t.Error("zero test fraction accepted")
	}
	if _, _, err := TrainTestSplit(labels, 1, 1); err == nil {
		t.Error("test fraction of 1 accepted")
	}
	if _, _, err := TrainTestSplit([]int{0, 0, 1}, 0.25, 1); err == nil {
		t.Error("singleton class accepted")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
