package selection

import "testing"

func TestStratifiedKFoldSplit(t *testing.T) {
	// Three classes with ten samples each.
	labels := make([]int, 30)
	for i := range labels {
		labels[i] = i / 10
	}

	folds, err := NewStratifiedKFold(5, 42).Split(labels)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(folds) != 5 {
		t.Fatalf("len(folds) = %d, want 5", len(folds))
	}

	valCount := make(map[int]int)
	for f, fold := range folds {
		if len(fold.Train)+len(fold.Val) != len(labels) {
			t.Errorf("fold %d: train %d + val %d != %d", f, len(fold.Train), len(fold.Val), len(labels))
		}

		// Every class appears in every validation fold.
		classCounts := countByClass(labels, fold.Val)
		for class := 0; class < 3; class++ {
			if classCounts[class] != 2 {
				t.Errorf("fold %d class %d: val count = %d, want 2", f, class, classCounts[class])
			}
		}

		inVal := make(map[int]bool, len(fold.Val))
		for _, i := range fold.Val {
			inVal[i] = true
			valCount[i]++
		}
		for _, i := range fold.Train {
			if inVal[i] {
				t.Fatalf("fold %d: index %d in both train and val", f, i)
			}
		}
	}

	// Each index validates exactly once across folds.
	for i := range labels {
		if valCount[i] != 1 {
			t.Errorf("index %d appears in %d validation folds, want 1", i, valCount[i])
		}
	}
}

func TestStratifiedKFoldDeterminism(t *testing.T) {
	labels := threeClassLabels()

	folds1, err := NewStratifiedKFold(4, 11).Split(labels)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	folds2, err := NewStratifiedKFold(4, 11).Split(labels)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	for f := range folds1 {
		if !equalInts(folds1[f].Val, folds2[f].Val) {
			t.Fatalf("fold %d differs across runs with the same seed", f)
		}
	}
}

func TestStratifiedKFoldErrors(t *testing.T) {
	labels := threeClassLabels()

	if _, err := NewStratifiedKFold(1, 1).Split(labels); err == nil {
		t.Error("k=1 accepted")
	}
	if _, err := NewStratifiedKFold(5, 1).Split([]int{0, 1}); err == nil {
		t.Error("fewer samples than folds accepted")
	}
	// Class 1 has only three members but k is 4.
	small := []int{0, 0, 0, 0, 0, 1, 1, 1}
	if _, err := NewStratifiedKFold(4, 1).Split(small); err == nil {
		t.Error("class smaller than k accepted")
	}
}
