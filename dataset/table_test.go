package dataset_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsift/airsift/dataset"
)

func loadSample(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.ReadCSVFrom(strings.NewReader(sampleCSV), dataset.Options{})
	require.NoError(t, err)
	return tbl
}

func TestTableSelect(t *testing.T) {
	tbl := loadSample(t)

	sub, err := tbl.Select([]int{2, 0})
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())
	assert.InDelta(t, 38.9, sub.PM25[0], 1e-12)
	assert.InDelta(t, 8.4, sub.PM25[1], 1e-12)
	assert.Equal(t, "CA", sub.StateID[0])

	_, err = tbl.Select([]int{99})
	assert.Error(t, err)
}

func TestNumericMatrix(t *testing.T) {
	tbl := loadSample(t)

	X, err := tbl.NumericMatrix([]string{dataset.ColHour, dataset.ColLat, dataset.ColLon})
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 13.0, X.At(1, 0), 1e-12)
	assert.InDelta(t, 40.71, X.At(0, 1), 1e-12)

	_, err = tbl.NumericMatrix([]string{"bogus"})
	assert.Error(t, err)
}

func TestCategorical(t *testing.T) {
	tbl := loadSample(t)

	cats, err := tbl.Categorical([]string{dataset.ColWeekday})
	require.NoError(t, err)
	require.Len(t, cats, 4)
	assert.Equal(t, []string{"Monday"}, cats[0])
	assert.Equal(t, []string{"Saturday"}, cats[3])

	_, err = tbl.Categorical([]string{"bogus"})
	assert.Error(t, err)
}

func TestStratifiedSample(t *testing.T) {
	labels := make([]int, 0, 90)
	for i := 0; i < 50; i++ {
		labels = append(labels, 0)
	}
	for i := 0; i < 30; i++ {
		labels = append(labels, 1)
	}
	for i := 0; i < 10; i++ {
		labels = append(labels, 2)
	}

	idx, err := dataset.StratifiedSample(labels, 20, 42)
	require.NoError(t, err)

	counts := map[int]int{}
	seen := map[int]bool{}
	for _, i := range idx {
		require.False(t, seen[i], "row %d drawn twice", i)
		seen[i] = true
		counts[labels[i]]++
	}

	assert.Equal(t, 20, counts[0])
	assert.Equal(t, 20, counts[1])
	// Rare class contributes everything it has.
	assert.Equal(t, 10, counts[2])

	// Deterministic under the same seed.
	again, err := dataset.StratifiedSample(labels, 20, 42)
	require.NoError(t, err)
	assert.Equal(t, idx, again)

	other, err := dataset.StratifiedSample(labels, 20, 7)
	require.NoError(t, err)
	assert.NotEqual(t, idx, other)
}

func TestClassCounts(t *testing.T) {
	counts := dataset.ClassCounts([]int{0, 1, 1, 2, 2, 2})
	assert.Equal(t, map[int]int{0: 1, 1: 2, 2: 3}, counts)
}

func TestTakeRowsAndLabels(t *testing.T) {
	tbl := loadSample(t)
	X, err := tbl.NumericMatrix([]string{dataset.ColHour})
	require.NoError(t, err)

	sub, err := dataset.TakeRows(X, []int{3, 1})
	require.NoError(t, err)
	assert.InDelta(t, 22.0, sub.At(0, 0), 1e-12)
	assert.InDelta(t, 13.0, sub.At(1, 0), 1e-12)

	_, err = dataset.TakeRows(X, []int{-1})
	assert.Error(t, err)

	picked, err := dataset.TakeLabels([]int{5, 6, 7, 8}, []int{3, 1})
	require.NoError(t, err)
	assert.Equal(t, []int{8, 6}, picked)

	_, err = dataset.TakeLabels([]int{5, 6}, []int{2})
	assert.Error(t, err)

	y := dataset.LabelsToMatrix([]int{2, 0, 1})
	back, err := dataset.MatrixToLabels(y)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, back)
}
