package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/pkg/errors"
)

// TakeRows copies the rows of m at idx, in idx order, into a new matrix.
// The fold and bootstrap machinery is built on this.
func TakeRows(m mat.Matrix, idx []int) (*mat.Dense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("TakeRows", "empty matrix", errors.ErrEmptyData)
	}

	out := mat.NewDense(len(idx), c, nil)
	for j, i := range idx {
		if i < 0 || i >= r {
			return nil, errors.NewValueError("TakeRows", "row index out of range")
		}
		for k := 0; k < c; k++ {
			out.Set(j, k, m.At(i, k))
		}
	}
	return out, nil
}

// TakeLabels copies the labels at idx, in idx order. It pairs with
// TakeRows when carving folds out of a training partition.
func TakeLabels(labels []int, idx []int) ([]int, error) {
	out := make([]int, len(idx))
	for j, i := range idx {
		if i < 0 || i >= len(labels) {
			return nil, errors.NewValueError("TakeLabels", "label index out of range")
		}
		out[j] = labels[i]
	}
	return out, nil
}

// LabelsToMatrix converts integer class labels to the (n x 1) float matrix
// form estimators consume.
func LabelsToMatrix(labels []int) *mat.Dense {
	y := mat.NewDense(len(labels), 1, nil)
	for i, c := range labels {
		y.Set(i, 0, float64(c))
	}
	return y
}

// MatrixToLabels converts an (n x 1) label matrix back to integer labels.
func MatrixToLabels(y mat.Matrix) ([]int, error) {
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewValueError("MatrixToLabels", "y must be a column vector")
	}
	out := make([]int, r)
	for i := 0; i < r; i++ {
		out[i] = int(y.At(i, 0))
	}
	return out, nil
}
