package eda

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestACFLagZeroIsOne(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3}
	acf, err := ACF(values, 5)
	require.NoError(t, err)
	require.Len(t, acf, 6)
	assert.InDelta(t, 1.0, acf[0], 1e-12)
}

func TestACFPeriodicSignal(t *testing.T) {
	// A period-4 sine correlates positively at lag 4 and negatively at
	// lag 2.
	n := 200
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Sin(2 * math.Pi * float64(i) / 4)
	}

	acf, err := ACF(values, 8)
	require.NoError(t, err)
	assert.Greater(t, acf[4], 0.9)
	assert.Less(t, acf[2], -0.9)
	assert.Greater(t, acf[8], 0.9)
}

func TestACFClampsMaxLag(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	acf, err := ACF(values, 50)
	require.NoError(t, err)
	assert.Len(t, acf, 5)
}

func TestACFErrors(t *testing.T) {
	_, err := ACF(nil, 3)
	require.Error(t, err, "empty series")

	_, err = ACF([]float64{2, 2, 2, 2}, 2)
	require.Error(t, err, "zero variance")

	_, err = ACF([]float64{1, 2, 3}, -1)
	require.Error(t, err, "negative maxLag")
}
