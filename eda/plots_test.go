package eda

import (
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"
)

func requirePNG(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err, "plot file missing")
	assert.Greater(t, info.Size(), int64(0), "plot file empty")
}

func TestHistogramPNG(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	values := make([]float64, 500)
	for i := range values {
		// Spread across the first three AQI bands so boundary rules
		// are drawn.
		values[i] = math.Abs(rng.NormFloat64()) * 20
	}

	path := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, HistogramPNG(values, 40, path))
	requirePNG(t, path)

	require.Error(t, HistogramPNG(nil, 40, path))
}

func TestTimeSeriesPNG(t *testing.T) {
	days := make([]time.Time, 30)
	means := make([]float64, 30)
	base := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range days {
		days[i] = base.AddDate(0, 0, i)
		means[i] = 10 + 0.3*float64(i)
	}

	path := filepath.Join(t.TempDir(), "series.png")
	require.NoError(t, TimeSeriesPNG(days, means, path))
	requirePNG(t, path)

	require.Error(t, TimeSeriesPNG(days[:1], means[:1], path))
	require.Error(t, TimeSeriesPNG(days, means[:10], path))
}

func TestHeatmapPNG(t *testing.T) {
	means := mat.NewDense(7, 24, nil)
	for r := 0; r < 7; r++ {
		for c := 0; c < 24; c++ {
			means.Set(r, c, float64(r+c))
		}
	}

	path := filepath.Join(t.TempDir(), "heatmap.png")
	require.NoError(t, HeatmapPNG(means, path))
	requirePNG(t, path)
}

func TestSiteMapPNG(t *testing.T) {
	sites := []SiteStat{
		{SiteID: "a", Lat: 33.4, Lon: -112.0, Mean: 8, Count: 10},
		{SiteID: "b", Lat: 33.6, Lon: -112.1, Mean: 12, Count: 10},
		{SiteID: "c", Lat: 33.5, Lon: -111.9, Mean: 25, Count: 10},
	}

	path := filepath.Join(t.TempDir(), "sites.png")
	require.NoError(t, SiteMapPNG(sites, path))
	requirePNG(t, path)

	require.Error(t, SiteMapPNG(nil, path))
}

func TestACFBarsPNG(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i%24) + 0.1*float64(i%7)
	}
	acf, err := ACF(values, 48)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "acf.png")
	require.NoError(t, ACFBarsPNG(acf, path))
	requirePNG(t, path)

	require.Error(t, ACFBarsPNG(nil, path))
}
