package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsift/airsift/metrics"
	"github.com/airsift/airsift/selection"
)

func rankedResults() []selection.TuningResult {
	return []selection.TuningResult{
		{
			Family:     "gbm",
			Params:     map[string]interface{}{"learning_rate": 0.1, "n_estimators": 200},
			MeanScore:  0.47,
			StdScore:   0.012,
			FoldScores: []float64{0.46, 0.47, 0.48},
			Rank:       1,
		},
		{
			Family:     "forest",
			Params:     map[string]interface{}{"max_features": "sqrt"},
			MeanScore:  0.45,
			StdScore:   0.01,
			FoldScores: []float64{0.44, 0.45, 0.46},
			Rank:       2,
		},
		{
			Family:     "bayes",
			Params:     map[string]interface{}{},
			MeanScore:  0.33,
			StdScore:   0.02,
			FoldScores: []float64{0.31, 0.33, 0.35},
			Rank:       3,
		},
	}
}

func TestComparisonString(t *testing.T) {
	c := NewComparison(rankedResults())
	text := c.String()

	assert.Contains(t, text, "RANK")
	assert.Contains(t, text, "gbm")
	assert.Contains(t, text, "0.4700 ± 0.0120")
	assert.Contains(t, text, "learning_rate=0.1, n_estimators=200")
	assert.Contains(t, text, "defaults")

	// Best family appears before the runner-up.
	assert.Less(t, strings.Index(text, "gbm"), strings.Index(text, "forest"))

	best := c.Best()
	require.NotNil(t, best)
	assert.Equal(t, "gbm", best.Family)

	empty := NewComparison(nil)
	assert.Nil(t, empty.Best())
}

func TestComparisonMarkdown(t *testing.T) {
	md := NewComparison(rankedResults()).Markdown()

	lines := strings.Split(strings.TrimSpace(md), "\n")
	require.Len(t, lines, 5, "header + separator + three rows")
	assert.True(t, strings.HasPrefix(lines[0], "| Rank |"))
	assert.Contains(t, lines[2], "| 1 | gbm |")
	assert.Contains(t, lines[4], "| 3 | bayes |")
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "defaults", FormatParams(nil))
	got := FormatParams(map[string]interface{}{"b": 2, "a": "x"})
	assert.Equal(t, "a=x, b=2", got)
}

func TestTopImportances(t *testing.T) {
	names := []string{"hour", "lat", "lon", "weekday_Monday"}
	weights := []float64{0.4, 0.1, 0.2, 0.3}

	top, err := TopImportances(names, weights, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "hour", top[0].Name)
	assert.Equal(t, "weekday_Monday", top[1].Name)

	all, err := TopImportances(names, weights, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = TopImportances(names, weights[:2], 2)
	require.Error(t, err)
}

func TestEvaluationString(t *testing.T) {
	cm, err := metrics.NewConfusionMatrix(
		[]int{0, 0, 1, 1, 2},
		[]int{0, 1, 1, 1, 2},
		[]string{"Good", "Moderate", "Unhealthy"},
	)
	require.NoError(t, err)

	eval := &Evaluation{
		Family:       "tree",
		Params:       map[string]interface{}{"max_depth": 5},
		CVScore:      0.44,
		TestAccuracy: 0.46,
		Confusion:    cm,
		Report:       cm.Report(),
		Importances: []FeatureImportance{
			{Name: "hour", Weight: 0.5},
			{Name: "lat", Weight: 0.3},
		},
	}

	text := eval.String()
	assert.Contains(t, text, "Family:        tree")
	assert.Contains(t, text, "max_depth=5")
	assert.Contains(t, text, "Test accuracy: 0.4600")
	assert.Contains(t, text, "Good")
	assert.Contains(t, text, "Top features:")
	assert.Contains(t, text, "hour")
}

func TestImportanceChartPNG(t *testing.T) {
	imps := []FeatureImportance{
		{Name: "hour", Weight: 0.5},
		{Name: "lon", Weight: 0.25},
		{Name: "lat", Weight: 0.15},
		{Name: "weekday_Sunday", Weight: 0.1},
	}

	path := filepath.Join(t.TempDir(), "importance.png")
	require.NoError(t, ImportanceChartPNG(imps, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.Error(t, ImportanceChartPNG(nil, path))
}

func TestModelCardRoundTrip(t *testing.T) {
	card := &ModelCard{
		Family:       "gbm",
		Params:       map[string]interface{}{"learning_rate": 0.1},
		CVScore:      0.47,
		TestAccuracy: 0.46,
		FeatureNames: []string{"hour", "lat", "lon"},
		ClassNames:   []string{"Good", "Moderate"},
		ArtifactPath: "model.gob",
	}

	path := filepath.Join(t.TempDir(), "card.json")
	require.NoError(t, card.WriteJSON(path))
	assert.False(t, card.CreatedAt.IsZero(), "WriteJSON stamps CreatedAt")

	got, err := ReadModelCard(path)
	require.NoError(t, err)
	assert.Equal(t, "gbm", got.Family)
	assert.InDelta(t, 0.1, got.Params["learning_rate"].(float64), 1e-12)
	assert.Equal(t, card.FeatureNames, got.FeatureNames)
	assert.Equal(t, card.TestAccuracy, got.TestAccuracy)

	_, err = ReadModelCard(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
