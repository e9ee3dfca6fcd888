package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsift/airsift/selection"
)

var _ selection.ResultCache = (*runCache)(nil)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "airsift.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func sampleResult(family string, depth float64, score float64) selection.TuningResult {
	params := map[string]interface{}{"max_depth": depth}
	return selection.TuningResult{
		Family:     family,
		Params:     params,
		ParamsKey:  selection.ParamsFingerprint(params),
		MeanScore:  score,
		StdScore:   0.01,
		FoldScores: []float64{score - 0.01, score, score + 0.01},
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}

func TestBeginRunAndLatestRun(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty store should have no runs")

	id1, err := s.BeginRun(ctx, "hash-a", "first")
	require.NoError(t, err)
	id2, err := s.BeginRun(ctx, "hash-b", "second")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	run, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id2, run.ID)
	assert.Equal(t, "hash-b", run.DatasetHash)
	assert.Equal(t, "second", run.Note)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestPutGetResultRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)

	res := sampleResult("tree", 5, 0.46)
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", res))

	got, ok, err := s.GetResult(ctx, "tree", res.ParamsKey, "hash-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tree", got.Family)
	assert.InDelta(t, 0.46, got.MeanScore, 1e-12)
	assert.InDelta(t, 0.01, got.StdScore, 1e-12)
	assert.Len(t, got.FoldScores, 3)
	assert.InDelta(t, 5.0, got.Params["max_depth"].(float64), 1e-12)

	// Different data hash is a miss.
	_, ok, err = s.GetResult(ctx, "tree", res.ParamsKey, "hash-other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutResultUpserts(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)

	res := sampleResult("forest", 3, 0.40)
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", res))

	res.MeanScore = 0.44
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", res))

	got, ok, err := s.GetResult(ctx, "forest", res.ParamsKey, "hash-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.44, got.MeanScore, 1e-12)

	var count int
	require.NoError(t, s.db.QueryRow(
		`SELECT COUNT(*) FROM tuning_results WHERE family = 'forest'`).Scan(&count))
	assert.Equal(t, 1, count, "upsert must not duplicate rows")
}

func TestBestResult(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)

	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("tree", 3, 0.41)))
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("tree", 10, 0.46)))
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("tree", 5, 0.43)))

	best, ok, err := s.BestResult(ctx, "tree", "hash-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.46, best.MeanScore, 1e-12)
	assert.InDelta(t, 10.0, best.Params["max_depth"].(float64), 1e-12)

	_, ok, err = s.BestResult(ctx, "svm", "hash-a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBestPerFamily(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)

	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("tree", 3, 0.41)))
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("tree", 10, 0.46)))
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("gbm", 3, 0.47)))
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", sampleResult("bayes", 1, 0.33)))
	// Other dataset must not leak in.
	require.NoError(t, s.PutResult(ctx, runID, "hash-b", sampleResult("svm", 1, 0.99)))

	best, err := s.BestPerFamily(ctx, "hash-a")
	require.NoError(t, err)
	require.Len(t, best, 3)

	assert.Equal(t, "gbm", best[0].Family)
	assert.Equal(t, 1, best[0].Rank)
	assert.Equal(t, "tree", best[1].Family)
	assert.InDelta(t, 0.46, best[1].MeanScore, 1e-12)
	assert.Equal(t, "bayes", best[2].Family)
	assert.Equal(t, 3, best[2].Rank)
}

func TestResultsByRun(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	run1, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)
	require.NoError(t, s.PutResult(ctx, run1, "hash-a", sampleResult("tree", 3, 0.41)))
	require.NoError(t, s.PutResult(ctx, run1, "hash-a", sampleResult("tree", 10, 0.46)))
	require.NoError(t, s.PutResult(ctx, run1, "hash-a", sampleResult("forest", 5, 0.44)))

	results, err := s.ResultsByRun(ctx, run1)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "tree", results[0].Family)
	assert.InDelta(t, 0.46, results[0].MeanScore, 1e-12)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 3, results[2].Rank)

	// An upsert from a later run re-attributes the row to that run.
	run2, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)
	require.NoError(t, s.PutResult(ctx, run2, "hash-a", sampleResult("tree", 10, 0.46)))

	remaining, err := s.ResultsByRun(ctx, run1)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	moved, err := s.ResultsByRun(ctx, run2)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "tree", moved[0].Family)
	assert.InDelta(t, 10.0, moved[0].Params["max_depth"].(float64), 1e-12)

	empty, err := s.ResultsByRun(ctx, 9999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airsift.db")

	s, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, "hash-a", "persisted")
	require.NoError(t, err)
	res := sampleResult("logistic", 1, 0.45)
	require.NoError(t, s.PutResult(ctx, runID, "hash-a", res))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetResult(ctx, "logistic", res.ParamsKey, "hash-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.45, got.MeanScore, 1e-12)

	run, ok, err := reopened.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", run.Note)
}

func TestCacheAdapter(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	runID, err := s.BeginRun(ctx, "hash-a", "")
	require.NoError(t, err)
	cache := s.Cache(runID)

	_, ok, err := cache.Get(ctx, "tree", "missing", "hash-a")
	require.NoError(t, err)
	assert.False(t, ok)

	res := sampleResult("tree", 5, 0.42)
	require.NoError(t, cache.Put(ctx, "tree", res.ParamsKey, "hash-a", res))

	got, ok, err := cache.Get(ctx, "tree", res.ParamsKey, "hash-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.42, got.MeanScore, 1e-12)
}
