package store

import (
	"context"

	"github.com/airsift/airsift/selection"
)

// runCache adapts a Store to selection.ResultCache, attributing every
// write to one run.
type runCache struct {
	store *Store
	runID int64
}

// Cache returns a grid-search cache backed by this store. Scores
// written through it are attributed to runID.
func (s *Store) Cache(runID int64) selection.ResultCache {
	return &runCache{store: s, runID: runID}
}

func (c *runCache) Get(ctx context.Context, family, paramsKey, dataKey string) (*selection.TuningResult, bool, error) {
	return c.store.GetResult(ctx, family, paramsKey, dataKey)
}

func (c *runCache) Put(ctx context.Context, family, paramsKey, dataKey string, res selection.TuningResult) error {
	return c.store.PutResult(ctx, c.runID, dataKey, res)
}
