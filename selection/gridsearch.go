package selection

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// ParamGrid maps a hyperparameter name to the values to try. The grid
// expands to the cartesian product of all value lists.
type ParamGrid map[string][]interface{}

// Candidates expands the grid into one parameter map per combination.
// Keys are iterated in sorted order, so the expansion order is stable.
// An empty grid yields a single empty candidate (model defaults).
func (g ParamGrid) Candidates() []map[string]interface{} {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	candidates := []map[string]interface{}{{}}
	for _, key := range keys {
		values := g[key]
		next := make([]map[string]interface{}, 0, len(candidates)*len(values))
		for _, base := range candidates {
			for _, v := range values {
				candidate := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					candidate[bk] = bv
				}
				candidate[key] = v
				next = append(next, candidate)
			}
		}
		candidates = next
	}
	return candidates
}

// TuningResult is the cross-validated score of one parameter candidate.
type TuningResult struct {
	Family     string
	Params     map[string]interface{}
	ParamsKey  string
	MeanScore  float64
	StdScore   float64
	FoldScores []float64
	Rank       int
	FromCache  bool
}

// ResultCache lets a grid search skip candidates whose scores were
// already computed against the same dataset. Hits are stored back
// through Put, so the cache sees every candidate a search touched.
// A nil cache disables caching.
type ResultCache interface {
	Get(ctx context.Context, family, paramsKey, dataKey string) (*TuningResult, bool, error)
	Put(ctx context.Context, family, paramsKey, dataKey string, res TuningResult) error
}

// GridSearchCV evaluates every candidate in Grid with stratified k-fold
// cross validation, running candidates in parallel.
type GridSearchCV struct {
	// Family names the model family in results and cache rows.
	Family string

	// Factory builds a fresh default model; candidates are applied
	// with SetParams, so the model must implement model.ParamSetter.
	Factory func() model.Classifier

	Grid ParamGrid
	CV   *StratifiedKFold

	// Workers caps concurrent candidates; values below 1 mean one.
	Workers int

	// MaxCandidates caps the number of candidates evaluated when
	// positive. The expanded grid is shuffled with the CV seed before
	// truncation, so the cap draws a random subsample of the grid that
	// is stable for a fixed seed.
	MaxCandidates int

	Cache ResultCache

	logger log.Logger
}

// Run scores all candidates and returns them ranked best first. Ties
// keep the grid expansion order, so results are deterministic for a
// fixed CV seed regardless of Workers.
func (gs *GridSearchCV) Run(ctx context.Context, X mat.Matrix, labels []int) (_ []TuningResult, err error) {
	defer errors.Recover(&err, "GridSearchCV.Run")

	if gs.Factory == nil {
		return nil, errors.NewValueError("GridSearchCV.Run", "factory must not be nil")
	}
	if gs.CV == nil {
		return nil, errors.NewValueError("GridSearchCV.Run", "cv splitter must not be nil")
	}
	if gs.logger == nil {
		gs.logger = log.GetLoggerWithName("selection").With(
			log.ComponentKey, "gridsearch",
			log.ModelNameKey, gs.Family,
		)
	}

	candidates := gs.Grid.Candidates()
	if gs.MaxCandidates > 0 && len(candidates) > gs.MaxCandidates {
		rng := rand.New(rand.NewPCG(gs.CV.Seed, gs.CV.Seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:gs.MaxCandidates]
	}
	folds, err := gs.CV.Split(labels)
	if err != nil {
		return nil, err
	}

	workers := gs.Workers
	if workers < 1 {
		workers = 1
	}
	dataKey := DatasetFingerprint(X, labels)

	gs.logger.Info("Grid search started",
		log.OperationKey, log.OperationTune,
		log.PhaseKey, log.PhaseTuning,
		log.CandidatesKey, len(candidates),
		log.FoldsKey, len(folds),
		log.WorkersKey, workers,
	)
	start := time.Now()

	results := make([]TuningResult, len(candidates))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, params := range candidates {
		i, params := i, params
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := gs.scoreCandidate(ctx, X, labels, folds, params, dataKey)
			if err != nil {
				return errors.Wrapf(err, "candidate %s", ParamsFingerprint(params))
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	rankResults(results)
	gs.logger.Info("Grid search completed",
		log.OperationKey, log.OperationTune,
		log.PhaseKey, log.PhaseTuning,
		log.ScoreKey, results[0].MeanScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return results, nil
}

// scoreCandidate computes (or retrieves) the CV score of one parameter
// candidate.
func (gs *GridSearchCV) scoreCandidate(ctx context.Context, X mat.Matrix, labels []int, folds []Fold, params map[string]interface{}, dataKey string) (TuningResult, error) {
	paramsKey := ParamsFingerprint(params)

	if gs.Cache != nil {
		cached, ok, err := gs.Cache.Get(ctx, gs.Family, paramsKey, dataKey)
		if err != nil {
			return TuningResult{}, errors.Wrap(err, "cache lookup failed")
		}
		if ok {
			cached.Family = gs.Family
			cached.Params = params
			cached.ParamsKey = paramsKey
			cached.FromCache = true
			if err := gs.Cache.Put(ctx, gs.Family, paramsKey, dataKey, *cached); err != nil {
				return TuningResult{}, errors.Wrap(err, "cache store failed")
			}
			return *cached, nil
		}
	}

	factory := func() (model.Classifier, error) {
		clf := gs.Factory()
		if len(params) > 0 {
			setter, ok := clf.(model.ParamSetter)
			if !ok {
				return nil, errors.NewValueError("GridSearchCV", "model does not accept parameters")
			}
			if err := setter.SetParams(params); err != nil {
				return nil, err
			}
		}
		return clf, nil
	}

	cv, err := CrossValidate(factory, X, labels, folds)
	if err != nil {
		return TuningResult{}, err
	}

	res := TuningResult{
		Family:     gs.Family,
		Params:     params,
		ParamsKey:  paramsKey,
		MeanScore:  cv.Mean,
		StdScore:   cv.Std,
		FoldScores: cv.Scores,
	}
	if gs.Cache != nil {
		if err := gs.Cache.Put(ctx, gs.Family, paramsKey, dataKey, res); err != nil {
			return TuningResult{}, errors.Wrap(err, "cache store failed")
		}
	}
	return res, nil
}

// rankResults orders results best first and numbers Rank from 1. Ties
// keep their original candidate order.
func rankResults(results []TuningResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MeanScore > results[j].MeanScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
