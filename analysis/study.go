// Package analysis orchestrates the PM2.5 study end to end: exploratory
// figures over the raw measurements, cross-validated tuning of every
// model family, and a single held-out evaluation of the winner.
package analysis

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/aqi"
	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/eda"
	"github.com/airsift/airsift/metrics"
	"github.com/airsift/airsift/pipeline"
	"github.com/airsift/airsift/pkg/config"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
	"github.com/airsift/airsift/preprocessing"
	"github.com/airsift/airsift/report"
	"github.com/airsift/airsift/selection"
	"github.com/airsift/airsift/store"
)

const (
	// maxACFLag bounds the autocorrelation plot to two days of hourly lags.
	maxACFLag = 48

	// topFeatures caps the importance ranking and chart.
	topFeatures = 10

	histogramBins = 60
)

// Study runs the analysis stages against one configuration. The store
// may be nil, which disables result caching and the report command.
type Study struct {
	cfg    *config.Config
	db     *store.Store
	logger log.Logger
}

// New builds a Study over cfg. db may be nil to run without a result
// store.
func New(cfg *config.Config, db *store.Store) *Study {
	return &Study{
		cfg:    cfg,
		db:     db,
		logger: log.GetLoggerWithName("analysis"),
	}
}

// Explore loads the measurement table and writes the exploratory
// artifacts into the output directory: the distribution summary, the
// concentration histogram, the daily-mean series with trend, the
// hour-by-weekday heatmap, the site map, and the autocorrelation bars.
func (s *Study) Explore(ctx context.Context) (err error) {
	defer errors.Recover(&err, "Study.Explore")

	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	tbl, err := dataset.ReadCSV(s.cfg.Data.Path, s.cfg.DatasetOptions())
	if err != nil {
		return err
	}
	if err := s.ensureOutputDir(); err != nil {
		return err
	}

	summary, err := s.renderSummaries(tbl)
	if err != nil {
		return err
	}
	if err := s.writeArtifact("summary.txt", []byte(summary)); err != nil {
		return err
	}

	if err := eda.HistogramPNG(tbl.PM25, histogramBins, s.outPath("histogram.png")); err != nil {
		return err
	}
	days, means, err := eda.DailyMeans(tbl)
	if err != nil {
		return err
	}
	if err := eda.TimeSeriesPNG(days, means, s.outPath("daily_means.png")); err != nil {
		return err
	}
	hourWeekday, err := eda.HourWeekdayMeans(tbl)
	if err != nil {
		return err
	}
	if err := eda.HeatmapPNG(hourWeekday, s.outPath("hour_weekday.png")); err != nil {
		return err
	}
	sites, err := eda.SiteStats(tbl)
	if err != nil {
		return err
	}
	if err := eda.SiteMapPNG(sites, s.outPath("sites.png")); err != nil {
		return err
	}
	acf, err := eda.ACF(eda.SeriesByTime(tbl), maxACFLag)
	if err != nil {
		return err
	}
	if err := eda.ACFBarsPNG(acf, s.outPath("acf.png")); err != nil {
		return err
	}

	s.logger.Info("Exploration artifacts written",
		log.OperationKey, log.OperationExplore,
		log.RowsKey, tbl.Len(),
		log.PathKey, s.cfg.Output.Dir,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Tune grid-searches every configured family with stratified k-fold
// cross validation on the training partition, caches the scores in the
// store, and writes the comparison table (text and markdown) into the
// output directory. With a store configured it also writes the full
// candidate log of the run.
func (s *Study) Tune(ctx context.Context) (_ *report.Comparison, err error) {
	defer errors.Recover(&err, "Study.Tune")

	prep, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}
	bests, runID, err := s.tuneFamilies(ctx, prep)
	if err != nil {
		return nil, err
	}

	comparison := report.NewComparison(bests)
	if err := s.ensureOutputDir(); err != nil {
		return nil, err
	}
	if err := s.writeArtifact("comparison.txt", []byte(comparison.String())); err != nil {
		return nil, err
	}
	if err := s.writeArtifact("comparison.md", []byte(comparison.Markdown())); err != nil {
		return nil, err
	}

	if runID != 0 {
		candidates, err := s.db.ResultsByRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		tuningLog := report.NewComparison(candidates)
		if err := s.writeArtifact("tuning_log.txt", []byte(tuningLog.String())); err != nil {
			return nil, err
		}
	}
	return comparison, nil
}

// Evaluate refits the best tuned candidate on the full training
// partition and scores it exactly once on the held-out test partition.
// It writes the evaluation report, the importance chart, the serialized
// pipeline, and the model card. Stored tuning results are reused when
// the dataset fingerprint matches; otherwise the families are tuned
// first.
func (s *Study) Evaluate(ctx context.Context) (_ *report.Evaluation, err error) {
	defer errors.Recover(&err, "Study.Evaluate")

	prep, err := s.prepare(ctx)
	if err != nil {
		return nil, err
	}

	var bests []selection.TuningResult
	if s.db != nil {
		bests, err = s.db.BestPerFamily(ctx, prep.dataKey)
		if err != nil {
			return nil, err
		}
	}
	if len(bests) == 0 {
		bests, _, err = s.tuneFamilies(ctx, prep)
		if err != nil {
			return nil, err
		}
	}
	best := bests[0]

	fam, ok := familyByName(Families(s.cfg.Sample.Seed), best.Family)
	if !ok {
		return nil, errors.NewValueError("Study.Evaluate",
			"stored best family is not registered: "+best.Family)
	}
	clf := fam.Make(s.cfg.Sample.Seed)
	if len(best.Params) > 0 {
		setter, ok := clf.(model.ParamSetter)
		if !ok {
			return nil, errors.NewValueError("Study.Evaluate",
				"model does not accept parameters: "+best.Family)
		}
		if err := setter.SetParams(best.Params); err != nil {
			return nil, err
		}
	}

	pipe := pipeline.NewPipeline(preprocessing.NewFeatureEncoder(s.featureSpec()), clf)
	if err := pipe.Fit(prep.trainTbl, prep.trainLabels); err != nil {
		return nil, err
	}

	// The held-out partition is predicted exactly once.
	preds, err := pipe.Predict(prep.testTbl)
	if err != nil {
		return nil, err
	}
	confusion, err := metrics.NewConfusionMatrix(prep.testLabels, preds, aqi.CategoryNames())
	if err != nil {
		return nil, err
	}

	ev := &report.Evaluation{
		Family:       best.Family,
		Params:       best.Params,
		CVScore:      best.MeanScore,
		TestAccuracy: confusion.Accuracy(),
		Confusion:    confusion,
		Report:       confusion.Report(),
	}

	if err := s.ensureOutputDir(); err != nil {
		return nil, err
	}
	if weights, impErr := pipe.FeatureImportances(); impErr == nil {
		top, err := report.TopImportances(pipe.FeatureNames(), weights, topFeatures)
		if err != nil {
			return nil, err
		}
		ev.Importances = top
		if err := report.ImportanceChartPNG(top, s.outPath("importances.png")); err != nil {
			return nil, err
		}
	} else {
		s.logger.Warn("Feature importances unavailable",
			log.ModelNameKey, best.Family,
			"reason", impErr.Error(),
		)
	}

	if err := s.writeArtifact("evaluation.txt", []byte(ev.String())); err != nil {
		return nil, err
	}
	modelPath := s.outPath("model.gob")
	if err := pipe.Save(modelPath); err != nil {
		return nil, err
	}
	card := &report.ModelCard{
		Family:       best.Family,
		Params:       best.Params,
		CVScore:      best.MeanScore,
		TestAccuracy: ev.TestAccuracy,
		FeatureNames: pipe.FeatureNames(),
		ClassNames:   aqi.CategoryNames(),
		ArtifactPath: modelPath,
	}
	if err := card.WriteJSON(s.outPath("model_card.json")); err != nil {
		return nil, err
	}

	s.logger.Info("Evaluation completed",
		log.OperationKey, log.OperationEvaluate,
		log.ModelNameKey, best.Family,
		log.ScoreKey, ev.TestAccuracy,
		log.PathKey, modelPath,
	)
	return ev, nil
}

// Report renders the comparison table from the most recent stored
// tuning run without recomputing any scores.
func (s *Study) Report(ctx context.Context) (*report.Comparison, error) {
	if s.db == nil {
		return nil, errors.NewValueError("Study.Report",
			"no result store configured (tuning.cache_path is empty)")
	}
	run, ok, err := s.db.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewValueError("Study.Report",
			"no tuning runs recorded yet; run tune first")
	}
	results, err := s.db.BestPerFamily(ctx, run.DatasetHash)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.NewValueError("Study.Report",
			"latest run has no stored results")
	}
	return report.NewComparison(results), nil
}

// studyData is the prepared modeling state shared by Tune and Evaluate:
// the balanced sample, its stratified train/test partition, and the
// encoded training matrix the grid searches score on.
type studyData struct {
	trainTbl    *dataset.Table
	testTbl     *dataset.Table
	trainLabels []int
	testLabels  []int
	xTrain      *mat.Dense
	dataKey     string
}

// prepare loads, labels, samples, splits, and encodes. The feature
// encoder is fitted on the training partition only; the test partition
// stays untouched until Evaluate.
func (s *Study) prepare(ctx context.Context) (*studyData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tbl, err := dataset.ReadCSV(s.cfg.Data.Path, s.cfg.DatasetOptions())
	if err != nil {
		return nil, err
	}
	labels, err := aqi.OrdinalLabels(tbl.PM25)
	if err != nil {
		return nil, err
	}
	seed := uint64(s.cfg.Sample.Seed)

	sampleIdx, err := dataset.StratifiedSample(labels, s.cfg.Sample.PerCategory, seed)
	if err != nil {
		return nil, err
	}
	sample, err := tbl.Select(sampleIdx)
	if err != nil {
		return nil, err
	}
	sampleLabels, err := dataset.TakeLabels(labels, sampleIdx)
	if err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := selection.TrainTestSplit(sampleLabels, s.cfg.Split.TestFraction, seed)
	if err != nil {
		return nil, err
	}
	trainTbl, err := sample.Select(trainIdx)
	if err != nil {
		return nil, err
	}
	testTbl, err := sample.Select(testIdx)
	if err != nil {
		return nil, err
	}
	trainLabels, err := dataset.TakeLabels(sampleLabels, trainIdx)
	if err != nil {
		return nil, err
	}
	testLabels, err := dataset.TakeLabels(sampleLabels, testIdx)
	if err != nil {
		return nil, err
	}

	encoder := preprocessing.NewFeatureEncoder(s.featureSpec())
	xTrain, err := encoder.FitTransform(trainTbl)
	if err != nil {
		return nil, err
	}

	prep := &studyData{
		trainTbl:    trainTbl,
		testTbl:     testTbl,
		trainLabels: trainLabels,
		testLabels:  testLabels,
		xTrain:      xTrain,
		dataKey:     selection.DatasetFingerprint(xTrain, trainLabels),
	}

	rows, cols := xTrain.Dims()
	s.logger.Info("Study data prepared",
		log.OperationKey, log.OperationLoad,
		log.RowsKey, tbl.Len(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(dataset.ClassCounts(sampleLabels)),
	)
	return prep, nil
}

// tuneFamilies runs one grid search per configured family and returns
// each family's best candidate, ranked across families best first. The
// returned run id is zero when no store is configured.
func (s *Study) tuneFamilies(ctx context.Context, prep *studyData) ([]selection.TuningResult, int64, error) {
	families, err := selectFamilies(Families(s.cfg.Sample.Seed), s.cfg.Tuning.Families)
	if err != nil {
		return nil, 0, err
	}

	var (
		cache selection.ResultCache
		runID int64
	)
	if s.db != nil {
		runID, err = s.db.BeginRun(ctx, prep.dataKey, "tune")
		if err != nil {
			return nil, 0, err
		}
		cache = s.db.Cache(runID)
	}

	cv := selection.NewStratifiedKFold(s.cfg.Tuning.Folds, uint64(s.cfg.Sample.Seed))
	start := time.Now()

	bests := make([]selection.TuningResult, 0, len(families))
	for _, fam := range families {
		fam := fam
		gs := &selection.GridSearchCV{
			Family: fam.Name,
			Factory: func() model.Classifier {
				return fam.Make(s.cfg.Sample.Seed)
			},
			Grid:          fam.Grid,
			CV:            cv,
			Workers:       s.cfg.WorkerCount(),
			MaxCandidates: s.cfg.Tuning.MaxCandidates,
			Cache:         cache,
		}
		results, err := gs.Run(ctx, prep.xTrain, prep.trainLabels)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "family %s", fam.Name)
		}
		bests = append(bests, results[0])
	}

	sort.SliceStable(bests, func(i, j int) bool {
		return bests[i].MeanScore > bests[j].MeanScore
	})
	for i := range bests {
		bests[i].Rank = i + 1
	}

	s.logger.Info("Family tuning completed",
		log.OperationKey, log.OperationTune,
		log.PhaseKey, log.PhaseTuning,
		log.ModelNameKey, bests[0].Family,
		log.ScoreKey, bests[0].MeanScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return bests, runID, nil
}

// featureSpec maps the configured scaling mode onto the default
// hour/location/weekday feature set.
func (s *Study) featureSpec() preprocessing.FeatureSpec {
	spec := preprocessing.DefaultFeatureSpec()
	spec.Scaling = preprocessing.Scaling(s.cfg.Scaling)
	return spec
}

// renderSummaries formats the overall and per-category distribution
// statistics as an aligned text table.
func (s *Study) renderSummaries(tbl *dataset.Table) (string, error) {
	overall, err := eda.Summarize(tbl.PM25)
	if err != nil {
		return "", err
	}
	labels, err := aqi.OrdinalLabels(tbl.PM25)
	if err != nil {
		return "", err
	}
	names := aqi.CategoryNames()
	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = names[l]
	}
	grouped, err := eda.GroupedSummaries(keys, tbl.PM25)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "PM2.5 distribution, %d rows\n\n", tbl.Len())
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tCOUNT\tMEAN\tSTD\tMIN\tQ1\tMEDIAN\tQ3\tMAX")
	writeSummaryRow(w, "overall", overall)
	for _, name := range names {
		if sum, ok := grouped[name]; ok {
			writeSummaryRow(w, name, sum)
		}
	}
	w.Flush()
	return sb.String(), nil
}

func writeSummaryRow(w io.Writer, name string, s eda.Summary) {
	fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
		name, s.Count, s.Mean, s.Std, s.Min, s.Q1, s.Median, s.Q3, s.Max)
}

func (s *Study) ensureOutputDir() error {
	if err := os.MkdirAll(s.cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create output directory %s", s.cfg.Output.Dir)
	}
	return nil
}

func (s *Study) outPath(name string) string {
	return filepath.Join(s.cfg.Output.Dir, name)
}

// writeArtifact writes one text artifact into the output directory.
func (s *Study) writeArtifact(name string, data []byte) error {
	path := s.outPath(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	s.logger.Debug("Artifact written", log.PathKey, path)
	return nil
}
