// Package store persists tuning runs and cross-validation scores in a
// local SQLite file, so repeated grid searches over the same data reuse
// earlier results instead of refitting.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
	"github.com/airsift/airsift/selection"
)

//go:embed sql/*
var schemaFS embed.FS

const (
	insertRunSQL = `INSERT INTO runs (created_at, dataset_hash, note) VALUES (?, ?, ?)`

	selectLatestRunSQL = `SELECT id, created_at, dataset_hash, note
		FROM runs
		ORDER BY id DESC
		LIMIT 1
	`

	upsertResultSQL = `INSERT INTO tuning_results (
			run_id,
			family,
			params_key,
			params_json,
			dataset_hash,
			mean_score,
			std_score,
			fold_scores,
			created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(family, params_key, dataset_hash) DO UPDATE SET
			run_id = ?,
			mean_score = ?,
			std_score = ?,
			fold_scores = ?,
			created_at = ?
	`

	selectResultSQL = `SELECT params_json, mean_score, std_score, fold_scores
		FROM tuning_results
		WHERE family = ? AND params_key = ? AND dataset_hash = ?
	`

	selectBestResultSQL = `SELECT family, params_key, params_json, mean_score, std_score, fold_scores
		FROM tuning_results
		WHERE family = ? AND dataset_hash = ?
		ORDER BY mean_score DESC, id ASC
		LIMIT 1
	`

	selectAllResultsSQL = `SELECT family, params_key, params_json, mean_score, std_score, fold_scores
		FROM tuning_results
		WHERE dataset_hash = ?
		ORDER BY family ASC, mean_score DESC, id ASC
	`

	selectRunResultsSQL = `SELECT family, params_key, params_json, mean_score, std_score, fold_scores
		FROM tuning_results
		WHERE run_id = ?
		ORDER BY mean_score DESC, id ASC
	`
)

// Run is one recorded invocation of the tuning workflow.
type Run struct {
	ID          int64
	CreatedAt   time.Time
	DatasetHash string
	Note        string
}

// Store wraps the SQLite handle. All methods are safe for concurrent
// use; database/sql serializes access to the single file.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// Open opens (creating if needed) the SQLite database at path and
// applies the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValueError("store.Open", "database path not specified")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}

	ddl, err := schemaFS.ReadFile("sql/ddl.sql")
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to read the schema file")
	}
	if _, err := db.Exec(string(ddl)); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to create schema in: %s", path)
	}

	s := &Store{
		db: db,
		logger: log.GetLoggerWithName("store").With(
			log.ComponentKey, "sqlite",
		),
	}
	s.logger.Debug("Database opened", log.PathKey, path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records a new tuning run and returns its id.
func (s *Store) BeginRun(ctx context.Context, datasetHash, note string) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertRunSQL,
		time.Now().UTC().Format(time.RFC3339), datasetHash, note)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read run id")
	}
	return id, nil
}

// LatestRun returns the most recent run, if any.
func (s *Store) LatestRun(ctx context.Context) (*Run, bool, error) {
	var (
		run       Run
		createdAt string
		note      sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectLatestRunSQL).
		Scan(&run.ID, &createdAt, &run.DatasetHash, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to query latest run")
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, false, errors.Wrap(err, "failed to parse run timestamp")
	}
	run.Note = note.String
	return &run, true, nil
}

// PutResult upserts one candidate's cross-validation score. The
// (family, params, dataset) triple is unique; a rerun overwrites.
func (s *Store) PutResult(ctx context.Context, runID int64, dataKey string, res selection.TuningResult) error {
	paramsJSON, err := json.Marshal(res.Params)
	if err != nil {
		return errors.Wrap(err, "failed to marshal params")
	}
	foldsJSON, err := json.Marshal(res.FoldScores)
	if err != nil {
		return errors.Wrap(err, "failed to marshal fold scores")
	}
	now := time.Now().UTC().Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, upsertResultSQL,
		runID, res.Family, res.ParamsKey, string(paramsJSON), dataKey,
		res.MeanScore, res.StdScore, string(foldsJSON), now,
		runID, res.MeanScore, res.StdScore, string(foldsJSON), now,
	)
	if err != nil {
		return errors.Wrap(err, "failed to upsert tuning result")
	}
	return nil
}

// GetResult looks up a stored score for the exact candidate and data.
func (s *Store) GetResult(ctx context.Context, family, paramsKey, dataKey string) (*selection.TuningResult, bool, error) {
	row := s.db.QueryRowContext(ctx, selectResultSQL, family, paramsKey, dataKey)
	res, err := scanResult(row, family, paramsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return res, true, nil
}

// BestResult returns the highest-scoring stored candidate for one
// family against the given data.
func (s *Store) BestResult(ctx context.Context, family, dataKey string) (*selection.TuningResult, bool, error) {
	var (
		res        selection.TuningResult
		paramsJSON string
		foldsJSON  string
	)
	err := s.db.QueryRowContext(ctx, selectBestResultSQL, family, dataKey).
		Scan(&res.Family, &res.ParamsKey, &paramsJSON, &res.MeanScore, &res.StdScore, &foldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to query best result")
	}
	if err := decodeResultJSON(&res, paramsJSON, foldsJSON); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// BestPerFamily returns each family's best stored candidate for the
// given data, ordered best family first with ranks assigned.
func (s *Store) BestPerFamily(ctx context.Context, dataKey string) ([]selection.TuningResult, error) {
	rows, err := s.db.QueryContext(ctx, selectAllResultsSQL, dataKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tuning results")
	}
	defer rows.Close()

	var (
		best       []selection.TuningResult
		lastFamily string
	)
	for rows.Next() {
		var (
			res        selection.TuningResult
			paramsJSON string
			foldsJSON  string
		)
		if err := rows.Scan(&res.Family, &res.ParamsKey, &paramsJSON,
			&res.MeanScore, &res.StdScore, &foldsJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan tuning result")
		}
		// Rows come sorted by family then score, so the first row of
		// each family is its best candidate.
		if res.Family == lastFamily {
			continue
		}
		lastFamily = res.Family
		if err := decodeResultJSON(&res, paramsJSON, foldsJSON); err != nil {
			return nil, err
		}
		best = append(best, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate tuning results")
	}

	sortByScore(best)
	return best, nil
}

// ResultsByRun returns every candidate recorded under one run, ranked
// best first. A result belongs to the most recent run that scored or
// reused it, so the latest run lists the complete candidate log.
func (s *Store) ResultsByRun(ctx context.Context, runID int64) ([]selection.TuningResult, error) {
	rows, err := s.db.QueryContext(ctx, selectRunResultsSQL, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query run results")
	}
	defer rows.Close()

	var results []selection.TuningResult
	for rows.Next() {
		var (
			res        selection.TuningResult
			paramsJSON string
			foldsJSON  string
		)
		if err := rows.Scan(&res.Family, &res.ParamsKey, &paramsJSON,
			&res.MeanScore, &res.StdScore, &foldsJSON); err != nil {
			return nil, errors.Wrap(err, "failed to scan run result")
		}
		if err := decodeResultJSON(&res, paramsJSON, foldsJSON); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate run results")
	}

	sortByScore(results)
	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner, family, paramsKey string) (*selection.TuningResult, error) {
	var (
		res        selection.TuningResult
		paramsJSON string
		foldsJSON  string
	)
	if err := row.Scan(&paramsJSON, &res.MeanScore, &res.StdScore, &foldsJSON); err != nil {
		return nil, err
	}
	res.Family = family
	res.ParamsKey = paramsKey
	if err := decodeResultJSON(&res, paramsJSON, foldsJSON); err != nil {
		return nil, err
	}
	return &res, nil
}

func decodeResultJSON(res *selection.TuningResult, paramsJSON, foldsJSON string) error {
	if err := json.Unmarshal([]byte(paramsJSON), &res.Params); err != nil {
		return errors.Wrap(err, "failed to unmarshal params")
	}
	if err := json.Unmarshal([]byte(foldsJSON), &res.FoldScores); err != nil {
		return errors.Wrap(err, "failed to unmarshal fold scores")
	}
	return nil
}

func sortByScore(results []selection.TuningResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MeanScore > results[j].MeanScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
}
