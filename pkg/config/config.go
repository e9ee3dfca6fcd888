// Package config loads and validates the YAML study configuration that
// drives the airsift CLI. Every section has working defaults, so an empty
// file (or no file at all) yields a runnable configuration; values from
// the file overlay the defaults.
package config

import (
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/pkg/errors"
)

// EnvConfigPath names the environment variable consulted for a config
// file path when the --config flag is not set.
const EnvConfigPath = "AIRSIFT_CONFIG"

// Config is the root of the study configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Sample  SampleConfig  `yaml:"sample"`
	Split   SplitConfig   `yaml:"split"`
	Tuning  TuningConfig  `yaml:"tuning"`
	Scaling string        `yaml:"scaling"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig describes the measurement CSV and its column mapping.
type DataConfig struct {
	Path        string   `yaml:"path"`
	PM25Column  string   `yaml:"pm25_column"`
	DateColumn  string   `yaml:"date_column"`
	TimeColumn  string   `yaml:"time_column"`
	LatColumn   string   `yaml:"lat_column"`
	LonColumn   string   `yaml:"lon_column"`
	SiteColumn  string   `yaml:"site_column"`
	StateColumn string   `yaml:"state_column"`
	DateLayouts []string `yaml:"date_layouts"`
	NAValues    []string `yaml:"na_values"`

	// MaxBadRowFraction aborts the load when more than this fraction of
	// rows fail to parse. Zero keeps the loader default.
	MaxBadRowFraction float64 `yaml:"max_bad_row_fraction"`
}

// SampleConfig controls the stratified class-balancing sample drawn
// before the train/test split.
type SampleConfig struct {
	PerCategory int   `yaml:"per_category"`
	Seed        int64 `yaml:"seed"`
}

// SplitConfig controls the train/test partition.
type SplitConfig struct {
	TestFraction float64 `yaml:"test_fraction"`
}

// TuningConfig controls cross-validated grid search.
type TuningConfig struct {
	Folds   int `yaml:"folds"`
	Workers int `yaml:"workers"` // 0 means runtime.NumCPU()

	// CachePath is the SQLite file holding tuning results. Empty disables
	// the cache.
	CachePath string `yaml:"cache_path"`

	// Families restricts the search to the named model families. Empty
	// means all registered families.
	Families []string `yaml:"families"`

	// MaxCandidates caps the number of grid candidates evaluated per
	// family; 0 means the full grid.
	MaxCandidates int `yaml:"max_candidates"`
}

// OutputConfig controls where plots, reports, and saved models land.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Path: "data/measurements.csv",
		},
		Sample: SampleConfig{
			PerCategory: 2000,
			Seed:        42,
		},
		Split: SplitConfig{
			TestFraction: 0.25,
		},
		Tuning: TuningConfig{
			Folds:     5,
			Workers:   0,
			CachePath: "airsift.db",
		},
		Scaling: "standard",
		Output: OutputConfig{
			Dir: "out",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, overlays it on Default, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes over the defaults and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. It is called by Load and
// again by the CLI after flag overrides are applied.
func (c *Config) Validate() error {
	if c.Sample.PerCategory <= 0 {
		return errors.NewValidationError("sample.per_category", "must be positive", c.Sample.PerCategory)
	}
	if c.Split.TestFraction <= 0 || c.Split.TestFraction >= 1 {
		return errors.NewValidationError("split.test_fraction", "must be in (0, 1)", c.Split.TestFraction)
	}
	if c.Tuning.Folds < 2 {
		return errors.NewValidationError("tuning.folds", "must be at least 2", c.Tuning.Folds)
	}
	if c.Tuning.Workers < 0 {
		return errors.NewValidationError("tuning.workers", "must be non-negative", c.Tuning.Workers)
	}
	if c.Tuning.MaxCandidates < 0 {
		return errors.NewValidationError("tuning.max_candidates", "must be non-negative", c.Tuning.MaxCandidates)
	}
	switch c.Scaling {
	case "standard", "minmax", "none":
	default:
		return errors.NewValidationError("scaling", "must be standard, minmax, or none", c.Scaling)
	}
	if c.Output.Dir == "" {
		return errors.NewValidationError("output.dir", "must not be empty", c.Output.Dir)
	}
	return nil
}

// WorkerCount resolves the configured worker count, mapping 0 to the
// number of CPUs.
func (c *Config) WorkerCount() int {
	if c.Tuning.Workers > 0 {
		return c.Tuning.Workers
	}
	return runtime.NumCPU()
}

// DatasetOptions maps the data section onto the CSV loader options.
func (c *Config) DatasetOptions() dataset.Options {
	return dataset.Options{
		PM25Column:        c.Data.PM25Column,
		DateColumn:        c.Data.DateColumn,
		TimeColumn:        c.Data.TimeColumn,
		LatColumn:         c.Data.LatColumn,
		LonColumn:         c.Data.LonColumn,
		SiteColumn:        c.Data.SiteColumn,
		StateColumn:       c.Data.StateColumn,
		DateLayouts:       c.Data.DateLayouts,
		NAValues:          c.Data.NAValues,
		MaxBadRowFraction: c.Data.MaxBadRowFraction,
	}
}
