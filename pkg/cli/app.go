// Package cli implements the airsift command line: explore, tune,
// evaluate, and report subcommands sharing one study configuration and
// one result store.
package cli

import (
	"fmt"
	"os"
	"time"

	urfave "github.com/urfave/cli/v2"

	"github.com/airsift/airsift/analysis"
	"github.com/airsift/airsift/pkg/config"
	"github.com/airsift/airsift/pkg/log"
	"github.com/airsift/airsift/store"
)

const appConfigKey = "app-config"

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	configFlag = &urfave.StringFlag{
		Name:  "config",
		Usage: fmt.Sprintf("Path to the YAML study configuration (optional, or $%s)", config.EnvConfigPath),
	}

	dataFlag = &urfave.StringFlag{
		Name:  "data",
		Usage: "Path to the measurement CSV (overrides the config file)",
	}

	outFlag = &urfave.StringFlag{
		Name:  "out",
		Usage: "Directory for plots, reports, and model artifacts (overrides the config file)",
	}

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "airsift: %v\n", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Config *config.Config
	Store  *store.Store
	Study  *analysis.Study
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 "airsift",
		Version:              fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "PM2.5 AQI study: exploratory analysis and model comparison",
		Flags: []urfave.Flag{
			configFlag,
			dataFlag,
			outFlag,
			debugFlag,
		},
		Commands: []*urfave.Command{
			exploreCmd,
			tuneCmd,
			evaluateCmd,
			reportCmd,
		},
		Before: func(c *urfave.Context) error {
			cfg, err := resolveConfig(c)
			if err != nil {
				return err
			}

			level := log.ToLogLevel(cfg.Logging.Level)
			if c.Bool(debugFlag.Name) {
				level = log.LevelDebug
			}
			log.SetProvider(log.NewConsoleProvider(level))

			var db *store.Store
			if cfg.Tuning.CachePath != "" {
				db, err = store.Open(cfg.Tuning.CachePath)
				if err != nil {
					return err
				}
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				Config: cfg,
				Store:  db,
				Study:  analysis.New(cfg, db),
			}
			return nil
		},
		After: func(c *urfave.Context) error {
			if ac, ok := c.App.Metadata[appConfigKey].(*appConfig); ok && ac.Store != nil {
				return ac.Store.Close()
			}
			return nil
		},
	}
}

// resolveConfig loads the file named by --config or $AIRSIFT_CONFIG,
// falls back to the built-in defaults, then applies flag overrides and
// re-validates.
func resolveConfig(c *urfave.Context) (*config.Config, error) {
	path := c.String(configFlag.Name)
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if v := c.String(dataFlag.Name); v != "" {
		cfg.Data.Path = v
	}
	if v := c.String(outFlag.Name); v != "" {
		cfg.Output.Dir = v
	}
	if c.Bool(debugFlag.Name) {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
