package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	urfave "github.com/urfave/cli/v2"

	"github.com/airsift/airsift/pkg/config"
)

// writeMeasurementsCSV writes a small hourly export covering every AQI
// band.
func writeMeasurementsCSV(t *testing.T) string {
	t.Helper()

	base := []float64{5.0, 20.0, 45.0, 100.0, 200.0, 300.0}
	var sb strings.Builder
	sb.WriteString("date,time,pm25,latitude,longitude,site_id,state_id\n")
	for i := 0; i < 480; i++ {
		hour := i % 24
		day := (i/24)%20 + 1
		pm := base[hour%6] + 0.1*float64(i%4)
		fmt.Fprintf(&sb, "2019-02-%02d,%02d:00,%.1f,38.90,-77.04,site-01,MD\n",
			day, hour, pm)
	}

	path := filepath.Join(t.TempDir(), "measurements.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

// writeConfigYAML writes a study config pointing every path into temp
// directories, so tests never touch the working directory.
func writeConfigYAML(t *testing.T, csvPath, outDir string, perCategory int) string {
	t.Helper()

	tmp := t.TempDir()
	content := fmt.Sprintf(`data:
  path: %s
sample:
  per_category: %d
  seed: 7
tuning:
  folds: 2
  workers: 2
  cache_path: %s
  families: [tree]
output:
  dir: %s
`, csvPath, perCategory, filepath.Join(tmp, "cache.db"), outDir)

	path := filepath.Join(tmp, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAppExploreEndToEnd(t *testing.T) {
	csvPath := writeMeasurementsCSV(t)
	outDir := filepath.Join(t.TempDir(), "out")
	cfgPath := writeConfigYAML(t, csvPath, outDir, 10)

	app := newApp()
	require.NoError(t, app.Run([]string{"airsift", "--config", cfgPath, "explore"}))

	info, err := os.Stat(filepath.Join(outDir, "histogram.png"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	_, err = os.Stat(filepath.Join(outDir, "summary.txt"))
	require.NoError(t, err)
}

func TestResolveConfigPrecedence(t *testing.T) {
	csvPath := writeMeasurementsCSV(t)
	outDir := filepath.Join(t.TempDir(), "out")
	envCfg := writeConfigYAML(t, csvPath, outDir, 5)
	flagCfg := writeConfigYAML(t, csvPath, outDir, 9)
	t.Setenv(config.EnvConfigPath, envCfg)

	probe := func(got **config.Config) *urfave.Command {
		return &urfave.Command{
			Name: "probe",
			Action: func(c *urfave.Context) error {
				*got = getConfig(c).Config
				return nil
			},
		}
	}

	// Environment variable picks the file when no flag is given.
	var fromEnv *config.Config
	app := newApp()
	app.Commands = append(app.Commands, probe(&fromEnv))
	require.NoError(t, app.Run([]string{"airsift", "probe"}))
	assert.Equal(t, 5, fromEnv.Sample.PerCategory)

	// The --config flag wins over the environment.
	var fromFlag *config.Config
	app = newApp()
	app.Commands = append(app.Commands, probe(&fromFlag))
	require.NoError(t, app.Run([]string{"airsift", "--config", flagCfg, "probe"}))
	assert.Equal(t, 9, fromFlag.Sample.PerCategory)

	// Data and out flags override whatever the file says.
	otherCSV := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(otherCSV, []byte("x"), 0o644))
	otherOut := filepath.Join(t.TempDir(), "other-out")

	var overridden *config.Config
	app = newApp()
	app.Commands = append(app.Commands, probe(&overridden))
	require.NoError(t, app.Run([]string{
		"airsift", "--config", flagCfg, "--data", otherCSV, "--out", otherOut, "probe",
	}))
	assert.Equal(t, otherCSV, overridden.Data.Path)
	assert.Equal(t, otherOut, overridden.Output.Dir)
}

func TestAppRejectsBadConfig(t *testing.T) {
	tmp := t.TempDir()
	bad := filepath.Join(tmp, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sample:\n  per_category: -1\n"), 0o644))

	app := newApp()
	err := app.Run([]string{"airsift", "--config", bad, "explore"})
	require.Error(t, err)
}
