package report

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/airsift/airsift/pkg/errors"
)

// ImportanceChartPNG draws feature importances as horizontal bars, the
// strongest feature on top.
func ImportanceChartPNG(importances []FeatureImportance, path string) error {
	if len(importances) == 0 {
		return errors.NewValueError("ImportanceChartPNG", "no importances")
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "weight"

	// Reverse so the first (largest) importance lands on the top row.
	n := len(importances)
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, imp := range importances {
		values[n-1-i] = imp.Weight
		names[n-1-i] = imp.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	bars.Horizontal = true
	p.Add(bars)
	p.NominalY(names...)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save chart: %s", path)
	}
	return nil
}
