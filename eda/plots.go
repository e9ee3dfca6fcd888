package eda

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/airsift/airsift/aqi"
	"github.com/airsift/airsift/metrics"
	"github.com/airsift/airsift/models/linear"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

var (
	ruleColor  = color.RGBA{R: 204, G: 85, B: 85, A: 255}
	trendColor = color.RGBA{R: 220, G: 60, B: 60, A: 255}
)

func plotLogger() log.Logger {
	return log.GetLoggerWithName("eda").With(log.ComponentKey, "plots")
}

func savePlot(p *plot.Plot, path string) error {
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot: %s", path)
	}
	plotLogger().Debug("Plot saved", log.PathKey, path)
	return nil
}

// HistogramPNG draws the concentration distribution with the AQI band
// boundaries as dashed vertical rules.
func HistogramPNG(values []float64, bins int, path string) error {
	if len(values) == 0 {
		return errors.NewValueError("HistogramPNG", "no values")
	}
	if bins <= 0 {
		bins = 50
	}

	p := plot.New()
	p.Title.Text = "PM2.5 concentration distribution"
	p.X.Label.Text = "PM2.5 (µg/m³)"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return errors.Wrap(err, "failed to build histogram")
	}
	p.Add(hist)

	maxV := values[0]
	for _, v := range values {
		if v > maxV {
			maxV = v
		}
	}
	peak := histPeak(values, bins)
	for _, bound := range aqi.CategoryBounds() {
		if bound > maxV {
			break
		}
		rule, err := plotter.NewLine(plotter.XYs{
			{X: bound, Y: 0},
			{X: bound, Y: peak},
		})
		if err != nil {
			return errors.Wrap(err, "failed to build boundary rule")
		}
		rule.Color = ruleColor
		rule.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(rule)
	}

	return savePlot(p, path)
}

// histPeak returns the largest equal-width bin count, the height used
// for the boundary rules.
func histPeak(values []float64, bins int) float64 {
	mn, mx := values[0], values[0]
	for _, v := range values {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	if mx == mn {
		return float64(len(values))
	}

	counts := make([]int, bins)
	for _, v := range values {
		b := int(float64(bins) * (v - mn) / (mx - mn))
		if b == bins {
			b--
		}
		counts[b]++
	}
	peak := 0
	for _, c := range counts {
		if c > peak {
			peak = c
		}
	}
	return float64(peak)
}

// TimeSeriesPNG draws the daily means with an OLS trend line fitted on
// the day index.
func TimeSeriesPNG(days []time.Time, means []float64, path string) error {
	if len(days) != len(means) {
		return errors.NewDimensionError("TimeSeriesPNG", len(days), len(means), 0)
	}
	if len(days) < 2 {
		return errors.NewValueError("TimeSeriesPNG", "need at least two days")
	}

	p := plot.New()
	p.Title.Text = "Daily mean PM2.5"
	p.X.Label.Text = "date"
	p.Y.Label.Text = "PM2.5 (µg/m³)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	pts := make(plotter.XYs, len(days))
	for i, day := range days {
		pts[i] = plotter.XY{X: float64(day.Unix()), Y: means[i]}
	}
	series, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build series line")
	}
	p.Add(series)
	p.Legend.Add("daily mean", series)

	trend, r2, err := trendLine(days, means)
	if err != nil {
		return err
	}
	trend.Color = trendColor
	trend.Width = vg.Points(2)
	trend.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(trend)
	label := "trend"
	if !math.IsNaN(r2) {
		label = fmt.Sprintf("trend (R² = %.2f)", r2)
	}
	p.Legend.Add(label, trend)

	return savePlot(p, path)
}

// trendLine fits OLS on the day index, which keeps the normal equations
// well conditioned, and maps the fit back onto the time axis. The second
// return value is the fit's R², NaN when the series is constant.
func trendLine(days []time.Time, means []float64) (*plotter.Line, float64, error) {
	n := len(days)
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, means[i])
	}

	lr := linear.NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		return nil, 0, errors.Wrap(err, "failed to fit trend")
	}
	fitted, err := lr.Predict(X)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to evaluate trend")
	}

	yVec := mat.NewVecDense(n, nil)
	fitVec := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yVec.SetVec(i, means[i])
		fitVec.SetVec(i, fitted.At(i, 0))
	}
	r2, err := metrics.R2Score(yVec, fitVec)
	if err != nil {
		// constant series: R² is undefined
		r2 = math.NaN()
	}

	line, err := plotter.NewLine(plotter.XYs{
		{X: float64(days[0].Unix()), Y: fitted.At(0, 0)},
		{X: float64(days[n-1].Unix()), Y: fitted.At(n-1, 0)},
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to build trend line")
	}
	return line, r2, nil
}

// heatGrid adapts a weekday x hour matrix to the plotter grid, which
// indexes columns first.
type heatGrid struct {
	m *mat.Dense
}

func (g heatGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g heatGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g heatGrid) X(c int) float64    { return float64(c) }
func (g heatGrid) Y(r int) float64    { return float64(r) }

// HeatmapPNG draws the weekday x hour mean-concentration grid from
// HourWeekdayMeans.
func HeatmapPNG(means *mat.Dense, path string) error {
	rows, cols := means.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewValueError("HeatmapPNG", "empty grid")
	}

	p := plot.New()
	p.Title.Text = "Mean PM2.5 by weekday and hour"
	p.X.Label.Text = "hour of day"

	hm := plotter.NewHeatMap(heatGrid{m: means}, palette.Heat(12, 1))
	p.Add(hm)

	if rows == len(weekdayOrder) {
		ticks := make([]plot.Tick, rows)
		for i, name := range weekdayOrder {
			ticks[i] = plot.Tick{Value: float64(i), Label: name[:3]}
		}
		p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	}
	return savePlot(p, path)
}

// SiteMapPNG scatters the monitoring sites by longitude and latitude,
// colored by each site's mean concentration.
func SiteMapPNG(sites []SiteStat, path string) error {
	if len(sites) == 0 {
		return errors.NewValueError("SiteMapPNG", "no sites")
	}

	p := plot.New()
	p.Title.Text = "Monitoring sites by mean PM2.5"
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"

	pts := make(plotter.XYs, len(sites))
	minM, maxM := sites[0].Mean, sites[0].Mean
	for i, s := range sites {
		pts[i] = plotter.XY{X: s.Lon, Y: s.Lat}
		if s.Mean < minM {
			minM = s.Mean
		}
		if s.Mean > maxM {
			maxM = s.Mean
		}
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build site scatter")
	}

	colors := palette.Heat(10, 1).Colors()
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		t := 0.0
		if maxM > minM {
			t = (sites[i].Mean - minM) / (maxM - minM)
		}
		ci := int(t * float64(len(colors)-1))
		return draw.GlyphStyle{
			Color:  colors[ci],
			Radius: vg.Points(4),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(scatter)

	return savePlot(p, path)
}

// ACFBarsPNG draws autocorrelation values as a bar chart, one bar per
// lag starting at 0.
func ACFBarsPNG(acf []float64, path string) error {
	if len(acf) == 0 {
		return errors.NewValueError("ACFBarsPNG", "no autocorrelation values")
	}

	p := plot.New()
	p.Title.Text = "Hourly PM2.5 autocorrelation"
	p.X.Label.Text = "lag (hours)"
	p.Y.Label.Text = "correlation"

	bars, err := plotter.NewBarChart(plotter.Values(acf), vg.Points(6))
	if err != nil {
		return errors.Wrap(err, "failed to build bar chart")
	}
	p.Add(bars)

	return savePlot(p, path)
}
