// Package eda computes the exploratory summaries and figures of the
// PM2.5 study: distribution statistics, daily and hourly structure,
// per-site aggregates, and autocorrelation.
package eda

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/airsift/airsift/dataset"
	"github.com/airsift/airsift/pkg/errors"
)

// Summary holds the five-number summary plus mean and deviation.
type Summary struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
}

// Summarize computes a Summary over values.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, errors.NewValueError("Summarize", "no values")
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(values),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	return s, nil
}

// GroupedSummaries computes one Summary per distinct key. Keys and
// values pair up by index, so any grouping (category, site, hour) works.
func GroupedSummaries(keys []string, values []float64) (map[string]Summary, error) {
	if len(keys) != len(values) {
		return nil, errors.NewDimensionError("GroupedSummaries", len(keys), len(values), 0)
	}
	groups := make(map[string][]float64)
	for i, key := range keys {
		groups[key] = append(groups[key], values[i])
	}

	out := make(map[string]Summary, len(groups))
	for key, vals := range groups {
		s, err := Summarize(vals)
		if err != nil {
			return nil, err
		}
		out[key] = s
	}
	return out, nil
}

// DailyMeans averages PM2.5 per calendar day and returns the days in
// ascending order.
func DailyMeans(tbl *dataset.Table) ([]time.Time, []float64, error) {
	if tbl.Len() == 0 {
		return nil, nil, errors.NewValueError("DailyMeans", "empty table")
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for i, ts := range tbl.Timestamp {
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		sums[day] += tbl.PM25[i]
		counts[day]++
	}

	days := make([]time.Time, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	means := make([]float64, len(days))
	for i, day := range days {
		means[i] = sums[day] / float64(counts[day])
	}
	return days, means, nil
}

// weekdayOrder maps Go weekday names onto heatmap rows, Monday first.
var weekdayOrder = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// WeekdayNames returns the heatmap row labels, Monday first.
func WeekdayNames() []string {
	return append([]string(nil), weekdayOrder...)
}

// HourWeekdayMeans returns a 7 x 24 matrix of mean PM2.5 by weekday row
// (Monday first) and hour column. Cells with no observations stay zero.
func HourWeekdayMeans(tbl *dataset.Table) (*mat.Dense, error) {
	if tbl.Len() == 0 {
		return nil, errors.NewValueError("HourWeekdayMeans", "empty table")
	}

	rowOf := make(map[string]int, len(weekdayOrder))
	for i, name := range weekdayOrder {
		rowOf[name] = i
	}

	sums := mat.NewDense(7, 24, nil)
	counts := mat.NewDense(7, 24, nil)
	for i := range tbl.PM25 {
		row, ok := rowOf[tbl.Weekday[i]]
		if !ok {
			return nil, errors.NewValueError("HourWeekdayMeans", "unknown weekday: "+tbl.Weekday[i])
		}
		hour := tbl.Hour[i]
		if hour < 0 || hour > 23 {
			return nil, errors.NewValueError("HourWeekdayMeans", "hour out of range")
		}
		sums.Set(row, hour, sums.At(row, hour)+tbl.PM25[i])
		counts.Set(row, hour, counts.At(row, hour)+1)
	}

	means := mat.NewDense(7, 24, nil)
	for r := 0; r < 7; r++ {
		for c := 0; c < 24; c++ {
			if n := counts.At(r, c); n > 0 {
				means.Set(r, c, sums.At(r, c)/n)
			}
		}
	}
	return means, nil
}

// SiteStat aggregates one monitoring site.
type SiteStat struct {
	SiteID string
	Lat    float64
	Lon    float64
	Mean   float64
	Count  int
}

// SiteStats returns per-site mean concentration and location, sorted by
// site id. The site location is the first observation's coordinates.
func SiteStats(tbl *dataset.Table) ([]SiteStat, error) {
	if tbl.Len() == 0 {
		return nil, errors.NewValueError("SiteStats", "empty table")
	}

	byID := make(map[string]*SiteStat)
	sums := make(map[string]float64)
	for i, id := range tbl.SiteID {
		s, ok := byID[id]
		if !ok {
			s = &SiteStat{SiteID: id, Lat: tbl.Lat[i], Lon: tbl.Lon[i]}
			byID[id] = s
		}
		sums[id] += tbl.PM25[i]
		s.Count++
	}

	out := make([]SiteStat, 0, len(byID))
	for id, s := range byID {
		s.Mean = sums[id] / float64(s.Count)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SiteID < out[j].SiteID })
	return out, nil
}

// SeriesByTime returns the PM2.5 values ordered by timestamp, the input
// for autocorrelation.
func SeriesByTime(tbl *dataset.Table) []float64 {
	idx := make([]int, tbl.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return tbl.Timestamp[idx[a]].Before(tbl.Timestamp[idx[b]])
	})

	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = tbl.PM25[j]
	}
	return out
}
