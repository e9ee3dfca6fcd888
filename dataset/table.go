// Package dataset loads hourly PM2.5 measurement exports and exposes them
// as an immutable, column-oriented Table ready for labeling, sampling, and
// matrix extraction.
//
// A Table row carries the raw measurement (concentration, timestamp,
// coordinates, site and state identifiers) plus two fields derived exactly
// once at load time: hour-of-day and weekday name. Downstream code never
// recomputes them.
package dataset

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/airsift/airsift/pkg/errors"
)

// Column names accepted by NumericMatrix and Categorical.
const (
	ColPM25    = "pm25"
	ColHour    = "hour"
	ColLat     = "lat"
	ColLon     = "lon"
	ColWeekday = "weekday"
	ColSite    = "site_id"
	ColState   = "state_id"
)

// Table is a column-oriented set of measurement rows. All slices have the
// same length. Tables are treated as immutable snapshots: Select copies,
// and no method mutates columns in place.
type Table struct {
	PM25      []float64
	Timestamp []time.Time
	Lat       []float64
	Lon       []float64
	SiteID    []string
	StateID   []string

	// Derived at load time.
	Hour    []int
	Weekday []string
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.PM25)
}

// Select returns a new Table holding the rows at idx, in idx order.
// Indices out of range cause a ValueError.
func (t *Table) Select(idx []int) (*Table, error) {
	n := t.Len()
	out := &Table{
		PM25:      make([]float64, len(idx)),
		Timestamp: make([]time.Time, len(idx)),
		Lat:       make([]float64, len(idx)),
		Lon:       make([]float64, len(idx)),
		SiteID:    make([]string, len(idx)),
		StateID:   make([]string, len(idx)),
		Hour:      make([]int, len(idx)),
		Weekday:   make([]string, len(idx)),
	}
	for j, i := range idx {
		if i < 0 || i >= n {
			return nil, errors.NewValueError("Table.Select", "row index out of range")
		}
		out.PM25[j] = t.PM25[i]
		out.Timestamp[j] = t.Timestamp[i]
		out.Lat[j] = t.Lat[i]
		out.Lon[j] = t.Lon[i]
		out.SiteID[j] = t.SiteID[i]
		out.StateID[j] = t.StateID[i]
		out.Hour[j] = t.Hour[i]
		out.Weekday[j] = t.Weekday[i]
	}
	return out, nil
}

// NumericMatrix extracts the named numeric columns into an
// (n_rows x len(cols)) dense matrix in the given column order.
func (t *Table) NumericMatrix(cols []string) (*mat.Dense, error) {
	if t.Len() == 0 {
		return nil, errors.NewModelError("Table.NumericMatrix", "empty table", errors.ErrEmptyData)
	}
	if len(cols) == 0 {
		return nil, errors.NewValueError("Table.NumericMatrix", "no columns requested")
	}

	out := mat.NewDense(t.Len(), len(cols), nil)
	for j, col := range cols {
		switch col {
		case ColPM25:
			for i, v := range t.PM25 {
				out.Set(i, j, v)
			}
		case ColHour:
			for i, v := range t.Hour {
				out.Set(i, j, float64(v))
			}
		case ColLat:
			for i, v := range t.Lat {
				out.Set(i, j, v)
			}
		case ColLon:
			for i, v := range t.Lon {
				out.Set(i, j, v)
			}
		default:
			return nil, errors.NewValueError("Table.NumericMatrix", "unknown numeric column: "+col)
		}
	}
	return out, nil
}

// Categorical extracts the named string columns as one row of values per
// table row, the layout OneHotEncoder consumes.
func (t *Table) Categorical(cols []string) ([][]string, error) {
	if t.Len() == 0 {
		return nil, errors.NewModelError("Table.Categorical", "empty table", errors.ErrEmptyData)
	}
	if len(cols) == 0 {
		return nil, errors.NewValueError("Table.Categorical", "no columns requested")
	}

	out := make([][]string, t.Len())
	for i := range out {
		row := make([]string, len(cols))
		for j, col := range cols {
			switch col {
			case ColWeekday:
				row[j] = t.Weekday[i]
			case ColSite:
				row[j] = t.SiteID[i]
			case ColState:
				row[j] = t.StateID[i]
			default:
				return nil, errors.NewValueError("Table.Categorical", "unknown categorical column: "+col)
			}
		}
		out[i] = row
	}
	return out, nil
}

// appendRow adds one parsed measurement, deriving hour and weekday from ts.
func (t *Table) appendRow(pm25 float64, ts time.Time, lat, lon float64, site, state string) {
	t.PM25 = append(t.PM25, pm25)
	t.Timestamp = append(t.Timestamp, ts)
	t.Lat = append(t.Lat, lat)
	t.Lon = append(t.Lon, lon)
	t.SiteID = append(t.SiteID, site)
	t.StateID = append(t.StateID, state)
	t.Hour = append(t.Hour, ts.Hour())
	t.Weekday = append(t.Weekday, ts.Weekday().String())
}
