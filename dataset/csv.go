package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/pkg/log"
)

// Options controls CSV ingestion. Zero-value fields fall back to the
// defaults of DefaultOptions, which match the hourly EPA-style export the
// study consumes.
type Options struct {
	PM25Column  string // concentration column (default "pm25")
	DateColumn  string // date column (default "date")
	TimeColumn  string // time-of-day column; empty means DateColumn carries the full timestamp
	LatColumn   string // default "latitude"
	LonColumn   string // default "longitude"
	SiteColumn  string // default "site_id"
	StateColumn string // default "state_id"

	DateLayouts []string // candidate time.Parse layouts for the date column
	NAValues    []string // tokens treated as missing (row skipped)
	Delimiter   rune     // default ','
	SkipRows    int      // rows discarded before the header

	// MaxBadRowFraction aborts the load when more than this fraction of
	// data rows fail to parse. Guards against a wrong column mapping
	// silently producing a near-empty table.
	MaxBadRowFraction float64
}

// DefaultOptions returns the column mapping and parsing defaults for the
// hourly measurement export.
func DefaultOptions() Options {
	return Options{
		PM25Column:  "pm25",
		DateColumn:  "date",
		TimeColumn:  "time",
		LatColumn:   "latitude",
		LonColumn:   "longitude",
		SiteColumn:  "site_id",
		StateColumn: "state_id",
		DateLayouts: []string{
			"2006-01-02",
			"2006/01/02",
			"01/02/2006",
			"2006-01-02 15:04:05",
			"2006-01-02T15:04:05",
		},
		NAValues:          []string{"", "NA", "NaN", "null", "-999"},
		Delimiter:         ',',
		MaxBadRowFraction: 0.1,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PM25Column == "" {
		o.PM25Column = def.PM25Column
	}
	if o.DateColumn == "" {
		o.DateColumn = def.DateColumn
	}
	if o.TimeColumn == "" {
		o.TimeColumn = def.TimeColumn
	}
	if o.LatColumn == "" {
		o.LatColumn = def.LatColumn
	}
	if o.LonColumn == "" {
		o.LonColumn = def.LonColumn
	}
	if o.SiteColumn == "" {
		o.SiteColumn = def.SiteColumn
	}
	if o.StateColumn == "" {
		o.StateColumn = def.StateColumn
	}
	if len(o.DateLayouts) == 0 {
		o.DateLayouts = def.DateLayouts
	}
	if len(o.NAValues) == 0 {
		o.NAValues = def.NAValues
	}
	if o.Delimiter == 0 {
		o.Delimiter = def.Delimiter
	}
	if o.MaxBadRowFraction == 0 {
		o.MaxBadRowFraction = def.MaxBadRowFraction
	}
	return o
}

// ReadCSV loads the measurement file at path.
func ReadCSV(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()

	tbl, err := ReadCSVFrom(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return tbl, nil
}

// ReadCSVFrom loads measurements from r. The first non-skipped row must be
// a header naming the configured columns. Rows with missing or unparsable
// values are skipped and counted; the load fails if skipped rows exceed
// Options.MaxBadRowFraction of the data rows seen.
func ReadCSVFrom(r io.Reader, opts Options) (*Table, error) {
	opts = opts.withDefaults()
	logger := log.GetLoggerWithName("dataset")

	reader := csv.NewReader(r)
	reader.Comma = opts.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, errors.Wrap(err, "failed to skip leading rows")
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	idx := map[string]int{}
	for i, h := range header {
		idx[normalizeHeader(h)] = i
	}

	col := func(name string) (int, bool) {
		i, ok := idx[normalizeHeader(name)]
		return i, ok
	}

	pmIdx, ok := col(opts.PM25Column)
	if !ok {
		return nil, errors.NewValueError("ReadCSV", "missing concentration column: "+opts.PM25Column)
	}
	dateIdx, ok := col(opts.DateColumn)
	if !ok {
		return nil, errors.NewValueError("ReadCSV", "missing date column: "+opts.DateColumn)
	}
	timeIdx := -1
	if opts.TimeColumn != "" {
		// The time column is optional even when named; hourly exports vary.
		if i, ok := col(opts.TimeColumn); ok {
			timeIdx = i
		}
	}
	latIdx, latOK := col(opts.LatColumn)
	lonIdx, lonOK := col(opts.LonColumn)
	if !latOK || !lonOK {
		return nil, errors.NewValueError("ReadCSV", "missing coordinate columns")
	}
	siteIdx, siteOK := col(opts.SiteColumn)
	stateIdx, stateOK := col(opts.StateColumn)

	na := make(map[string]struct{}, len(opts.NAValues))
	for _, v := range opts.NAValues {
		na[v] = struct{}{}
	}

	tbl := &Table{}
	var seen, skipped int

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read row")
		}
		seen++

		pm25, ok := parseFloatField(record, pmIdx, na)
		if !ok || pm25 < 0 {
			skipped++
			continue
		}

		ts, ok := parseTimestamp(record, dateIdx, timeIdx, opts.DateLayouts, na)
		if !ok {
			skipped++
			continue
		}

		lat, latOK := parseFloatField(record, latIdx, na)
		lon, lonOK := parseFloatField(record, lonIdx, na)
		if !latOK || !lonOK {
			skipped++
			continue
		}

		site, state := "", ""
		if siteOK {
			site = fieldAt(record, siteIdx)
		}
		if stateOK {
			state = fieldAt(record, stateIdx)
		}

		tbl.appendRow(pm25, ts, lat, lon, site, state)
	}

	if tbl.Len() == 0 {
		return nil, errors.NewModelError("ReadCSV", "no valid rows", errors.ErrEmptyData)
	}
	if seen > 0 && float64(skipped) > opts.MaxBadRowFraction*float64(seen) {
		return nil, errors.NewValueError("ReadCSV",
			"too many malformed rows: "+strconv.Itoa(skipped)+" of "+strconv.Itoa(seen))
	}

	logger.Info("Dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.RowsKey, tbl.Len(),
		log.SkippedKey, skipped,
	)
	return tbl, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(h, "\"")))
}

func fieldAt(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(record[i], "\""))
}

func parseFloatField(record []string, i int, na map[string]struct{}) (float64, bool) {
	s := fieldAt(record, i)
	if _, isNA := na[s]; isNA {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	// ParseFloat accepts spellings like "nan", "NAN", and "+Inf" that the
	// NA token list never sees. Non-finite values follow the skip policy.
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseTimestamp combines the date column with an optional time-of-day
// column. The time column accepts "15:04", "15:04:05", and a bare hour
// integer ("0".."23").
func parseTimestamp(record []string, dateIdx, timeIdx int, layouts []string, na map[string]struct{}) (time.Time, bool) {
	dateStr := fieldAt(record, dateIdx)
	if _, isNA := na[dateStr]; isNA {
		return time.Time{}, false
	}

	var ts time.Time
	var err error
	for _, layout := range layouts {
		ts, err = time.Parse(layout, dateStr)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, false
	}

	if timeIdx < 0 {
		return ts, true
	}

	timeStr := fieldAt(record, timeIdx)
	if _, isNA := na[timeStr]; isNA {
		return ts, true
	}

	for _, layout := range []string{"15:04:05", "15:04"} {
		if tt, terr := time.Parse(layout, timeStr); terr == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(),
				tt.Hour(), tt.Minute(), tt.Second(), 0, ts.Location()), true
		}
	}
	if hour, herr := strconv.Atoi(timeStr); herr == nil && hour >= 0 && hour <= 23 {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, 0, 0, 0, ts.Location()), true
	}

	// Unparsable time, usable date: keep the row at midnight.
	return ts, true
}
