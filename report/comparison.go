// Package report renders the study's outputs: the model comparison
// table, the held-out evaluation report, the feature-importance chart,
// and the model card written beside the saved pipeline.
package report

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/airsift/airsift/selection"
)

// ComparisonRow is one family's best tuning outcome.
type ComparisonRow struct {
	Rank      int
	Family    string
	MeanScore float64
	StdScore  float64
	Folds     int
	Params    string
}

// Comparison is the cross-family model ranking.
type Comparison struct {
	Rows []ComparisonRow
}

// NewComparison builds a ranking table from tuning results, preserving
// their rank order. It renders both the cross-family comparison and the
// full candidate log of a run.
func NewComparison(results []selection.TuningResult) *Comparison {
	rows := make([]ComparisonRow, len(results))
	for i, res := range results {
		rows[i] = ComparisonRow{
			Rank:      res.Rank,
			Family:    res.Family,
			MeanScore: res.MeanScore,
			StdScore:  res.StdScore,
			Folds:     len(res.FoldScores),
			Params:    FormatParams(res.Params),
		}
	}
	return &Comparison{Rows: rows}
}

// String renders an aligned text table.
func (c *Comparison) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "RANK\tFAMILY\tCV ACCURACY\tFOLDS\tPARAMS")
	for _, row := range c.Rows {
		fmt.Fprintf(w, "%d\t%s\t%.4f ± %.4f\t%d\t%s\n",
			row.Rank, row.Family, row.MeanScore, row.StdScore, row.Folds, row.Params)
	}
	_ = w.Flush()
	return sb.String()
}

// Markdown renders a pipe table.
func (c *Comparison) Markdown() string {
	var sb strings.Builder
	sb.WriteString("| Rank | Family | CV Accuracy | Folds | Params |\n")
	sb.WriteString("|-----:|:-------|:------------|------:|:-------|\n")
	for _, row := range c.Rows {
		fmt.Fprintf(&sb, "| %d | %s | %.4f ± %.4f | %d | %s |\n",
			row.Rank, row.Family, row.MeanScore, row.StdScore, row.Folds, row.Params)
	}
	return sb.String()
}

// Best returns the top row, or nil for an empty table.
func (c *Comparison) Best() *ComparisonRow {
	if len(c.Rows) == 0 {
		return nil
	}
	return &c.Rows[0]
}

// FormatParams renders a parameter map as "key=value" pairs in sorted
// key order.
func FormatParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return "defaults"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, ", ")
}
