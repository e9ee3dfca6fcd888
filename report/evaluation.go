package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/airsift/airsift/metrics"
	"github.com/airsift/airsift/pkg/errors"
)

// FeatureImportance pairs a design-matrix column with its weight.
type FeatureImportance struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// TopImportances ranks features by weight, largest first, and keeps the
// top k. k <= 0 or k beyond the feature count keeps all.
func TopImportances(names []string, weights []float64, k int) ([]FeatureImportance, error) {
	if len(names) != len(weights) {
		return nil, errors.NewDimensionError("TopImportances", len(names), len(weights), 0)
	}

	out := make([]FeatureImportance, len(names))
	for i, name := range names {
		out[i] = FeatureImportance{Name: name, Weight: weights[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })

	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// Evaluation is the final held-out assessment of the chosen model.
type Evaluation struct {
	Family       string
	Params       map[string]interface{}
	CVScore      float64
	TestAccuracy float64
	Confusion    *metrics.ConfusionMatrix
	Report       *metrics.ClassificationReport
	Importances  []FeatureImportance
}

// String renders the full evaluation: header, confusion matrix,
// per-class metrics, and the importance ranking.
func (e *Evaluation) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Family:        %s\n", e.Family)
	fmt.Fprintf(&sb, "Params:        %s\n", FormatParams(e.Params))
	fmt.Fprintf(&sb, "CV accuracy:   %.4f\n", e.CVScore)
	fmt.Fprintf(&sb, "Test accuracy: %.4f\n", e.TestAccuracy)

	if e.Confusion != nil {
		sb.WriteString("\n")
		sb.WriteString(e.Confusion.String())
	}
	if e.Report != nil {
		sb.WriteString("\n")
		sb.WriteString(e.Report.String())
	}
	if len(e.Importances) > 0 {
		sb.WriteString("\nTop features:\n")
		for i, imp := range e.Importances {
			fmt.Fprintf(&sb, "  %2d. %-24s %.4f\n", i+1, imp.Name, imp.Weight)
		}
	}
	return sb.String()
}
