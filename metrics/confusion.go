package metrics

import (
	"fmt"
	"strconv"
	"strings"

	airsiftErrors "github.com/airsift/airsift/pkg/errors"
)

// ConfusionMatrix tallies predictions against ground truth for a
// multiclass problem. Counts[i][j] is the number of samples whose true
// class is i and predicted class is j, so correct predictions sit on the
// diagonal.
type ConfusionMatrix struct {
	// Labels holds the display name of every class, indexed by class id.
	Labels []string

	// Counts is the k x k tally, true class by row, predicted by column.
	Counts [][]int

	// Total is the number of samples tallied.
	Total int
}

// NewConfusionMatrix tallies yTrue against yPred. labels gives the class
// display names and fixes the matrix size; when nil, class ids name
// themselves and the size is inferred from the data.
//
// Parameters:
//   - yTrue: Ground truth class indices
//   - yPred: Predicted class indices
//   - labels: Class display names, indexed by class id (may be nil)
//
// Returns:
//   - The tallied confusion matrix
//   - An error if inputs are invalid
func NewConfusionMatrix(yTrue, yPred []int, labels []string) (*ConfusionMatrix, error) {
	if len(yTrue) == 0 {
		return nil, airsiftErrors.NewValueError(
			"NewConfusionMatrix",
			"input slices cannot be empty",
		)
	}
	if len(yTrue) != len(yPred) {
		return nil, airsiftErrors.NewDimensionError(
			"NewConfusionMatrix",
			len(yTrue),
			len(yPred),
			0,
		)
	}

	k := len(labels)
	if k == 0 {
		for _, y := range yTrue {
			if y+1 > k {
				k = y + 1
			}
		}
		for _, y := range yPred {
			if y+1 > k {
				k = y + 1
			}
		}
		labels = make([]string, k)
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
	}

	counts := make([][]int, k)
	for i := range counts {
		counts[i] = make([]int, k)
	}

	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k {
			return nil, airsiftErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("class index out of range [0, %d) at index %d", k, i),
				t,
			)
		}
		if p < 0 || p >= k {
			return nil, airsiftErrors.NewValidationError(
				"yPred",
				fmt.Sprintf("class index out of range [0, %d) at index %d", k, i),
				p,
			)
		}
		counts[t][p]++
	}

	return &ConfusionMatrix{
		Labels: labels,
		Counts: counts,
		Total:  len(yTrue),
	}, nil
}

// NumClasses returns the number of classes.
func (cm *ConfusionMatrix) NumClasses() int {
	return len(cm.Labels)
}

// Accuracy returns the fraction of samples on the diagonal.
func (cm *ConfusionMatrix) Accuracy() float64 {
	correct := 0
	for i := range cm.Counts {
		correct += cm.Counts[i][i]
	}
	return float64(correct) / float64(cm.Total)
}

// Support returns the number of true samples of class i.
func (cm *ConfusionMatrix) Support(i int) int {
	sum := 0
	for j := range cm.Counts[i] {
		sum += cm.Counts[i][j]
	}
	return sum
}

// Predicted returns the number of samples predicted as class i.
func (cm *ConfusionMatrix) Predicted(i int) int {
	sum := 0
	for t := range cm.Counts {
		sum += cm.Counts[t][i]
	}
	return sum
}

// Precision returns TP / (TP + FP) for class i, or 0 when the class was
// never predicted.
func (cm *ConfusionMatrix) Precision(i int) float64 {
	predicted := cm.Predicted(i)
	if predicted == 0 {
		return 0
	}
	return float64(cm.Counts[i][i]) / float64(predicted)
}

// Recall returns TP / (TP + FN) for class i, or 0 when the class has no
// true samples.
func (cm *ConfusionMatrix) Recall(i int) float64 {
	support := cm.Support(i)
	if support == 0 {
		return 0
	}
	return float64(cm.Counts[i][i]) / float64(support)
}

// F1 returns the harmonic mean of precision and recall for class i.
func (cm *ConfusionMatrix) F1(i int) float64 {
	p := cm.Precision(i)
	r := cm.Recall(i)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// MacroPrecision returns the unweighted mean precision over all classes.
func (cm *ConfusionMatrix) MacroPrecision() float64 {
	sum := 0.0
	for i := range cm.Labels {
		sum += cm.Precision(i)
	}
	return sum / float64(len(cm.Labels))
}

// MacroRecall returns the unweighted mean recall over all classes.
func (cm *ConfusionMatrix) MacroRecall() float64 {
	sum := 0.0
	for i := range cm.Labels {
		sum += cm.Recall(i)
	}
	return sum / float64(len(cm.Labels))
}

// MacroF1 returns the unweighted mean F1 over all classes.
func (cm *ConfusionMatrix) MacroF1() float64 {
	sum := 0.0
	for i := range cm.Labels {
		sum += cm.F1(i)
	}
	return sum / float64(len(cm.Labels))
}

// String renders the matrix as an aligned text table, true classes by
// row and predicted classes by column.
func (cm *ConfusionMatrix) String() string {
	labelWidth := 0
	for _, l := range cm.Labels {
		if len(l) > labelWidth {
			labelWidth = len(l)
		}
	}

	colWidths := make([]int, len(cm.Labels))
	for j, l := range cm.Labels {
		w := len(l)
		for i := range cm.Counts {
			if d := len(strconv.Itoa(cm.Counts[i][j])); d > w {
				w = d
			}
		}
		colWidths[j] = w
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", labelWidth, "")
	for j, l := range cm.Labels {
		fmt.Fprintf(&b, "  %*s", colWidths[j], l)
	}
	b.WriteByte('\n')

	for i, l := range cm.Labels {
		fmt.Fprintf(&b, "%-*s", labelWidth, l)
		for j := range cm.Labels {
			fmt.Fprintf(&b, "  %*d", colWidths[j], cm.Counts[i][j])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ClassMetrics holds precision, recall, and F1 for one class.
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport summarizes per-class and macro-averaged quality
// of a set of predictions.
type ClassificationReport struct {
	Classes        []ClassMetrics
	Accuracy       float64
	MacroPrecision float64
	MacroRecall    float64
	MacroF1        float64
	NSamples       int
}

// Report derives the per-class and macro-averaged metrics from the
// tallied matrix.
func (cm *ConfusionMatrix) Report() *ClassificationReport {
	report := &ClassificationReport{
		Classes:        make([]ClassMetrics, len(cm.Labels)),
		Accuracy:       cm.Accuracy(),
		MacroPrecision: cm.MacroPrecision(),
		MacroRecall:    cm.MacroRecall(),
		MacroF1:        cm.MacroF1(),
		NSamples:       cm.Total,
	}
	for i, label := range cm.Labels {
		report.Classes[i] = ClassMetrics{
			Label:     label,
			Precision: cm.Precision(i),
			Recall:    cm.Recall(i),
			F1:        cm.F1(i),
			Support:   cm.Support(i),
		}
	}
	return report
}

// String renders the report as an aligned text table with one row per
// class plus accuracy and macro average rows.
func (r *ClassificationReport) String() string {
	labelWidth := len("macro avg")
	for _, c := range r.Classes {
		if len(c.Label) > labelWidth {
			labelWidth = len(c.Label)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s  %9s  %9s  %9s\n", labelWidth, "", "precision", "recall", "f1-score", "support")
	b.WriteByte('\n')
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%*s  %9.3f  %9.3f  %9.3f  %9d\n",
			labelWidth, c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%*s  %9s  %9s  %9.3f  %9d\n", labelWidth, "accuracy", "", "", r.Accuracy, r.NSamples)
	fmt.Fprintf(&b, "%*s  %9.3f  %9.3f  %9.3f  %9d\n",
		labelWidth, "macro avg", r.MacroPrecision, r.MacroRecall, r.MacroF1, r.NSamples)
	return b.String()
}
