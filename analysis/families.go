package analysis

import (
	"sort"
	"strings"

	"github.com/airsift/airsift/core/model"
	"github.com/airsift/airsift/models/bayes"
	"github.com/airsift/airsift/models/ensemble"
	"github.com/airsift/airsift/models/linear"
	"github.com/airsift/airsift/models/svm"
	"github.com/airsift/airsift/models/tree"
	"github.com/airsift/airsift/pkg/errors"
	"github.com/airsift/airsift/selection"
)

// Family pairs a model constructor with the hyperparameter grid searched
// for it. Make returns a fresh unfitted classifier; grid candidates are
// applied through SetParams.
type Family struct {
	Name string
	Make func(seed int64) model.Classifier
	Grid selection.ParamGrid
}

// Families returns every registered model family in presentation order.
// The seed feeds the stochastic families (tree splits, forest bootstraps,
// boosting subsamples, SGD shuffling) so repeated studies reproduce.
func Families(seed int64) []Family {
	return []Family{
		{
			Name: "logistic",
			Make: func(int64) model.Classifier {
				return linear.NewLogisticRegression()
			},
			Grid: selection.ParamGrid{
				"C": {0.01, 0.1, 1.0, 10.0},
			},
		},
		{
			Name: "lasso",
			Make: func(int64) model.Classifier {
				return linear.NewLassoLogistic()
			},
			Grid: selection.ParamGrid{
				"lambda": {1e-4, 1e-3, 1e-2, 1e-1},
			},
		},
		{
			Name: "tree",
			Make: func(seed int64) model.Classifier {
				return tree.NewDecisionTreeClassifier(tree.WithDTRandomState(seed))
			},
			Grid: selection.ParamGrid{
				"max_depth":         {3, 5, 10, -1},
				"min_samples_split": {2, 10},
			},
		},
		{
			Name: "forest",
			Make: func(seed int64) model.Classifier {
				return ensemble.NewRandomForestClassifier(ensemble.WithRFRandomState(seed))
			},
			Grid: selection.ParamGrid{
				"n_estimators": {100, 300},
				"max_features": {"sqrt", "all"},
			},
		},
		{
			Name: "gbm",
			Make: func(seed int64) model.Classifier {
				return ensemble.NewGradientBoostingClassifier(ensemble.WithGBRandomState(seed))
			},
			Grid: selection.ParamGrid{
				"n_estimators":  {100, 200},
				"learning_rate": {0.05, 0.1},
				"max_depth":     {2, 3},
			},
		},
		{
			Name: "svm",
			Make: func(seed int64) model.Classifier {
				return svm.NewLinearSVC(svm.WithSVCRandomState(seed))
			},
			Grid: selection.ParamGrid{
				"alpha": {1e-5, 1e-4, 1e-3, 1e-2},
				"loss":  {"hinge", "squared_hinge"},
			},
		},
		{
			Name: "bayes",
			Make: func(int64) model.Classifier {
				return bayes.NewGaussianNB()
			},
			Grid: selection.ParamGrid{
				"var_smoothing": {1e-9, 1e-8, 1e-7},
			},
		},
	}
}

// FamilyNames lists the registered family names in presentation order.
func FamilyNames() []string {
	families := Families(0)
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.Name
	}
	return names
}

// selectFamilies filters the registry down to the named families,
// keeping registry order. An empty name list selects everything.
func selectFamilies(all []Family, names []string) ([]Family, error) {
	if len(names) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make([]Family, 0, len(names))
	for _, f := range all {
		if wanted[f.Name] {
			out = append(out, f)
			delete(wanted, f.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for n := range wanted {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, errors.NewValueError("analysis",
			"unknown model families: "+strings.Join(unknown, ", ")+
				" (known: "+strings.Join(FamilyNames(), ", ")+")")
	}
	return out, nil
}

// familyByName finds one family in the registry.
func familyByName(all []Family, name string) (Family, bool) {
	for _, f := range all {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}
