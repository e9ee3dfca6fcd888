package pipeline

import (
	"encoding/gob"

	"github.com/airsift/airsift/models/bayes"
	"github.com/airsift/airsift/models/ensemble"
	"github.com/airsift/airsift/models/linear"
	"github.com/airsift/airsift/models/svm"
	"github.com/airsift/airsift/models/tree"
)

// The Model field is an interface, so every classifier that can sit in
// a pipeline must be registered before gob sees one.
func init() {
	gob.Register(&linear.LogisticRegression{})
	gob.Register(&linear.LassoLogistic{})
	gob.Register(&tree.DecisionTreeClassifier{})
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&ensemble.GradientBoostingClassifier{})
	gob.Register(&svm.LinearSVC{})
	gob.Register(&bayes.GaussianNB{})
}
