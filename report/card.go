package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/airsift/airsift/pkg/errors"
)

// ModelCard is the JSON snapshot written beside the saved pipeline so
// the artifact is self-describing.
type ModelCard struct {
	Family       string                 `json:"family"`
	Params       map[string]interface{} `json:"params"`
	CVScore      float64                `json:"cv_score"`
	TestAccuracy float64                `json:"test_accuracy"`
	FeatureNames []string               `json:"feature_names"`
	ClassNames   []string               `json:"class_names"`
	ArtifactPath string                 `json:"artifact_path"`
	CreatedAt    time.Time              `json:"created_at"`
}

// WriteJSON writes the card, indented, to path.
func (m *ModelCard) WriteJSON(path string) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal model card")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write model card: %s", path)
	}
	return nil
}

// ReadModelCard loads a card written by WriteJSON.
func ReadModelCard(path string) (*ModelCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model card: %s", path)
	}
	var card ModelCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal model card")
	}
	return &card, nil
}
