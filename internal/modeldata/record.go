package modeldata

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
)

// ModelRecord is every section the model's type supports, assembled for
// display. Sections the type cannot provide are left empty.
type ModelRecord struct {
	Project           string                   `json:"project"`
	Dataset           string                   `json:"dataset"`
	ModelID           string                   `json:"model_id"`
	ModelType         mlcapabilities.ModelType `json:"model_type"`
	Created           civil.Date               `json:"created"`
	Target            string                   `json:"target"`
	IsTuning          bool                     `json:"is_tuning"`
	Features          []Feature                `json:"features,omitempty"`
	FeatureImportance []FeatureImportance      `json:"feature_importance,omitempty"`
	Hyperparameters   []Hyperparameter         `json:"hyperparameters"`
	EvaluationMetrics []Metric                 `json:"evaluation_metrics,omitempty"`
	TrainingInfo      []Metric                 `json:"training_info,omitempty"`
	Trials            []Trial                  `json:"trial_info,omitempty"`
}

// Record extracts all sections that apply to the model.
func (m *Model) Record(ctx context.Context) (*ModelRecord, error) {
	target, err := m.Target()
	if err != nil {
		return nil, err
	}

	rec := &ModelRecord{
		Project:         m.ref.Project,
		Dataset:         m.ref.Dataset,
		ModelID:         m.ref.ModelID,
		ModelType:       m.modelType,
		Created:         m.Created(),
		Target:          target,
		IsTuning:        m.IsTuning(),
		Hyperparameters: m.Hyperparameters(),
	}

	if m.caps.Tree {
		if rec.FeatureImportance, err = m.FeatureImportance(ctx); err != nil {
			return nil, err
		}
	} else {
		rec.Features = m.FeatureNames()
	}

	if rec.IsTuning {
		if rec.Trials, err = m.TrialInfo(ctx); err != nil {
			return nil, err
		}
	} else if m.caps.HasMetrics() {
		if rec.EvaluationMetrics, err = m.EvaluationMetrics(); err != nil {
			return nil, err
		}
	}

	if len(m.metadata.Results) > 0 {
		if rec.TrainingInfo, err = m.TrainingInfo(); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
