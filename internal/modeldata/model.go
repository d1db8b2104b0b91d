// Package modeldata extracts typed metadata for a single BigQuery ML model.
//
// A Model is built from the catalog descriptor of the model and exposes the
// hyperparameters, evaluation metrics, feature importance, training summary
// and tuning trials in the uniform shapes the registry table stores. Every
// accessor is checked against the model type's capabilities before any data
// is read.
package modeldata

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/pkg/logger"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
)

const (
	// labelOption is the training option naming the label columns.
	labelOption      = "inputLabelColumns"
	numTrialsOption  = "numTrials"
	predictedPrefix  = "predicted_"
	trialIDColumn    = "trial_id"
	featureColumn    = "feature"
	defaultSQLRegion = "us"
)

// Warehouse is what the extractor needs from a connector.
type Warehouse interface {
	connector.Querier
	connector.ModelCatalog
}

// Feature is a feature column name.
type Feature struct {
	Name string `json:"name"`
}

// FeatureImportance is the tree importance of one feature.
type FeatureImportance struct {
	Name   string               `json:"name"`
	Weight bigquery.NullFloat64 `json:"importance_weight"`
	Gain   bigquery.NullFloat64 `json:"importance_gain"`
	Cover  bigquery.NullFloat64 `json:"importance_cover"`
}

// Hyperparameter is one training option. At most one of the values is set.
type Hyperparameter struct {
	Name        string               `json:"name"`
	ValueString bigquery.NullString  `json:"value_string"`
	ValueFloat  bigquery.NullFloat64 `json:"value_float"`
}

// Metric is a named numeric measurement.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Trial is one (trial, column) pair of the tuning results.
type Trial struct {
	TrialID     int64                `json:"trial_id"`
	Name        string               `json:"name"`
	ValueString bigquery.NullString  `json:"value_string"`
	ValueFloat  bigquery.NullFloat64 `json:"value_float"`
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger used for query tracing.
func WithLogger(l *logger.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// Model is the extracted view of one catalog model.
type Model struct {
	wh         Warehouse
	ref        connector.ModelRef
	descriptor *connector.ModelDescriptor
	modelType  mlcapabilities.ModelType
	caps       mlcapabilities.Capability
	metadata   connector.TrainingRun
	logger     *logger.Logger
}

// New fetches the model descriptor and validates its type. Only the first
// (most recent) training run is kept.
func New(ctx context.Context, wh Warehouse, project, dataset, modelID string, opts ...Option) (*Model, error) {
	m := &Model{
		wh:     wh,
		ref:    connector.ModelRef{Project: project, Dataset: dataset, ModelID: modelID},
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	d, err := wh.GetModel(ctx, m.ref)
	if err != nil {
		return nil, m.fail("get model", err)
	}
	m.descriptor = d
	m.modelType = mlcapabilities.ModelType(d.Type)
	m.caps = mlcapabilities.CapabilitiesOf(m.modelType)

	if !m.caps.Supported {
		return nil, m.fail("get model", fmt.Errorf("%w: %s", ErrUnsupportedModelType, d.Type))
	}
	if len(d.TrainingRuns) > 0 {
		m.metadata = d.TrainingRuns[0]
	}

	m.logger.Debugf("loaded %s model %s with %d training runs", m.modelType, m.ref, len(d.TrainingRuns))
	return m, nil
}

// Ref returns the model address.
func (m *Model) Ref() connector.ModelRef { return m.ref }

// ModelID returns the model name within its dataset.
func (m *Model) ModelID() string { return m.ref.ModelID }

// ModelType returns the catalog type.
func (m *Model) ModelType() mlcapabilities.ModelType { return m.modelType }

// Capabilities returns the capability flags of the model type.
func (m *Model) Capabilities() mlcapabilities.Capability { return m.caps }

// Created returns the date the model finished training.
func (m *Model) Created() civil.Date { return m.descriptor.Created() }

// Metadata returns the training run the model exposes.
func (m *Model) Metadata() connector.TrainingRun { return m.metadata }

// IsTuning reports whether the model was trained with hyperparameter tuning.
func (m *Model) IsTuning() bool {
	v, ok := m.metadata.Options.Get(numTrialsOption)
	if !ok {
		return false
	}
	n, ok := v.Float()
	return ok && n > 0
}

// Target returns the single label column.
func (m *Model) Target() (string, error) {
	labels := m.labelColumns()
	switch {
	case len(labels) == 0:
		return "", m.fail("fetch target", ErrTargetUnavailable)
	case len(labels) > 1:
		return "", m.fail("fetch target", fmt.Errorf("%w: %s", ErrMultiLabelUnsupported, strings.Join(labels, ", ")))
	}
	return labels[0], nil
}

// labelColumns prefers the training options and falls back to the
// descriptor's label columns, which carry a predicted_ prefix.
func (m *Model) labelColumns() []string {
	if v, ok := m.metadata.Options.Get(labelOption); ok {
		switch v.Kind() {
		case connector.KindList:
			return v.List()
		case connector.KindText:
			return []string{v.String()}
		}
	}
	labels := make([]string, 0, len(m.descriptor.LabelColumns))
	for _, l := range m.descriptor.LabelColumns {
		labels = append(labels, strings.TrimPrefix(l, predictedPrefix))
	}
	return labels
}

// FeatureNames returns the feature columns in declaration order.
func (m *Model) FeatureNames() []Feature {
	features := make([]Feature, 0, len(m.descriptor.FeatureColumns))
	for _, name := range m.descriptor.FeatureColumns {
		features = append(features, Feature{Name: name})
	}
	return features
}

// FeatureImportance queries ML.FEATURE_IMPORTANCE for tree models.
func (m *Model) FeatureImportance(ctx context.Context) ([]FeatureImportance, error) {
	if !m.caps.Tree {
		return nil, m.fail("fetch feature importance", ErrFeatureImportanceUnsupported)
	}

	sql := featureImportanceSQL(m.ref)
	m.logger.Debugf("querying feature importance for %s", m.ref)
	res, err := m.wh.Query(ctx, sql)
	if err != nil {
		return nil, m.fail("fetch feature importance", err)
	}

	out := make([]FeatureImportance, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		out = append(out, FeatureImportance{
			Name:   res.Get(i, featureColumn).String(),
			Weight: nullFloat(res.Get(i, "importance_weight")),
			Gain:   nullFloat(res.Get(i, "importance_gain")),
			Cover:  nullFloat(res.Get(i, "importance_cover")),
		})
	}
	return out, nil
}

// Hyperparameters returns every training option except the label columns.
// Text and list values go to ValueString, everything else to ValueFloat.
// Options reported as null are skipped.
func (m *Model) Hyperparameters() []Hyperparameter {
	opts := m.metadata.Options
	out := make([]Hyperparameter, 0, opts.Len())
	for _, key := range opts.Keys() {
		if key == labelOption {
			continue
		}
		v, _ := opts.Get(key)
		if v.IsNull() {
			continue
		}
		s, f := v.Split()
		out = append(out, Hyperparameter{Name: key, ValueString: s, ValueFloat: f})
	}
	return out
}

// EvaluationMetrics flattens the regression or classification metrics of
// the training run.
func (m *Model) EvaluationMetrics() ([]Metric, error) {
	if m.IsTuning() {
		return nil, m.fail("fetch evaluation metrics", ErrTuningMetricsUnavailable)
	}
	if !m.caps.HasMetrics() {
		return nil, m.fail("fetch evaluation metrics", ErrUnsupportedMetrics)
	}

	eval := m.metadata.EvaluationMetrics
	if m.caps.Regression {
		v, _ := eval.Get("regressionMetrics")
		return flatten(v.Object()), nil
	}
	for _, key := range []string{"binaryClassificationMetrics", "multiClassClassificationMetrics"} {
		if v, ok := eval.Get(key); ok {
			agg, _ := v.Object().Get("aggregateClassificationMetrics")
			return flatten(agg.Object()), nil
		}
	}
	return []Metric{}, nil
}

// TrainingInfo flattens the first result of the training run.
func (m *Model) TrainingInfo() ([]Metric, error) {
	if len(m.metadata.Results) == 0 {
		return nil, m.fail("fetch training info", ErrTrainingInfoUnavailable)
	}
	return flatten(m.metadata.Results[0]), nil
}

// TrialInfo queries ML.TRIAL_INFO and unpivots every non trial_id column of
// every trial into its own row.
func (m *Model) TrialInfo(ctx context.Context) ([]Trial, error) {
	if !m.IsTuning() {
		return nil, m.fail("fetch trial info", ErrTuningNotApplicable)
	}

	m.logger.Debugf("querying trial info for %s", m.ref)
	res, err := m.wh.Query(ctx, trialInfoSQL(m.ref))
	if err != nil {
		return nil, m.fail("fetch trial info", err)
	}
	idx := res.ColumnIndex(trialIDColumn)
	if idx < 0 {
		return nil, m.fail("fetch trial info", fmt.Errorf("%w: result has no trial_id column", ErrInvalidTrialInfo))
	}

	out := make([]Trial, 0, res.Len()*(len(res.Columns)-1))
	for i, row := range res.Rows {
		raw := res.Get(i, trialIDColumn)
		id, ok := raw.Float()
		if !ok || raw.Kind() == connector.KindBool {
			return nil, m.fail("fetch trial info", fmt.Errorf("%w: row %d has trial_id %q", ErrInvalidTrialInfo, i, raw.String()))
		}
		for j, col := range res.Columns {
			if j == idx {
				continue
			}
			var v connector.Value
			if j < len(row) {
				v = row[j]
			}
			s, f := v.Split()
			out = append(out, Trial{TrialID: int64(id), Name: col, ValueString: s, ValueFloat: f})
		}
	}
	return out, nil
}

// GenerateModelSQL finds the CREATE MODEL statement in the job history of the
// model's project. The model must have been created by a job in that project.
func (m *Model) GenerateModelSQL(ctx context.Context, region string) (string, error) {
	if region == "" {
		region = defaultSQLRegion
	}
	sql, err := searchModelSQL(m.ref.Project, strings.ToLower(region))
	if err != nil {
		return "", m.fail("generate model sql", err)
	}

	res, err := m.wh.Query(ctx, sql,
		connector.Param{Name: "project_id", Value: m.ref.Project},
		connector.Param{Name: "model_id", Value: m.ref.ModelID},
		connector.Param{Name: "limit_date", Value: m.Created()},
	)
	if err != nil {
		return "", m.fail("generate model sql", err)
	}
	if res.Len() == 0 {
		return "", m.fail("generate model sql", ErrModelSQLNotFound)
	}

	var b strings.Builder
	for i := 0; i < res.Len(); i++ {
		b.WriteString(res.Get(i, "query").String())
	}
	return b.String(), nil
}

// flatten keeps the numeric entries of an object.
func flatten(o connector.Object) []Metric {
	out := make([]Metric, 0, o.Len())
	for _, key := range o.Keys() {
		v, _ := o.Get(key)
		if !v.IsScalar() {
			continue
		}
		f, ok := v.Float()
		if !ok {
			continue
		}
		out = append(out, Metric{Name: key, Value: f})
	}
	return out
}

func nullFloat(v connector.Value) bigquery.NullFloat64 {
	f, ok := v.Float()
	if v.IsNull() || !ok {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: f, Valid: true}
}
