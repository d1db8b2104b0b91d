// Package schema builds the column layout of a registry table from the set
// of enabled metadata sections.
package schema

import (
	"cloud.google.com/go/bigquery"
)

// Column names of the registry table.
const (
	ColumnModelName = "model_name"
	ColumnCreated   = "created"
	ColumnType      = "type"
	ColumnTarget    = "target"
	ColumnIsTuning  = "is_tuning"

	ColumnFeatures    = "features"
	ColumnEval        = "eval"
	ColumnTraining    = "training"
	ColumnHyperparams = "hyperparams"
	ColumnTuning      = "tuning"
)

// Field names inside the repeated records.
const (
	FieldName             = "name"
	FieldValue            = "value"
	FieldValueString      = "value_string"
	FieldValueFloat       = "value_float"
	FieldTrialID          = "trial_id"
	FieldImportanceWeight = "importance_weight"
	FieldImportanceGain   = "importance_gain"
	FieldImportanceCover  = "importance_cover"
)

// Config selects the optional sections of a registry table.
type Config struct {
	FeatureImportance bool `mapstructure:"feature_importance" yaml:"feature_importance" json:"feature_importance"`
	Evaluation        bool `mapstructure:"evaluation" yaml:"evaluation" json:"evaluation"`
	TrainingInfo      bool `mapstructure:"training_info" yaml:"training_info" json:"training_info"`
	Hyperparameters   bool `mapstructure:"hyperparameters" yaml:"hyperparameters" json:"hyperparameters"`
	TuningInfo        bool `mapstructure:"tuning_info" yaml:"tuning_info" json:"tuning_info"`
}

// DefaultConfig enables every section except feature importance, which only
// tree models can fill.
func DefaultConfig() Config {
	return Config{
		FeatureImportance: false,
		Evaluation:        true,
		TrainingInfo:      true,
		Hyperparameters:   true,
		TuningInfo:        true,
	}
}

// Sections returns the names of the enabled optional sections in schema order.
func (c Config) Sections() []string {
	var out []string
	if c.FeatureImportance {
		out = append(out, "feature_importance")
	}
	if c.Evaluation {
		out = append(out, "evaluation")
	}
	if c.TrainingInfo {
		out = append(out, "training_info")
	}
	if c.Hyperparameters {
		out = append(out, "hyperparameters")
	}
	if c.TuningInfo {
		out = append(out, "tuning_info")
	}
	return out
}

// BuildSchema composes the table schema: identity columns, features, then
// the enabled evaluation, training, hyperparameter and tuning sections.
// Disabled sections are omitted.
func (c Config) BuildSchema() bigquery.Schema {
	s := bigquery.Schema{}
	s = append(s, generalFields()...)

	if c.FeatureImportance {
		s = append(s, featureImportanceField())
	} else {
		s = append(s, featureField())
	}
	if c.Evaluation {
		s = append(s, metricField(ColumnEval))
	}
	if c.TrainingInfo {
		s = append(s, metricField(ColumnTraining))
	}
	if c.Hyperparameters {
		s = append(s, repeated(ColumnHyperparams, splitFields()...))
	}
	if c.TuningInfo {
		fields := append(bigquery.Schema{{Name: FieldTrialID, Type: bigquery.IntegerFieldType}}, splitFields()...)
		s = append(s, repeated(ColumnTuning, fields...))
	}
	return s
}

func generalFields() bigquery.Schema {
	return bigquery.Schema{
		{Name: ColumnModelName, Type: bigquery.StringFieldType},
		{Name: ColumnCreated, Type: bigquery.DateFieldType},
		{Name: ColumnType, Type: bigquery.StringFieldType},
		{Name: ColumnTarget, Type: bigquery.StringFieldType},
		{Name: ColumnIsTuning, Type: bigquery.BooleanFieldType},
	}
}

func featureField() *bigquery.FieldSchema {
	return repeated(ColumnFeatures,
		&bigquery.FieldSchema{Name: FieldName, Type: bigquery.StringFieldType},
	)
}

func featureImportanceField() *bigquery.FieldSchema {
	return repeated(ColumnFeatures,
		&bigquery.FieldSchema{Name: FieldName, Type: bigquery.StringFieldType},
		&bigquery.FieldSchema{Name: FieldImportanceWeight, Type: bigquery.FloatFieldType},
		&bigquery.FieldSchema{Name: FieldImportanceGain, Type: bigquery.FloatFieldType},
		&bigquery.FieldSchema{Name: FieldImportanceCover, Type: bigquery.FloatFieldType},
	)
}

func metricField(name string) *bigquery.FieldSchema {
	return repeated(name,
		&bigquery.FieldSchema{Name: FieldName, Type: bigquery.StringFieldType},
		&bigquery.FieldSchema{Name: FieldValue, Type: bigquery.FloatFieldType},
	)
}

func splitFields() bigquery.Schema {
	return bigquery.Schema{
		{Name: FieldName, Type: bigquery.StringFieldType},
		{Name: FieldValueString, Type: bigquery.StringFieldType},
		{Name: FieldValueFloat, Type: bigquery.FloatFieldType},
	}
}

func repeated(name string, fields ...*bigquery.FieldSchema) *bigquery.FieldSchema {
	return &bigquery.FieldSchema{
		Name:     name,
		Type:     bigquery.RecordFieldType,
		Repeated: true,
		Schema:   fields,
	}
}

// Field returns the top-level column with the given name.
func Field(s bigquery.Schema, name string) (*bigquery.FieldSchema, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// HasColumn reports whether the schema declares a top-level column.
func HasColumn(s bigquery.Schema, name string) bool {
	_, ok := Field(s, name)
	return ok
}

// HasFeatureImportance reports whether the features column carries
// importance fields rather than plain names.
func HasFeatureImportance(s bigquery.Schema) bool {
	f, ok := Field(s, ColumnFeatures)
	if !ok {
		return false
	}
	_, ok = Field(f.Schema, FieldImportanceWeight)
	return ok
}

// ConfigOf infers the section configuration a live schema was built from.
func ConfigOf(s bigquery.Schema) Config {
	return Config{
		FeatureImportance: HasFeatureImportance(s),
		Evaluation:        HasColumn(s, ColumnEval),
		TrainingInfo:      HasColumn(s, ColumnTraining),
		Hyperparameters:   HasColumn(s, ColumnHyperparams),
		TuningInfo:        HasColumn(s, ColumnTuning),
	}
}
