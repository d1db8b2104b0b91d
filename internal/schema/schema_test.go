package schema

import (
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func names(s bigquery.Schema) []string {
	out := make([]string, 0, len(s))
	for _, f := range s {
		out = append(out, f.Name)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.FeatureImportance)
	assert.Equal(t, []string{"evaluation", "training_info", "hyperparameters", "tuning_info"}, cfg.Sections())

	s := cfg.BuildSchema()
	assert.Equal(t, []string{
		"model_name", "created", "type", "target", "is_tuning",
		"features", "eval", "training", "hyperparams", "tuning",
	}, names(s))

	features, ok := Field(s, ColumnFeatures)
	require.True(t, ok)
	assert.True(t, features.Repeated)
	assert.Equal(t, []string{"name"}, names(features.Schema))
	assert.False(t, HasFeatureImportance(s))

	created, _ := Field(s, ColumnCreated)
	assert.Equal(t, bigquery.DateFieldType, created.Type)
	tuning, _ := Field(s, ColumnTuning)
	assert.Equal(t, []string{"trial_id", "name", "value_string", "value_float"}, names(tuning.Schema))
}

func TestBuildSchemaSections(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "identity and features only",
			cfg:  Config{},
			want: []string{"model_name", "created", "type", "target", "is_tuning", "features"},
		},
		{
			name: "importance and tuning",
			cfg:  Config{FeatureImportance: true, TuningInfo: true},
			want: []string{"model_name", "created", "type", "target", "is_tuning", "features", "tuning"},
		},
		{
			name: "everything",
			cfg:  Config{FeatureImportance: true, Evaluation: true, TrainingInfo: true, Hyperparameters: true, TuningInfo: true},
			want: []string{"model_name", "created", "type", "target", "is_tuning", "features", "eval", "training", "hyperparams", "tuning"},
		},
		{
			name: "hyperparameters without evaluation",
			cfg:  Config{Hyperparameters: true},
			want: []string{"model_name", "created", "type", "target", "is_tuning", "features", "hyperparams"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.cfg.BuildSchema()
			assert.Equal(t, tt.want, names(s))
			assert.Equal(t, tt.cfg, ConfigOf(s))
			assert.Equal(t, tt.cfg.BuildSchema(), s, "schema must be deterministic")
		})
	}
}

func TestFeatureImportanceField(t *testing.T) {
	s := Config{FeatureImportance: true}.BuildSchema()
	assert.True(t, HasFeatureImportance(s))

	f, _ := Field(s, ColumnFeatures)
	assert.Equal(t, []string{"name", "importance_weight", "importance_gain", "importance_cover"}, names(f.Schema))
	for _, sub := range f.Schema[1:] {
		assert.Equal(t, bigquery.FloatFieldType, sub.Type)
	}
}

func TestHasColumn(t *testing.T) {
	s := Config{Evaluation: true}.BuildSchema()
	assert.True(t, HasColumn(s, ColumnEval))
	assert.False(t, HasColumn(s, ColumnTuning))
	assert.False(t, HasFeatureImportance(bigquery.Schema{}))
}

func TestRender(t *testing.T) {
	s := DefaultConfig().BuildSchema()

	data, err := ToJSON(s)
	require.NoError(t, err)
	decoded, err := bigquery.SchemaFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, names(s), names(decoded))

	y, err := ToYAML(s)
	require.NoError(t, err)
	var fields []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(y, &fields))
	require.Len(t, fields, len(s))
	assert.Equal(t, "model_name", fields[0]["name"])
	assert.Equal(t, "REPEATED", fields[5]["mode"])
}

func TestJSONToYAMLKeepsOrder(t *testing.T) {
	out, err := JSONToYAML([]byte(`{"zeta":"1","alpha":true}`))
	require.NoError(t, err)

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal(out, &node))
	doc := node.Content[0]
	require.Len(t, doc.Content, 4)
	assert.Equal(t, "zeta", doc.Content[0].Value)
	assert.Equal(t, "alpha", doc.Content[2].Value)

	var m map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &m))
	assert.Equal(t, "1", m["zeta"])
	assert.Equal(t, true, m["alpha"])
}
