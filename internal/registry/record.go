package registry

import (
	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/modeldata"
	"github.com/redbco/mlregistry/internal/schema"
)

// Record is one registry row. Null cells are stored as nil.
type Record struct {
	values   map[string]bigquery.Value
	insertID string
}

var _ bigquery.ValueSaver = (*Record)(nil)

func newRecord(insertID string) *Record {
	return &Record{values: make(map[string]bigquery.Value), insertID: insertID}
}

// Save implements bigquery.ValueSaver.
func (r *Record) Save() (map[string]bigquery.Value, string, error) {
	return r.values, r.insertID, nil
}

// Values returns the row cells keyed by column.
func (r *Record) Values() map[string]bigquery.Value {
	return r.values
}

// Has reports whether the row sets a column.
func (r *Record) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

func (r *Record) set(column string, v bigquery.Value) {
	r.values[column] = v
}

func nullString(s bigquery.NullString) bigquery.Value {
	if !s.Valid {
		return nil
	}
	return s.StringVal
}

func nullFloat(f bigquery.NullFloat64) bigquery.Value {
	if !f.Valid {
		return nil
	}
	return f.Float64
}

func featureNameRows(features []modeldata.Feature) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(features))
	for _, f := range features {
		rows = append(rows, map[string]bigquery.Value{schema.FieldName: f.Name})
	}
	return rows
}

// nullImportanceRows keeps the importance-shaped layout for models without
// importance data.
func nullImportanceRows(features []modeldata.Feature) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(features))
	for _, f := range features {
		rows = append(rows, map[string]bigquery.Value{
			schema.FieldName:             f.Name,
			schema.FieldImportanceWeight: nil,
			schema.FieldImportanceGain:   nil,
			schema.FieldImportanceCover:  nil,
		})
	}
	return rows
}

func importanceRows(features []modeldata.FeatureImportance) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(features))
	for _, f := range features {
		rows = append(rows, map[string]bigquery.Value{
			schema.FieldName:             f.Name,
			schema.FieldImportanceWeight: nullFloat(f.Weight),
			schema.FieldImportanceGain:   nullFloat(f.Gain),
			schema.FieldImportanceCover:  nullFloat(f.Cover),
		})
	}
	return rows
}

func metricRows(metrics []modeldata.Metric) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, map[string]bigquery.Value{
			schema.FieldName:  m.Name,
			schema.FieldValue: m.Value,
		})
	}
	return rows
}

func hyperparamRows(params []modeldata.Hyperparameter) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(params))
	for _, p := range params {
		rows = append(rows, map[string]bigquery.Value{
			schema.FieldName:        p.Name,
			schema.FieldValueString: nullString(p.ValueString),
			schema.FieldValueFloat:  nullFloat(p.ValueFloat),
		})
	}
	return rows
}

func trialRows(trials []modeldata.Trial) []map[string]bigquery.Value {
	rows := make([]map[string]bigquery.Value, 0, len(trials))
	for _, t := range trials {
		rows = append(rows, map[string]bigquery.Value{
			schema.FieldTrialID:     t.TrialID,
			schema.FieldName:        t.Name,
			schema.FieldValueString: nullString(t.ValueString),
			schema.FieldValueFloat:  nullFloat(t.ValueFloat),
		})
	}
	return rows
}

// tuningPlaceholder is the single all-null entry written for models trained
// without tuning into a table that has a tuning column.
func tuningPlaceholder() []map[string]bigquery.Value {
	return []map[string]bigquery.Value{{
		schema.FieldTrialID:     nil,
		schema.FieldName:        nil,
		schema.FieldValueString: nil,
		schema.FieldValueFloat:  nil,
	}}
}
