package connector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// ModelRef addresses a BigQuery ML model.
type ModelRef struct {
	Project string
	Dataset string
	ModelID string
}

// String returns the fully-qualified project.dataset.model address.
func (r ModelRef) String() string {
	return fmt.Sprintf("%s.%s.%s", r.Project, r.Dataset, r.ModelID)
}

// TableRef addresses a BigQuery table.
type TableRef struct {
	Project string
	Dataset string
	TableID string
}

// String returns the fully-qualified project.dataset.table address.
func (r TableRef) String() string {
	return fmt.Sprintf("%s.%s.%s", r.Project, r.Dataset, r.TableID)
}

// ParseTableRef splits a project.dataset.table address.
func ParseTableRef(s string) (TableRef, error) {
	parts := strings.Split(strings.Trim(s, "`"), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TableRef{}, fmt.Errorf("%w: table reference %q must be project.dataset.table", ErrInvalidConfiguration, s)
	}
	return TableRef{Project: parts[0], Dataset: parts[1], TableID: parts[2]}, nil
}

// Param is a named scalar query parameter (@name in SQL). Supported values are
// string, civil.Date, int64, float64 and bool.
type Param struct {
	Name  string
	Value interface{}
}

// Result is a tabular query result with column order preserved.
type Result struct {
	Columns []string
	Rows    [][]Value
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of a named column or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a named column in row i, or a null Value if the
// column does not exist.
func (r *Result) Get(i int, column string) Value {
	idx := r.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(r.Rows) || idx >= len(r.Rows[i]) {
		return Null()
	}
	return r.Rows[i][idx]
}

// TrainingRun is one training run of a model as reported by the model catalog.
type TrainingRun struct {
	StartTime         time.Time
	Options           Object
	EvaluationMetrics Object
	Results           []Object
}

// ModelDescriptor is the catalog record of a model.
type ModelDescriptor struct {
	Ref          ModelRef
	Type         string
	CreationTime time.Time
	Location     string

	// LabelColumns and FeatureColumns are in declaration order.
	LabelColumns   []string
	FeatureColumns []string

	// TrainingRuns holds the runs the catalog reports, most recent first.
	TrainingRuns []TrainingRun
}

// Created returns the UTC calendar date the model finished training, the
// date DATE(creation_time) yields in the job history.
func (d *ModelDescriptor) Created() civil.Date {
	return civil.DateOf(d.CreationTime.UTC())
}

// Querier executes parameterized SQL.
type Querier interface {
	Query(ctx context.Context, sql string, params ...Param) (*Result, error)
}

// ModelCatalog reads model descriptors. Missing models yield ErrModelNotFound.
type ModelCatalog interface {
	GetModel(ctx context.Context, ref ModelRef) (*ModelDescriptor, error)
}

// TableAdmin manages tables and appends rows.
type TableAdmin interface {
	TableExists(ctx context.Context, ref TableRef) (bool, error)
	CreateTable(ctx context.Context, ref TableRef, schema bigquery.Schema) error
	DeleteTable(ctx context.Context, ref TableRef) error

	// TableSchema returns the live schema; ErrTableNotFound if the table is absent.
	TableSchema(ctx context.Context, ref TableRef) (bigquery.Schema, error)

	// InsertRow appends a single row. Per-row errors reported by the warehouse
	// are returned unchanged.
	InsertRow(ctx context.Context, ref TableRef, row bigquery.ValueSaver) error
}

// Connector is the full warehouse collaborator.
type Connector interface {
	Querier
	ModelCatalog
	TableAdmin

	Close() error
}
