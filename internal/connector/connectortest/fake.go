// Package connectortest provides an in-memory connector for tests.
package connectortest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/bigquery"
	"github.com/redbco/mlregistry/internal/connector"
)

// Query records one executed statement.
type Query struct {
	SQL    string
	Params []connector.Param
}

// Table is an in-memory table with the rows appended to it.
type Table struct {
	Schema    bigquery.Schema
	Rows      []map[string]bigquery.Value
	InsertIDs []string
}

type canned struct {
	match  string
	result *connector.Result
	err    error
}

// Fake implements connector.Connector. Query results are matched by SQL
// substring in registration order.
type Fake struct {
	mu sync.Mutex

	models  map[string]*connector.ModelDescriptor
	results []canned
	tables  map[string]*Table
	queries []Query
	errs    map[string]error
	closed  bool
}

var _ connector.Connector = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		models: make(map[string]*connector.ModelDescriptor),
		tables: make(map[string]*Table),
		errs:   make(map[string]error),
	}
}

// AddModel registers a model descriptor under its ref.
func (f *Fake) AddModel(d *connector.ModelDescriptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models[d.Ref.String()] = d
}

// OnQuery returns result for any statement containing match.
func (f *Fake) OnQuery(match string, result *connector.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, canned{match: match, result: result})
}

// OnQueryError fails any statement containing match.
func (f *Fake) OnQueryError(match string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, canned{match: match, err: err})
}

// FailOn makes the named method (e.g. "InsertRow") return err.
func (f *Fake) FailOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

// PutTable creates or replaces a table.
func (f *Fake) PutTable(ref connector.TableRef, schema bigquery.Schema) *Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &Table{Schema: schema}
	f.tables[ref.String()] = t
	return t
}

// Table returns the table or nil.
func (f *Fake) Table(ref connector.TableRef) *Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[ref.String()]
}

// Queries returns every statement executed so far.
func (f *Fake) Queries() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

func (f *Fake) fail(method string) error {
	if f.closed {
		return connector.ErrConnectionClosed
	}
	return f.errs[method]
}

// Query returns the first canned result whose match is contained in sql.
func (f *Fake) Query(ctx context.Context, sql string, params ...connector.Param) (*connector.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("Query"); err != nil {
		return nil, err
	}
	f.queries = append(f.queries, Query{SQL: sql, Params: params})
	for _, c := range f.results {
		if strings.Contains(sql, c.match) {
			return c.result, c.err
		}
	}
	return &connector.Result{}, nil
}

// GetModel returns the registered descriptor.
func (f *Fake) GetModel(ctx context.Context, ref connector.ModelRef) (*connector.ModelDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("GetModel"); err != nil {
		return nil, err
	}
	d, ok := f.models[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connector.ErrModelNotFound, ref)
	}
	return d, nil
}

// TableExists reports whether the table was created.
func (f *Fake) TableExists(ctx context.Context, ref connector.TableRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TableExists"); err != nil {
		return false, err
	}
	_, ok := f.tables[ref.String()]
	return ok, nil
}

// CreateTable stores the schema.
func (f *Fake) CreateTable(ctx context.Context, ref connector.TableRef, schema bigquery.Schema) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("CreateTable"); err != nil {
		return err
	}
	if _, ok := f.tables[ref.String()]; ok {
		return fmt.Errorf("table %s already exists", ref)
	}
	f.tables[ref.String()] = &Table{Schema: schema}
	return nil
}

// DeleteTable removes the table.
func (f *Fake) DeleteTable(ctx context.Context, ref connector.TableRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("DeleteTable"); err != nil {
		return err
	}
	if _, ok := f.tables[ref.String()]; !ok {
		return fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
	}
	delete(f.tables, ref.String())
	return nil
}

// TableSchema returns the stored schema.
func (f *Fake) TableSchema(ctx context.Context, ref connector.TableRef) (bigquery.Schema, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("TableSchema"); err != nil {
		return nil, err
	}
	t, ok := f.tables[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
	}
	return t.Schema, nil
}

// InsertRow saves the row and keeps the resulting map.
func (f *Fake) InsertRow(ctx context.Context, ref connector.TableRef, row bigquery.ValueSaver) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("InsertRow"); err != nil {
		return err
	}
	t, ok := f.tables[ref.String()]
	if !ok {
		return fmt.Errorf("%w: %s", connector.ErrTableNotFound, ref)
	}
	values, insertID, err := row.Save()
	if err != nil {
		return err
	}
	t.Rows = append(t.Rows, values)
	t.InsertIDs = append(t.InsertIDs, insertID)
	return nil
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return connector.ErrConnectionClosed
	}
	f.closed = true
	return nil
}
