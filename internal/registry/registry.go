// Package registry maintains the model registry table.
//
// A Writer creates the table from a schema.Config and appends one row per
// model. The shape of each row follows the table's live schema: sections the
// table declares are filled from the model, and sections the model cannot
// provide are replaced with null-shaped entries so the row stays valid.
package registry

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/internal/modeldata"
	"github.com/redbco/mlregistry/internal/schema"
	"github.com/redbco/mlregistry/pkg/logger"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
)

var (
	// ErrRegistryNotInitialized is returned when the registry table does not exist
	ErrRegistryNotInitialized = errors.New("registry table is not initialized")

	// ErrFeatureImportanceUnsupported is returned in strict mode when the table
	// stores feature importance and the model is not a tree model
	ErrFeatureImportanceUnsupported = modeldata.ErrFeatureImportanceUnsupported
)

// ModelSource is the extracted metadata of one model.
type ModelSource interface {
	ModelID() string
	ModelType() mlcapabilities.ModelType
	Capabilities() mlcapabilities.Capability
	Created() civil.Date
	Target() (string, error)
	IsTuning() bool
	FeatureNames() []modeldata.Feature
	FeatureImportance(ctx context.Context) ([]modeldata.FeatureImportance, error)
	EvaluationMetrics() ([]modeldata.Metric, error)
	TrainingInfo() ([]modeldata.Metric, error)
	Hyperparameters() []modeldata.Hyperparameter
	TrialInfo(ctx context.Context) ([]modeldata.Trial, error)
}

var _ ModelSource = (*modeldata.Model)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithStrictFeatureImportance fails AddModel for non-tree models when the
// table stores feature importance, instead of writing null importances.
func WithStrictFeatureImportance() Option {
	return func(w *Writer) {
		w.strictImportance = true
	}
}

// WithInsertIDs overrides the insert id generator.
func WithInsertIDs(next func() string) Option {
	return func(w *Writer) {
		w.insertID = next
	}
}

// Writer appends models to one registry table.
type Writer struct {
	admin            connector.TableAdmin
	table            connector.TableRef
	logger           *logger.Logger
	strictImportance bool
	insertID         func() string
}

// New returns a writer for the table.
func New(admin connector.TableAdmin, table connector.TableRef, opts ...Option) *Writer {
	w := &Writer{
		admin:    admin,
		table:    table,
		logger:   logger.Discard(),
		insertID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Table returns the registry table address.
func (w *Writer) Table() connector.TableRef {
	return w.table
}

// CreateRegistry creates the table from cfg unless it already exists. The
// returned bool is false when the table was already there; its schema is
// left unchanged.
func (w *Writer) CreateRegistry(ctx context.Context, cfg schema.Config) (bool, error) {
	exists, err := w.admin.TableExists(ctx, w.table)
	if err != nil {
		return false, fmt.Errorf("failed to check registry table: %w", err)
	}
	if exists {
		w.logger.Infof("table %s already exists", w.table)
		return false, nil
	}

	if err := w.admin.CreateTable(ctx, w.table, cfg.BuildSchema()); err != nil {
		return false, err
	}
	w.logger.Infof("table %s successfully created with sections %v", w.table, cfg.Sections())
	return true, nil
}

// Schema returns the live schema of the registry table.
func (w *Writer) Schema(ctx context.Context) (bigquery.Schema, error) {
	s, err := w.admin.TableSchema(ctx, w.table)
	if err != nil {
		if errors.Is(err, connector.ErrTableNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotInitialized, w.table)
		}
		return nil, err
	}
	return s, nil
}

// Drop deletes the registry table. Changing the sections of an existing
// registry requires dropping and recreating it.
func (w *Writer) Drop(ctx context.Context) error {
	if err := w.admin.DeleteTable(ctx, w.table); err != nil {
		if errors.Is(err, connector.ErrTableNotFound) {
			return fmt.Errorf("%w: %s", ErrRegistryNotInitialized, w.table)
		}
		return err
	}
	w.logger.Infof("table %s dropped", w.table)
	return nil
}

// AddModel assembles the model's row against the live schema and appends it.
// Nothing is written if any section fails.
func (w *Writer) AddModel(ctx context.Context, m ModelSource) error {
	live, err := w.Schema(ctx)
	if err != nil {
		return err
	}

	rec, err := w.BuildRecord(ctx, live, m)
	if err != nil {
		return fmt.Errorf("failed to build registry record for %s: %w", m.ModelID(), err)
	}

	if err := w.admin.InsertRow(ctx, w.table, rec); err != nil {
		return fmt.Errorf("failed to insert model %s: %w", m.ModelID(), err)
	}
	w.logger.Infof("model %s added to %s", m.ModelID(), w.table)
	return nil
}

// BuildRecord assembles the row for m without writing it.
func (w *Writer) BuildRecord(ctx context.Context, live bigquery.Schema, m ModelSource) (*Record, error) {
	target, err := m.Target()
	if err != nil {
		return nil, err
	}

	rec := newRecord(w.insertID())
	rec.set(schema.ColumnModelName, m.ModelID())
	rec.set(schema.ColumnCreated, m.Created())
	rec.set(schema.ColumnType, string(m.ModelType()))
	rec.set(schema.ColumnTarget, target)
	rec.set(schema.ColumnIsTuning, m.IsTuning())

	if err := w.setFeatures(ctx, rec, live, m); err != nil {
		return nil, err
	}

	// Tuned models carry their metrics in the tuning section.
	if !m.IsTuning() {
		eval, err := m.EvaluationMetrics()
		if err != nil {
			return nil, err
		}
		rec.set(schema.ColumnEval, metricRows(eval))
	}

	training, err := m.TrainingInfo()
	if err != nil {
		return nil, err
	}
	rec.set(schema.ColumnTraining, metricRows(training))
	rec.set(schema.ColumnHyperparams, hyperparamRows(m.Hyperparameters()))

	if schema.HasColumn(live, schema.ColumnTuning) {
		if m.IsTuning() {
			trials, err := m.TrialInfo(ctx)
			if err != nil {
				return nil, err
			}
			rec.set(schema.ColumnTuning, trialRows(trials))
		} else {
			rec.set(schema.ColumnTuning, tuningPlaceholder())
		}
	}

	return rec, nil
}

func (w *Writer) setFeatures(ctx context.Context, rec *Record, live bigquery.Schema, m ModelSource) error {
	if !schema.HasFeatureImportance(live) {
		rec.set(schema.ColumnFeatures, featureNameRows(m.FeatureNames()))
		return nil
	}

	if m.Capabilities().Tree {
		fi, err := m.FeatureImportance(ctx)
		if err != nil {
			return err
		}
		rec.set(schema.ColumnFeatures, importanceRows(fi))
		return nil
	}

	if w.strictImportance {
		return fmt.Errorf("%w: %s", ErrFeatureImportanceUnsupported, m.ModelType())
	}
	w.logger.Warnf("%s model %s has no feature importance, writing null importances", m.ModelType(), m.ModelID())
	rec.set(schema.ColumnFeatures, nullImportanceRows(m.FeatureNames()))
	return nil
}
