package modeldata

import (
	"errors"
	"fmt"

	"github.com/redbco/mlregistry/internal/connector"
	"github.com/redbco/mlregistry/pkg/mlcapabilities"
)

// Extraction errors
var (
	// ErrModelNotFound is returned when the catalog has no such model
	ErrModelNotFound = connector.ErrModelNotFound

	// ErrUnsupportedModelType is returned when the model type is not in SupportedModels
	ErrUnsupportedModelType = errors.New("model type is not supported")

	// ErrMultiLabelUnsupported is returned when a model declares more than one label column
	ErrMultiLabelUnsupported = errors.New("multiple target variables are not supported")

	// ErrTargetUnavailable is returned when a model declares no label column
	ErrTargetUnavailable = errors.New("model has no target variable")

	// ErrFeatureImportanceUnsupported is returned for models that are not tree ensembles
	ErrFeatureImportanceUnsupported = errors.New("feature importance is only available for tree models")

	// ErrTuningMetricsUnavailable is returned when evaluation metrics are requested for a tuned model
	ErrTuningMetricsUnavailable = errors.New("evaluation metrics are not provided for hyperparameter tuning models, use trial info instead")

	// ErrUnsupportedMetrics is returned for model types that are neither regressors nor classifiers
	ErrUnsupportedMetrics = errors.New("evaluation metrics are only supported for regression and classification models")

	// ErrTrainingInfoUnavailable is returned when the training run has no results
	ErrTrainingInfoUnavailable = errors.New("training run has no results")

	// ErrTuningNotApplicable is returned when trial info is requested for a model trained without tuning
	ErrTuningNotApplicable = errors.New("trial info is only available for hyperparameter tuning models")

	// ErrInvalidTrialInfo is returned when the trial info result cannot be unpivoted
	ErrInvalidTrialInfo = errors.New("invalid trial info")

	// ErrModelSQLNotFound is returned when job history has no matching CREATE MODEL statement
	ErrModelSQLNotFound = errors.New("model creation statement not found in job history")
)

// ModelError wraps an extraction failure with the model and operation.
type ModelError struct {
	Model     string
	Type      mlcapabilities.ModelType
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("[%s %s] %s: %v", e.Type, e.Model, e.Operation, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Model, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ModelError) Unwrap() error {
	return e.Cause
}

func (m *Model) fail(operation string, cause error) error {
	return &ModelError{
		Model:     m.ref.String(),
		Type:      m.modelType,
		Operation: operation,
		Cause:     cause,
	}
}
