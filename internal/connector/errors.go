package connector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Standard connector errors
var (
	// ErrModelNotFound is returned when the catalog has no such model
	ErrModelNotFound = errors.New("model not found")

	// ErrTableNotFound is returned when a table does not exist
	ErrTableNotFound = errors.New("table not found")

	// ErrPermissionDenied is returned when the credentials lack required permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConnectionClosed is returned when attempting to use a closed connector
	ErrConnectionClosed = errors.New("connection is closed")
)

// PermissionError lists the permissions the credentials were not granted.
type PermissionError struct {
	Resource string
	Missing  []string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("service account is missing permissions on %s: %s", e.Resource, strings.Join(e.Missing, ", "))
}

// Is checks if the error is ErrPermissionDenied.
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// NewPermissionError compares required against granted and returns a
// PermissionError for the difference, or nil when nothing is missing.
func NewPermissionError(resource string, required, granted []string) error {
	have := make(map[string]bool, len(granted))
	for _, p := range granted {
		have[p] = true
	}
	var missing []string
	for _, p := range required {
		if !have[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &PermissionError{Resource: resource, Missing: missing}
}

// OperationError wraps a warehouse error with the failing operation and target.
type OperationError struct {
	Operation string
	Target    string
	Cause     error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Target, e.Cause)
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with operation context.
// If the error is already an OperationError, it returns it as-is.
func WrapError(operation, target string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Operation: operation, Target: target, Cause: err}
}
