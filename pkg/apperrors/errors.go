// Package apperrors defines the error taxonomy shared across the engine.
//
// Two kinds of errors live here: sentinel errors for simple conditions
// (checked with errors.Is) and structured error types that carry enough
// detail for callers to render actionable feedback (checked with errors.As).
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed input to a create/save operation.
// It is local and synchronous; it is never retried automatically.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a specific field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a referential-integrity violation, such as
// deleting a linked service that datasets still reference.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s", e.Message)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// SchemaResolutionError means the underlying data reference could not be
// introspected: missing table, unreadable object, permission failure.
// It is surfaced distinctly from plain connectivity failures.
type SchemaResolutionError struct {
	Reference string
	Cause     error
}

func (e *SchemaResolutionError) Error() string {
	return fmt.Sprintf("schema resolution failed for %q: %v", e.Reference, e.Cause)
}

func (e *SchemaResolutionError) Unwrap() error { return e.Cause }

// TransformStage identifies which phase of transformation preview failed.
type TransformStage string

const (
	StageGeneration TransformStage = "generation"
	StageExecution  TransformStage = "execution"
)

// TransformationError reports a code-generation or code-execution failure
// during transformation preview. Detail always carries the human-readable
// message from the failure point; nothing is swallowed or approximated.
type TransformationError struct {
	Stage  TransformStage
	Detail string
	Cause  error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("transformation %s failed: %s", e.Stage, e.Detail)
}

func (e *TransformationError) Unwrap() error { return e.Cause }

// NewTransformationError creates a TransformationError for a stage.
func NewTransformationError(stage TransformStage, cause error, format string, args ...any) *TransformationError {
	return &TransformationError{Stage: stage, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// CycleError reports a directed cycle in a pipeline graph, naming every
// node that participates in the cycle.
type CycleError struct {
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("pipeline contains a cycle through nodes: %s", strings.Join(e.NodeIDs, ", "))
}

// ConnectorOp identifies which connector capability failed.
type ConnectorOp string

const (
	OpTest       ConnectorOp = "test"
	OpIntrospect ConnectorOp = "introspect"
	OpRead       ConnectorOp = "read"
	OpWrite      ConnectorOp = "write"
)

// ConnectorError reports a failure while reading from or writing to an
// external system during node processing. Timeout marks deadline
// exhaustion so it can be diagnosed separately from remote failures.
type ConnectorError struct {
	Op      ConnectorOp
	Timeout bool
	Cause   error
}

func (e *ConnectorError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("connector %s timed out: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("connector %s failed: %v", e.Op, e.Cause)
}

func (e *ConnectorError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is a ConnectorError caused by a deadline.
func IsTimeout(err error) bool {
	var ce *ConnectorError
	return errors.As(err, &ce) && ce.Timeout
}
