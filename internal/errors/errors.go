// Package errors provides error types and handling for chefctl.
// Each error kind carries an explicit severity so that the fatal/advisory
// treatment of a failure is a declared policy rather than something
// inferred from control flow.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a deployment failure.
type Kind string

// Predefined error kinds.
const (
	KindPreconditionMissing   Kind = "PRECONDITION_MISSING"
	KindAPIEnableFailed       Kind = "API_ENABLE_FAILED"
	KindRoleBindingFailed     Kind = "ROLE_BINDING_FAILED"
	KindCustomRoleFailed      Kind = "CUSTOM_ROLE_FAILED"
	KindDeployFailed          Kind = "DEPLOY_FAILED"
	KindVerificationAmbiguous Kind = "VERIFICATION_AMBIGUOUS"
)

// Severity determines whether a failure aborts the run.
type Severity int

const (
	// Advisory failures are recorded and surfaced in the final summary only.
	Advisory Severity = iota
	// Fatal failures stop the stage pipeline immediately.
	Fatal
)

// severityByKind is the named failure policy per error kind. Role bindings
// are idempotent and likely already satisfied, so a failed binding must not
// block deployment; a failed API enable must, because later stages assume
// full API availability.
var severityByKind = map[Kind]Severity{
	KindPreconditionMissing:   Fatal,
	KindAPIEnableFailed:       Fatal,
	KindRoleBindingFailed:     Advisory,
	KindCustomRoleFailed:      Fatal,
	KindDeployFailed:          Fatal,
	KindVerificationAmbiguous: Advisory,
}

// StageError represents a failure attributed to a pipeline stage.
type StageError struct {
	// Stage is the human-readable stage name (e.g. "provision").
	Stage string
	// Kind is the error kind for programmatic handling.
	Kind Kind
	// Message is a user-friendly description of what failed.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match StageErrors by kind.
func (e *StageError) Is(target error) bool {
	if t, ok := target.(*StageError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Severity returns the declared severity for the error's kind.
func (e *StageError) Severity() Severity {
	return severityByKind[e.Kind]
}

// New creates a StageError for the given stage and kind.
func New(stage string, kind Kind, message string, cause error) *StageError {
	return &StageError{
		Stage:   stage,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// IsFatal reports whether the error should abort the run. Errors that are
// not StageErrors are treated as fatal: an unclassified failure is never
// silently advisory.
func IsFatal(err error) bool {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Severity() == Fatal
	}
	return true
}

// GetKind extracts the error kind from an error.
// Returns empty string if the error is not a StageError.
func GetKind(err error) Kind {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind
	}
	return ""
}

// GetStage extracts the failing stage name from an error.
func GetStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
