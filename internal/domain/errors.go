package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by the evaluation pipeline.
var (
	// ErrEvaluationAbandoned indicates the request context ended before
	// evaluation completed. No telemetry is emitted for such an exchange.
	ErrEvaluationAbandoned = errors.New("evaluation abandoned")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmptyPrompt indicates that a request carried no prompt text.
	ErrEmptyPrompt = errors.New("prompt is required")
)

// ModelCallError wraps a failure of the primary model call. It is the only
// error class that reaches the original caller.
type ModelCallError struct {
	// RequestID is the identifier assigned to the failed exchange.
	RequestID string

	// Model is the model that was being called.
	Model string

	// Err is the underlying client error.
	Err error
}

// Error implements the error interface for ModelCallError.
func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call failed: request_id=%s, model=%s: %v", e.RequestID, e.Model, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *ModelCallError) Unwrap() error { return e.Err }

// NewModelCallError creates a new ModelCallError with the given details.
func NewModelCallError(requestID, model string, err error) *ModelCallError {
	return &ModelCallError{
		RequestID: requestID,
		Model:     model,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap ties every ValidationError to ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
