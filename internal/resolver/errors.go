package resolver

import (
	"errors"
	"fmt"
)

// ConfigurationError means a required selection is missing, such as the model
// or the matching fields of an upsert. Raised before any remote call.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// ValidationError means an input value is unusable
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return "validation error: " + e.Message
}

// RemoteError wraps a failed call to the Content Management API.
// The remote message is kept verbatim in Err.
type RemoteError struct {
	Operation string
	Err       error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ConflictError means more than one record matched an upsert criterion
type ConflictError struct {
	Criteria map[string]any
	Count    int
	IDs      []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %d records match %s, refusing to pick one", e.Count, describeCriteria(e.Criteria))
}

// NotFoundError means no record matched and creation was not allowed
type NotFoundError struct {
	Criteria map[string]any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record matches %s and creation is disabled", describeCriteria(e.Criteria))
}

func remote(operation string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Operation: operation, Err: err}
}

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsRemote reports whether err is a RemoteError
func IsRemote(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
