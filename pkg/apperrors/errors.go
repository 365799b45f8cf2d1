package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

func (e *NotFoundError) Code() string {
	return "NOT_FOUND"
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents invalid input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) HTTPStatus() int {
	return http.StatusBadRequest
}

func (e *ValidationError) Code() string {
	return "VALIDATION_ERROR"
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IntegrityError is a write that violated a relational constraint
type IntegrityError struct {
	Operation string
	Cause     error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("schema integrity violation during %s: %v", e.Operation, e.Cause)
}

func (e *IntegrityError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *IntegrityError) Code() string {
	return "SCHEMA_INTEGRITY_VIOLATION"
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

// NewIntegrityError creates a new IntegrityError
func NewIntegrityError(operation string, cause error) *IntegrityError {
	return &IntegrityError{Operation: operation, Cause: cause}
}

// FixtureConfigError is a matched descriptor that cannot produce a response
type FixtureConfigError struct {
	DescriptorID int64
	Reason       string
}

func (e *FixtureConfigError) Error() string {
	return fmt.Sprintf("descriptor %d is misconfigured: %s", e.DescriptorID, e.Reason)
}

func (e *FixtureConfigError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *FixtureConfigError) Code() string {
	return "FIXTURE_CONFIGURATION_ERROR"
}

// NewFixtureConfigError creates a new FixtureConfigError
func NewFixtureConfigError(descriptorID int64, reason string) *FixtureConfigError {
	return &FixtureConfigError{DescriptorID: descriptorID, Reason: reason}
}

// UpstreamError means the remote environment could not be reached at all.
// Upstream error statuses are passed through, not wrapped in this type.
type UpstreamError struct {
	URL   string
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s unavailable: %v", e.URL, e.Cause)
}

func (e *UpstreamError) HTTPStatus() int {
	return http.StatusBadGateway
}

func (e *UpstreamError) Code() string {
	return "UPSTREAM_UNAVAILABLE"
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(url string, cause error) *UpstreamError {
	return &UpstreamError{URL: url, Cause: cause}
}

// InternalError represents unexpected server errors
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) HTTPStatus() int {
	return http.StatusInternalServerError
}

func (e *InternalError) Code() string {
	return "INTERNAL_ERROR"
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsIntegrity checks if an error is an IntegrityError
func IsIntegrity(err error) bool {
	var integrity *IntegrityError
	return errors.As(err, &integrity)
}

// IsFixtureConfig checks if an error is a FixtureConfigError
func IsFixtureConfig(err error) bool {
	var fixture *FixtureConfigError
	return errors.As(err, &fixture)
}

// GetHTTPStatus returns the HTTP status for err, 500 for unknown errors
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the machine-readable code for err
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "INTERNAL_ERROR"
}
