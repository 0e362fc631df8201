package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation indicates invalid input data
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeUnauthorized indicates authentication failure
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeForbidden indicates insufficient permissions
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	// ErrorTypeExternal indicates an external service error
	ErrorTypeExternal ErrorType = "external"
	// ErrorTypeRateLimited indicates the client exceeded its request budget
	ErrorTypeRateLimited ErrorType = "rate_limited"
)

// Kind classifies generation failures independently of the HTTP mapping
type Kind string

const (
	KindInsufficientSectors  Kind = "insufficient_sectors"
	KindInvalidZoneBounds    Kind = "invalid_zone_bounds"
	KindInvalidClusterType   Kind = "invalid_cluster_type"
	KindPreservationConflict Kind = "preservation_conflict"
	KindAlreadyExists        Kind = "already_exists"
	KindNotFound             Kind = "not_found"
	KindInvalidRequest       Kind = "invalid_request"
	KindInternal             Kind = "internal"
)

// Details carries diagnostic context such as the offending sector range
type Details map[string]any

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Kind    Kind
	Message string
	Details Details
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFoundf creates a not found error with formatting
func NotFoundf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Kind:    KindNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a validation error
func Validation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidRequest,
		Message: message,
	}
}

// Validationf creates a validation error with formatting
func Validationf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapValidation wraps an error as a validation error
func WrapValidation(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// Conflictf creates a conflict error with formatting
func Conflictf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Kind:    KindInternal,
		Message: message,
		Err:     err,
	}
}

// InsufficientSectors reports a sector budget below the minimum viable size
func InsufficientSectors(requested, minimum int) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInsufficientSectors,
		Message: fmt.Sprintf("%d sectors requested, at least %d required", requested, minimum),
		Details: Details{"requested": requested, "minimum": minimum},
	}
}

// InvalidZoneBounds reports a zone split that cannot cover the range
func InvalidZoneBounds(message string, details Details) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidZoneBounds,
		Message: message,
		Details: details,
	}
}

// InvalidClusterType reports an unknown cluster type in a distribution
func InvalidClusterType(name string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidClusterType,
		Message: fmt.Sprintf("unknown cluster type %q", name),
		Details: Details{"cluster_type": name},
	}
}

// PreservationConflict reports player data that cannot survive a regeneration
func PreservationConflict(message string, details Details) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Kind:    KindPreservationConflict,
		Message: message,
		Details: details,
	}
}

// AlreadyExistsf reports a regeneration attempted without force
func AlreadyExistsf(format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Kind:    KindAlreadyExists,
		Message: fmt.Sprintf(format, args...),
	}
}

// RegionLocked reports a region another writer currently holds
func RegionLocked(region string) error {
	return &AppError{
		Type:    ErrorTypeConflict,
		Kind:    KindInvalidRequest,
		Message: fmt.Sprintf("region %q is locked by another generation or write", region),
		Details: Details{"region": region},
	}
}

// InvalidRequestf reports a request rejected during validation
func InvalidRequestf(details Details, format string, args ...interface{}) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Kind:    KindInvalidRequest,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) error {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) error {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// MethodNotAllowed creates a method not allowed error
func MethodNotAllowed(method string) error {
	return &AppError{
		Type:    ErrorTypeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", method),
	}
}

// External creates an external service error
func External(message string) error {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
	}
}

// WrapExternal wraps an error as an external service error
func WrapExternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// RateLimited creates a rate limit error
func RateLimited(message string) error {
	return &AppError{
		Type:    ErrorTypeRateLimited,
		Message: message,
	}
}

// KindOf returns the generation kind of an error, internal when unknown
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}

// DetailsOf returns the diagnostic details attached to an error
func DetailsOf(err error) Details {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// GetType returns the error type of an error
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
