package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/gapfill-api/internal/domain"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check them with errors.Is(); the API layer maps them to HTTP status codes.
var (
	// ErrInvalidCount is returned when a request asks for fewer than one
	// exercise or more than the configured maximum.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidCount = fmt.Errorf("%w: invalid exercise count", domain.ErrValidation)

	// ErrInvalidAttempt is returned when a usage report is malformed.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidAttempt = fmt.Errorf("%w: invalid attempt", domain.ErrValidation)

	// ErrUnavailable is returned when background work can no longer be
	// accepted, for example during shutdown.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrUnavailable = errors.New("service unavailable")
)

// ServiceError is a custom error type for service errors.
type ServiceError struct {
	// Service names the component that failed (e.g., "resolver", "usage")
	Service string
	// Operation is the operation that failed (e.g., "resolve", "record_attempt")
	Operation string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s service %s operation failed", e.Service, e.Operation)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, operation string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Err:       err,
	}
}
