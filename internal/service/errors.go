package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the API layer maps them to HTTP status codes.
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrInvalidStatus indicates a task update asked for a status other than COMPLETED.
	// API layer should map this to HTTP 422 Unprocessable Entity.
	ErrInvalidStatus = errors.New("unsupported task status")

	// ErrInvalidCredentials indicates a login with an unknown email or a wrong password.
	// The two cases are deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNothingToTranslate indicates a screen has no user-facing strings.
	ErrNothingToTranslate = errors.New("screen has no translatable strings")
)

// ServiceError wraps an unexpected failure of a service operation.
type ServiceError struct {
	Service   string // Service name, e.g. "task"
	Operation string // The operation that failed, e.g. "complete"
	Message   string // Human-readable error message
	Err       error  // The underlying error
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s failed: %s: %v", e.Service, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s service %s failed: %s", e.Service, e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError
func NewServiceError(service, operation, message string, err error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
