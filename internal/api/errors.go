package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/bpm-api/internal/api/shared"
	"github.com/phrazzld/bpm-api/internal/domain"
	"github.com/phrazzld/bpm-api/internal/jobs"
	"github.com/phrazzld/bpm-api/internal/portability"
	"github.com/phrazzld/bpm-api/internal/service"
	"github.com/phrazzld/bpm-api/internal/service/auth"
	"github.com/phrazzld/bpm-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrEmailExists),
		errors.Is(err, portability.ErrDuplicateStableID):
		return http.StatusConflict

	// Semantically invalid requests
	case errors.Is(err, portability.ErrInvalidNode),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, domain.ErrTaskAlreadyCompleted),
		errors.Is(err, domain.ErrTaskNotActive),
		errors.Is(err, service.ErrNothingToTranslate):
		return http.StatusUnprocessableEntity

	// Bad request errors
	case errors.Is(err, portability.ErrReferenceIntegrity),
		errors.Is(err, portability.ErrInvalidPayload),
		errors.Is(err, portability.ErrInvalidOptions),
		errors.Is(err, portability.ErrUnsupportedKind),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, jobs.ErrEmptyLanguage),
		errors.Is(err, shared.ErrEmptyBody):
		return http.StatusBadRequest

	// Temporarily unavailable
	case errors.Is(err, jobs.ErrQueueFull),
		errors.Is(err, jobs.ErrRunnerNotActive):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid email or password"

	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, domain.ErrForbidden):
		return "You do not have access to this resource"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrScreenNotFound):
		return "Screen not found"
	case errors.Is(err, store.ErrScriptNotFound):
		return "Script not found"
	case errors.Is(err, store.ErrScreenCategoryNotFound),
		errors.Is(err, store.ErrScriptCategoryNotFound):
		return "Category not found"
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrProcessRequestNotFound):
		return "Process request not found"
	case errors.Is(err, jobs.ErrJobNotFound):
		return "Job not found"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrEmailExists):
		return "Email already exists"
	case errors.Is(err, portability.ErrDuplicateStableID):
		return "Payload contains duplicate stable ids"

	case errors.Is(err, portability.ErrInvalidNode):
		return "Payload contains invalid nodes"
	case errors.Is(err, service.ErrInvalidStatus):
		return "Only COMPLETED is accepted as task status"
	case errors.Is(err, domain.ErrTaskAlreadyCompleted):
		return "Task is already completed"
	case errors.Is(err, domain.ErrTaskNotActive):
		return "Task is not active"
	case errors.Is(err, service.ErrNothingToTranslate):
		return "Screen has no translatable strings"

	case errors.Is(err, portability.ErrReferenceIntegrity):
		return "Payload references missing entities"
	case errors.Is(err, portability.ErrInvalidPayload):
		return "Invalid payload"
	case errors.Is(err, portability.ErrInvalidOptions):
		return "Invalid import options"
	case errors.Is(err, portability.ErrUnsupportedKind):
		return "Unsupported entity type"
	case errors.Is(err, shared.ErrEmptyBody):
		return "Request body is required"
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return "Invalid entity data"
	case errors.Is(err, jobs.ErrEmptyLanguage):
		return "Language is required"

	case errors.Is(err, jobs.ErrQueueFull),
		errors.Is(err, jobs.ErrRunnerNotActive):
		return "Service is busy, try again later"

	default:
		return "An unexpected error occurred"
	}
}

// ErrorDetails returns the client-safe details of portability errors:
// schema violations, per-node validation messages and reference problems.
func ErrorDetails(err error) []string {
	var schemaErr *portability.SchemaError
	if errors.As(err, &schemaErr) {
		return schemaErr.Violations
	}
	var refErr *portability.ReferenceIntegrityError
	if errors.As(err, &refErr) {
		return []string{refErr.Error()}
	}
	var dupErr *portability.DuplicateStableIDError
	if errors.As(err, &dupErr) {
		return []string{dupErr.Error()}
	}
	var nodeErr *portability.ValidationError
	if errors.As(err, &nodeErr) {
		return []string{nodeErr.Error()}
	}
	var fieldErr *domain.ValidationError
	if errors.As(err, &fieldErr) {
		return []string{fieldErr.Error()}
	}
	return nil
}

// HandleAPIError logs err and writes the mapped status with a safe message.
// fallback replaces the generic message for errors that map to 500.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	opts := []shared.ResponseOption{shared.WithElevatedLogLevel()}
	if details := ErrorDetails(err); len(details) > 0 {
		opts = append(opts, shared.WithDetails(details...))
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "Field validation") {
		// Example format: "Key: 'LoginRequest.Email' Error:Field validation for 'Email' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
