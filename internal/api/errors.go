package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/gapfill-api/internal/api/shared"
	"github.com/phrazzld/gapfill-api/internal/domain"
	"github.com/phrazzld/gapfill-api/internal/service"
	"github.com/phrazzld/gapfill-api/internal/store"
	"github.com/phrazzld/gapfill-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrStoreUnavailable),
		errors.Is(err, service.ErrUnavailable),
		errors.Is(err, task.ErrQueueStopped):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err. Validation
// messages are built from our own sentinel text, which never carries
// internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return SanitizeValidationError(verrs)

	case errors.Is(err, domain.ErrValidation):
		return validationMessage(err)

	case errors.Is(err, store.ErrExerciseNotFound):
		return "Exercise not found"

	case errors.Is(err, store.ErrQueueItemNotFound):
		return "Queue item not found"

	case errors.Is(err, store.ErrStoreUnavailable),
		errors.Is(err, service.ErrUnavailable),
		errors.Is(err, task.ErrQueueStopped):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// validationMessage keeps only the domain part of a wrapped validation
// error, e.g. `unknown topic: "poetry"`.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, domain.ErrValidation.Error()+": "); i >= 0 {
		msg = msg[i+len(domain.ErrValidation.Error())+2:]
	}
	if msg == "" {
		return "Validation error"
	}
	return "Invalid request: " + msg
}

// SanitizeValidationError turns struct-tag validation failures into a
// message naming the first failing field.
func SanitizeValidationError(verrs validator.ValidationErrors) string {
	if len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "must be a UUID"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. When userMessage is
// empty, a safe message is derived from the error.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, userMessage string) {
	status := MapErrorToStatusCode(err)
	if userMessage == "" {
		userMessage = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, status, userMessage, err)
}
