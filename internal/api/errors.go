package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/tasklink/internal/api/shared"
	"github.com/phrazzld/tasklink/internal/domain"
	"github.com/phrazzld/tasklink/internal/queue"
	"github.com/phrazzld/tasklink/internal/service"
	"github.com/phrazzld/tasklink/internal/service/auth"
	"github.com/phrazzld/tasklink/internal/store"
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
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrInvalidJob),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, domain.ErrInvalidTrackerStatus),
		errors.Is(err, domain.ErrInvalidTimestamp),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, queue.ErrInvalidPayload):
		return http.StatusBadRequest

	// Upstream errors
	case errors.Is(err, service.ErrTrackerSync):
		return http.StatusBadGateway

	case errors.Is(err, queue.ErrQueueClosed):
		return http.StatusServiceUnavailable

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
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, store.ErrLinkNotFound):
		return "Link not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Already exists"

	case errors.Is(err, domain.ErrInvalidJob):
		return "Invalid link job"

	case errors.Is(err, domain.ErrInvalidTaskStatus):
		return "Invalid task status"

	case errors.Is(err, domain.ErrInvalidTrackerStatus):
		return "Invalid tracker status"

	case errors.Is(err, domain.ErrInvalidTimestamp):
		return "Invalid timestamp"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, queue.ErrInvalidPayload):
		return "Invalid request data"

	case errors.Is(err, service.ErrTrackerSync):
		return "Issue tracker update failed"

	case errors.Is(err, queue.ErrQueueClosed):
		return "Service is shutting down"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator output into a message naming the
// first offending field without echoing struct internals.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", jsonFieldName(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	if errors.Is(err, shared.ErrEmptyBody) {
		return "Request body is required"
	}
	return "Invalid request format"
}

// jsonFieldName converts a Go field name to the snake_case name used on the wire.
func jsonFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid URL"
	case "oneof":
		return "invalid value"
	case "numeric":
		return "must be numeric"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}

// respondWithServiceError maps err and writes the sanitized response.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
