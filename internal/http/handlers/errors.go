// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants and the single mapping
// from service errors to HTTP statuses. Codes give clients a stable,
// machine-readable taxonomy that supplements the human-readable message.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes mirror common HTTP status semantics.
//   - Every error response carries both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "forbidden",
//	  "error": "command already exists"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/jotacemarin/botnorrea-v2/internal/services"
)

const (
	ErrCodeBadRequest          = "bad_request"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeForbidden           = "forbidden"
	ErrCodeNotFound            = "not_found"
	ErrCodeConflict            = "conflict"
	ErrCodeUnprocessableEntity = "unprocessable_entity"
	ErrCodeRateLimited         = "too_many_requests"
	ErrCodeInternal            = "internal_error"
	ErrCodeBadGateway          = "bad_gateway"
	ErrCodeMethodNotAllowed    = "method_not_allowed"
)

// statusFor maps a service error to its HTTP status and error code.
// Unknown errors are internal.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrMissingKey),
		errors.Is(err, services.ErrInvalidURL),
		errors.Is(err, services.ErrBadPayload),
		errors.Is(err, services.ErrBadUsage),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrProbeFailed):
		return http.StatusBadRequest, ErrCodeBadRequest

	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized

	// Conflicts are reported as 403.
	case errors.Is(err, services.ErrCommandExists),
		errors.Is(err, services.ErrAPIKeyExists):
		return http.StatusForbidden, ErrCodeConflict
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotPrivateChat),
		errors.Is(err, services.ErrNoAPIKey):
		return http.StatusForbidden, ErrCodeForbidden

	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrCommandNotFound):
		return http.StatusNotFound, ErrCodeNotFound

	case errors.Is(err, services.ErrAmbiguousRecord):
		return http.StatusUnprocessableEntity, ErrCodeUnprocessableEntity

	case errors.Is(err, services.ErrCorruptRecord):
		return http.StatusBadGateway, ErrCodeBadGateway
	}
	return http.StatusInternalServerError, ErrCodeInternal
}
