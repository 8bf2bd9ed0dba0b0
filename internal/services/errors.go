// Package services defines the business logic for users, groups, commands
// and the Telegram update pipeline. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
)

// Request validation errors.
var (
	// ErrMissingKey is returned when an update does not carry the record uuid.
	ErrMissingKey = errors.New("bad request")

	// ErrInvalidURL is returned when a command endpoint is not an absolute
	// http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrBadPayload is returned when an inbound update cannot be decoded.
	ErrBadPayload = errors.New("malformed update payload")

	// ErrInvalidRole is returned when a role outside ROOT|ADMIN|USER|SERVICE
	// is requested.
	ErrInvalidRole = errors.New("invalid role")

	// ErrProbeFailed is returned when a new command endpoint rejects the
	// sample update sent to it.
	ErrProbeFailed = errors.New("endpoint probe failed")

	// ErrBadUsage is returned when a chat command is missing its arguments.
	ErrBadUsage = errors.New("bad command usage")
)

// Access errors.
var (
	// ErrUnauthorized is the single indistinguishable failure of every
	// credential or ownership check.
	ErrUnauthorized = auth.ErrUnauthorized

	// ErrForbidden is returned when an authenticated caller may not perform
	// the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrNotPrivateChat is returned when a management command is issued
	// outside a private chat.
	ErrNotPrivateChat = errors.New("command requires a private chat")

	// ErrNoAPIKey is returned when the sender has not been issued an api key.
	ErrNoAPIKey = errors.New("api key required")

	// ErrAPIKeyExists is returned when an api key was already issued.
	ErrAPIKeyExists = errors.New("api key already issued")

	// ErrCommandExists is returned when the command key is already registered.
	ErrCommandExists = errors.New("command already exists")
)

// Lookup and integrity errors.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCommandNotFound indicates that a chat command names an unknown key.
	ErrCommandNotFound = errors.New("command not found")

	// ErrAmbiguousRecord is returned when a lookup that must match at most one
	// record matched several.
	ErrAmbiguousRecord = errors.New("unprocessable entity")

	// ErrCorruptRecord is returned when a stored record lacks its own key.
	ErrCorruptRecord = errors.New("bad gateway")
)
