package util

import (
	"errors"
	"net/http"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthentication
	KindAuthorization
	KindValidation
	KindNotFound
	KindBusinessRule
	KindConflict
)

// AppError is a failure whose Message is safe to show to the end user.
type AppError struct {
	Kind    ErrorKind
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func newError(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

const MsgDuplicateRequest = "You already have a pending request for this listing"

var (
	ErrNotAuthenticated = newError(KindAuthentication, "Not authenticated")
	ErrUnauthorized     = newError(KindAuthorization, "Unauthorized")
	ErrInvalidData      = newError(KindValidation, "Invalid data")

	ErrUserNotFound    = newError(KindNotFound, "User not found")
	ErrListingNotFound = newError(KindNotFound, "Listing not found")
	ErrRequestNotFound = newError(KindNotFound, "Request not found")
	ErrPhotoNotFound   = newError(KindNotFound, "Photo not found")

	ErrOwnListing           = newError(KindBusinessRule, "You cannot request your own listing")
	ErrNoTenantRequests     = newError(KindBusinessRule, "This listing does not accept tenant requests")
	ErrDuplicateRequest     = newError(KindBusinessRule, MsgDuplicateRequest)
	ErrRequestHandled       = newError(KindBusinessRule, "This request has already been handled")
	ErrListingArchived      = newError(KindBusinessRule, "This listing is no longer available")
	ErrEmailRegistered      = newError(KindBusinessRule, "Email already registered")
	ErrInvalidCredentials   = newError(KindAuthentication, "Invalid email or password")
	ErrAccountDisabled      = newError(KindAuthorization, "Account disabled")
	ErrTooManyListingPhotos = newError(KindBusinessRule, "Too many photos for this listing")
	ErrAlreadyTenant        = newError(KindBusinessRule, "You are already a tenant of this listing")

	// ErrRequestConflict is what a unique-index violation on tenant_requests becomes.
	ErrRequestConflict = newError(KindConflict, MsgDuplicateRequest)
)

// Invalid builds a validation error with a specific message.
func Invalid(msg string) *AppError {
	return newError(KindValidation, msg)
}

// AsAppError unwraps err into an *AppError if it is one.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
