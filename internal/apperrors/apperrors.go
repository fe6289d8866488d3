package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category is the stable machine-checkable error class exposed to clients.
type Category string

const (
	AuthenticationRequired Category = "authentication_required"
	PermissionDenied       Category = "permission_denied"
	NotFound               Category = "not_found"
	InvalidRequest         Category = "invalid_request"
	Conflict               Category = "conflict"
	RateLimited            Category = "rate_limited"
	ServiceTimeout         Category = "service_timeout"
	Internal               Category = "internal"
)

// Error carries a category, a user-visible message and an optional cause.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a categorized error.
func New(cat Category, message string) *Error {
	return &Error{Category: cat, Message: message}
}

// Wrap attaches a cause to a categorized error.
func Wrap(cat Category, message string, err error) *Error {
	return &Error{Category: cat, Message: message, Err: err}
}

// CategoryOf extracts the category, mapping context deadline errors to
// ServiceTimeout and anything unrecognized to Internal.
func CategoryOf(err error) Category {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ServiceTimeout
	}
	return Internal
}

// Is reports whether err carries the given category.
func Is(err error, cat Category) bool {
	return CategoryOf(err) == cat
}

// MessageOf returns the user-visible message, hiding internals.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "service unavailable"
	}
	return "internal error"
}

// HTTPStatus maps a category to its HTTP status code.
func HTTPStatus(err error) int {
	switch CategoryOf(err) {
	case AuthenticationRequired:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case ServiceTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
