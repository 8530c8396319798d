// internal/app/system/apierr/apierr.go

// Package apierr defines the error taxonomy the HTTP layer translates into
// status codes. Services and stores return these so handlers never have to
// inspect error strings.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed application error carrying the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest covers malformed input and failed business preconditions
// (missing ids, free group, zero price).
func BadRequest(msg string) *Error {
	return &Error{Code: http.StatusBadRequest, Message: msg}
}

// Forbidden covers ownership violations.
func Forbidden(msg string) *Error {
	return &Error{Code: http.StatusForbidden, Message: msg}
}

// NotFound covers missing groups, students, and enrollments.
func NotFound(msg string) *Error {
	return &Error{Code: http.StatusNotFound, Message: msg}
}

// Conflict covers duplicate active subscriptions and full groups.
func Conflict(msg string) *Error {
	return &Error{Code: http.StatusConflict, Message: msg}
}

// SignatureInvalid is the webhook authenticity failure. It is the only
// error class a webhook delivery surfaces to the gateway (as a 400).
func SignatureInvalid(err error) *Error {
	return &Error{Code: http.StatusBadRequest, Message: "invalid webhook signature", Err: err}
}

// Internal wraps unexpected store or gateway transport failures.
func Internal(msg string, err error) *Error {
	return &Error{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// As extracts a typed Error from an error chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
