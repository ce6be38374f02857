package utils

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// AppError is the error shape every handler reports. The central responder in
// the middleware package turns it into the JSON error body.
type AppError struct {
	Status  int
	Message string
	Details []string
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Stack renders the cause with its recorded stack trace.
func (e *AppError) Stack() string {
	if e.cause == nil {
		return ""
	}
	return fmt.Sprintf("%+v", e.cause)
}

func newAppError(status int, message string, cause error, details []string) *AppError {
	if cause == nil {
		cause = pkgerrors.New(message)
	} else {
		cause = pkgerrors.WithStack(cause)
	}
	return &AppError{Status: status, Message: message, Details: details, cause: cause}
}

func ValidationError(message string, details ...string) *AppError {
	return newAppError(http.StatusBadRequest, message, nil, details)
}

func Unauthorized(message string) *AppError {
	return newAppError(http.StatusUnauthorized, message, nil, nil)
}

func Forbidden(message string) *AppError {
	return newAppError(http.StatusForbidden, message, nil, nil)
}

func NotFound(message string) *AppError {
	return newAppError(http.StatusNotFound, message, nil, nil)
}

func Conflict(message string) *AppError {
	return newAppError(http.StatusConflict, message, nil, nil)
}

func TooManyRequests(message string) *AppError {
	return newAppError(http.StatusTooManyRequests, message, nil, nil)
}

func Internal(message string, cause error) *AppError {
	return newAppError(http.StatusInternalServerError, message, cause, nil)
}

// AsAppError unwraps err into an AppError, wrapping unknown errors as 500s.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}
