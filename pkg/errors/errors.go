// Package errors defines the sentinel errors returned by the HTTP and CLI
// surfaces and maps them to status codes. Resolution itself never fails;
// absence is reported as a boolean and converted here only at the edge.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEntryNotFound        = errors.New("entry not found")
	ErrModuleNotFound       = errors.New("module not found")
	ErrMalformedCompositeID = errors.New("malformed composite id")
	ErrUnresolved           = errors.New("input could not be resolved")
	ErrInvalidInput         = errors.New("invalid input")
	ErrCacheUnavailable     = errors.New("cache unavailable")
	ErrInternal             = errors.New("internal error")
	ErrTimeout              = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrUnresolved):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedCompositeID):
		return http.StatusBadRequest
	case errors.Is(err, ErrCacheUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
