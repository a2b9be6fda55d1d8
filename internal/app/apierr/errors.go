// Package apierr defines the error taxonomy shared by stores, services, and
// the HTTP layer, and the single place that maps a domain error to an HTTP
// status code.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a ServiceError into one of the categories the control
// plane distinguishes.
type Code string

const (
	CodeNotFound      Code = "not_found"
	CodeValidation    Code = "validation"
	CodeAuthorization Code = "authorization"
	CodeConflict      Code = "conflict"
	CodeWorker        Code = "worker"
	CodePermissions   Code = "permissions"
	CodeInternal      Code = "internal"
)

// ServiceError is the error type every layer of the control plane should
// return once an error crosses a package boundary into something the HTTP
// layer must report on.
type ServiceError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newErr(code Code, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a 404-class error: actor/execution/worker/permission record absent.
func NotFound(format string, args ...interface{}) *ServiceError {
	return newErr(CodeNotFound, format, args...)
}

// Validation builds a 400-class error: missing required field, type mismatch, invalid enum value.
func Validation(format string, args ...interface{}) *ServiceError {
	return newErr(CodeValidation, format, args...)
}

// Authorization builds a 403-class error: insufficient permission level or tenant mismatch.
func Authorization(format string, args ...interface{}) *ServiceError {
	return newErr(CodeAuthorization, format, args...)
}

// Conflict builds a 400/409-class error: malformed body, disallowed operation on current state.
func Conflict(format string, args ...interface{}) *ServiceError {
	return newErr(CodeConflict, format, args...)
}

// Worker builds an error from the worker store/protocol layer.
func Worker(format string, args ...interface{}) *ServiceError {
	return newErr(CodeWorker, format, args...)
}

// Permissions builds an error from the permissions store layer.
func Permissions(format string, args ...interface{}) *ServiceError {
	return newErr(CodePermissions, format, args...)
}

// Internal wraps an unclassified I/O failure (store, channel) as a 500.
func Internal(cause error, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Wrap re-tags an arbitrary error as Internal unless it is already a ServiceError.
func Wrap(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return &ServiceError{Code: CodeInternal, Message: "internal error", Cause: err}
}

// Is reports whether err (or anything it wraps) has the given code.
func Is(err error, code Code) bool {
	var se *ServiceError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == code
}

// HTTPStatus maps a ServiceError's code to the status this layer reports.
// Unclassified errors fall back to 500, matching the "Propagation" rule:
// handlers convert anything that isn't a recognized ServiceError to 500.
func HTTPStatus(err error) int {
	var se *ServiceError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case CodeNotFound, CodeWorker, CodePermissions:
		return http.StatusNotFound
	case CodeValidation, CodeConflict:
		return http.StatusBadRequest
	case CodeAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
