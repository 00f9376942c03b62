// Package errs provides the unified error taxonomy for the agent runtime
// and Integration Fabric (see spec.md §7).
package errs

import (
	"fmt"
	"net/http"
)

// Code identifies one of the error kinds from the spec's taxonomy.
type Code string

const (
	CodeSchema               Code = "schema"
	CodeNotFound             Code = "not_found"
	CodeUnknownIntegration   Code = "unknown_integration"
	CodeActionNotPermitted   Code = "action_not_permitted"
	CodeConfirmationRequired Code = "confirmation_required"
	CodeUnauthorized         Code = "unauthorized"
	CodeTimeout              Code = "timeout"
	CodeUpstream             Code = "upstream"
	CodeInternal             Code = "internal"
	CodeQueueFull            Code = "queue_full"
	CodeQueueClosed          Code = "queue_closed"
	CodeTransient            Code = "transient"
	CodeUnsupportedAction    Code = "unsupported_action"
	CodeUnknownOperation     Code = "unknown_operation"
)

// httpStatusByCode maps each Code to the HTTP status the edge should return.
var httpStatusByCode = map[Code]int{
	CodeSchema:               http.StatusBadRequest,
	CodeNotFound:              http.StatusNotFound,
	CodeUnknownIntegration:   http.StatusNotFound,
	CodeActionNotPermitted:   http.StatusForbidden,
	CodeConfirmationRequired: http.StatusForbidden,
	CodeUnauthorized:         http.StatusUnauthorized,
	CodeTimeout:              http.StatusRequestTimeout,
	CodeUpstream:             http.StatusBadGateway,
	CodeInternal:             http.StatusInternalServerError,
	CodeQueueFull:            http.StatusServiceUnavailable,
	CodeQueueClosed:          http.StatusGone,
	CodeTransient:            http.StatusServiceUnavailable,
	CodeUnsupportedAction:    http.StatusBadRequest,
	CodeUnknownOperation:     http.StatusBadRequest,
}

// HTTPStatus returns the status code the HTTP edge should emit for code.
func HTTPStatus(code Code) int {
	if s, ok := httpStatusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a structured error carrying a stable Code, a human message, and
// optional details/wrapped cause. Callers key off Code, never Message.
type Error struct {
	Code        Code
	Message     string
	Details     map[string]any
	Cause       error
	RetryAfterMs int64 // populated for CodeTransient
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithDetail attaches a detail key/value and returns the receiver for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an Error wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Transient constructs a retryable error carrying a retry hint.
func Transient(message string, retryAfterMs int64, cause error) *Error {
	return &Error{Code: CodeTransient, Message: message, Cause: cause, RetryAfterMs: retryAfterMs}
}

// Schema, NotFound, etc. are convenience constructors mirroring the
// taxonomy's named kinds so call sites read the same as the spec text.

func Schema(message string) *Error       { return New(CodeSchema, message) }
func NotFound(resource, id string) *Error {
	return New(CodeNotFound, "resource not found").WithDetail("resource", resource).WithDetail("id", id)
}
func UnknownIntegration(name string) *Error {
	return New(CodeUnknownIntegration, "unknown or disabled integration").WithDetail("integration", name)
}
func ActionNotPermitted(action string) *Error {
	return New(CodeActionNotPermitted, "action not permitted for this integration").WithDetail("action", action)
}
func ConfirmationRequired() *Error {
	return New(CodeConfirmationRequired, "confirmation required for this action")
}
func Unauthorized(message string) *Error { return New(CodeUnauthorized, message) }
func Timeout(message string) *Error      { return New(CodeTimeout, message) }
func Upstream(httpStatus int, body string) *Error {
	return New(CodeUpstream, "upstream returned a non-success response").
		WithDetail("http_status", httpStatus).WithDetail("body", body)
}
func Internal(message string, cause error) *Error { return Wrap(CodeInternal, message, cause) }
func QueueFull(queue string) *Error {
	return New(CodeQueueFull, "queue is at capacity").WithDetail("queue", queue)
}
func QueueClosed(queue string) *Error {
	return New(CodeQueueClosed, "queue is draining or closed").WithDetail("queue", queue)
}
func UnsupportedAction(action string) *Error {
	return New(CodeUnsupportedAction, "action has no known HTTP method mapping").WithDetail("action", action)
}
func UnknownOperation(op string) *Error {
	return New(CodeUnknownOperation, "operation not registered on this agent").WithDetail("operation", op)
}

// AsError extracts *Error from err, wrapping it as Internal if it isn't one already.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internal(err.Error(), err)
}
