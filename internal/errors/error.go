package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryReactive Category = "reactive"
	CategoryScenario Category = "scenario"
	CategoryConfig   Category = "config"
	CategorySnapshot Category = "snapshot"
)

// Error is a structured error with a stable code, a hint, and an optional
// wrapped cause.
type Error struct {
	// Code is a unique error identifier (e.g., "R001").
	Code string

	// Category is the error type (reactive, scenario, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Node is the label of the reactive node involved, if any.
	Node string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface. A detail set by the caller is
// included; the registered template's generic detail is not.
func (e *Error) Error() string {
	msg := e.Message
	if e.Node != "" {
		msg += " (" + e.Node + ")"
	}
	if e.Detail != "" && e.Detail != registry[e.Code].Detail {
		msg += ": " + e.Detail
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithNode records the label of the node the error concerns.
func (e *Error) WithNode(label string) *Error {
	e.Node = label
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new Error with a formatted message under a registered code.
// The template's category and hint are kept; the message is replaced.
func Newf(code string, format string, args ...any) *Error {
	e := New(code)
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// FromError wraps a standard error in an Error.
// Errors that already are *Error are returned unchanged.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return New(code).Wrap(err)
}

// Sentinel returns a bare Error carrying only code and message, suitable as
// an errors.Is target.
func Sentinel(code string) *Error {
	e := New(code)
	return &Error{Code: e.Code, Category: e.Category, Message: e.Message}
}
