// Package faults defines the error taxonomy shared by the ledger
// engine: every failure a caller can act on is one of a small set of
// kinds, carrying a stable snake_case code and optional detail fields
// (e.g. the minimum vs. full amount on a rejected payment).
package faults

import "errors"

type Kind int

const (
	Validation Kind = iota + 1
	NotFound
	Conflict
	InsufficientFunds
	Unauthorized
	ExternalDelivery
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// With attaches a detail field and returns the same error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// KindOf reports the Kind of err, or 0 for untyped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// CodeOf reports the stable code of err, or "internal" for untyped errors.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return "internal"
}

// DetailsOf reports the detail fields of err, if any.
func DetailsOf(err error) map[string]any {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Details
	}
	return nil
}
