/**
 * @description
 * Shared error taxonomy for the banking services. Every rejection produced by a
 * service is an *Error carrying a Kind, so HTTP handlers, message consumers and
 * operators can tell "malformed input" from "not allowed right now" from
 * "retry later" without string matching.
 */
package apperror

import "errors"

// Kind classifies an error for callers.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindBusinessRule Kind = "business_rule"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindBusy         Kind = "busy"
	KindDelivery     Kind = "delivery"
	KindInternal     Kind = "internal"
)

// Error is a classified, user-attributable error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}

// Retryable reports whether the caller is expected to retry the whole operation.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindBusy, KindInternal:
		return true
	}
	return false
}
