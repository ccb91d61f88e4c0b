// Package apperr defines the error taxonomy shared by the access-control core
// and the HTTP layer.
//
// Domain packages return *Error values (or wrap them); handlers map the Kind
// to an HTTP status and the Code to the machine-readable "error" field.
//
//	return apperr.New(apperr.Conflict, "RENTAL_EXISTS", "an active rental already exists")
//	...
//	status := apperr.HTTPStatus(err)   // 409
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for status mapping.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	Forbidden
	NotFound
	Conflict
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Invalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Machine-readable codes returned in the "error" field of error bodies.
const (
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeForbidden            = "FORBIDDEN"
	CodeRentalRequired       = "RENTAL_REQUIRED"
	CodeNotFound             = "NOT_FOUND"
	CodeRentalExists         = "RENTAL_EXISTS"
	CodeDuplicateTransaction = "DUPLICATE_TRANSACTION"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeNoPricing            = "NO_PRICING"
	CodePaymentNotConfirmed  = "PAYMENT_NOT_CONFIRMED"
	CodeInternal             = "INTERNAL"
)

// Error is a classified error. Message is safe to show to callers; Err is the
// underlying cause and is only ever logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error without an underlying cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(err error, kind Kind, code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// Internalf wraps an unexpected failure. The caller sees a generic message.
func Internalf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:    Internal,
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     fmt.Errorf(format+": %w", append(args, err)...),
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Internal
}

// CodeOf returns the machine code of err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Invalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to send to a caller.
func PublicMessage(err error) string {
	if e, ok := As(err); ok && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}
