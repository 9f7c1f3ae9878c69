package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorises a domain failure so transport layers can map it
// without inspecting message text.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidRequest    Kind = "invalid_request"
	KindInvalidMethod     Kind = "invalid_method"
	KindDuplicatePayment  Kind = "duplicate_payment"
	KindAlreadyConfirmed  Kind = "already_confirmed"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindUnavailable       Kind = "unavailable"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind carried by err, or "" when err is not an apperr.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// HTTPStatus maps a failure kind to the response code the API returns.
// Unavailable is the only 5xx: it tells clients to retry later rather
// than fix the request.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition, KindDuplicatePayment, KindAlreadyConfirmed, KindConflict:
		return http.StatusConflict
	case KindInvalidRequest, KindInvalidMethod:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
