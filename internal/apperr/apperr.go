package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUpstream     Kind = "upstream"
	KindForbidden    Kind = "forbidden"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error carries a public message for the client and the internal cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NotFound(msg string) *Error   { return New(KindNotFound, msg) }
func Conflict(msg string) *Error   { return New(KindConflict, msg) }
func Validation(msg string) *Error { return New(KindValidation, msg) }
func Forbidden(msg string) *Error  { return New(KindForbidden, msg) }

func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }

func Upstream(msg string, err error) *Error { return Wrap(KindUpstream, msg, err) }
func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }

// KindOf returns KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage never leaks the wrapped cause.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
