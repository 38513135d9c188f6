// Package apperr maps service failures onto a small set of kinds that the
// HTTP layer turns into status codes.
package apperr

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Kind is the caller-facing class of a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindBadRequest
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindBadRequest:
		return "BAD_REQUEST"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}

func NotFound(cause error, message string) error {
	return build(cause, KindNotFound, message)
}

func Conflict(cause error, message string) error {
	return build(cause, KindConflict, message)
}

func BadRequest(cause error, message string) error {
	return build(cause, KindBadRequest, message)
}

func Unauthorized(cause error, message string) error {
	return build(cause, KindUnauthorized, message)
}

func Forbidden(cause error, message string) error {
	return build(cause, KindForbidden, message)
}

func Internal(cause error, message string) error {
	return build(cause, KindInternal, message)
}

// Error is a classified failure. It carries the go-errors envelope used for
// rendering and keeps the cause reachable through errors.Is / errors.As.
type Error struct {
	env   *goerrors.Error
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.env.Message
	}
	return e.env.Message + ": " + e.cause.Error()
}

// Envelope returns the go-errors representation of e.
func (e *Error) Envelope() *goerrors.Error { return e.env }

func (e *Error) Unwrap() error { return e.cause }

func build(cause error, kind Kind, message string) error {
	env := goerrors.New(message, category(kind)).
		WithCode(status(kind)).
		WithTextCode(kind.String())
	return &Error{env: env, cause: cause}
}

// KindOf reports the kind of err. Errors that were never classified are internal.
func KindOf(err error) Kind {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return KindInternal
	}
	switch e.env.Category {
	case goerrors.CategoryNotFound:
		return KindNotFound
	case goerrors.CategoryConflict:
		return KindConflict
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return KindBadRequest
	case goerrors.CategoryAuth:
		return KindUnauthorized
	case goerrors.CategoryAuthz:
		return KindForbidden
	default:
		return KindInternal
	}
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	return status(KindOf(err))
}

// Body is the machine-readable error payload.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BodyOf builds the payload for err. Internal messages are not exposed.
func BodyOf(err error) Body {
	kind := KindOf(err)
	if kind == KindInternal {
		return Body{Error: kind.String(), Message: "an unexpected error occurred"}
	}
	var e *Error
	msg := err.Error()
	if errors.As(err, &e) && e.env.Message != "" {
		msg = e.env.Message
	}
	return Body{Error: kind.String(), Message: msg}
}

func category(kind Kind) goerrors.Category {
	switch kind {
	case KindNotFound:
		return goerrors.CategoryNotFound
	case KindConflict:
		return goerrors.CategoryConflict
	case KindBadRequest:
		return goerrors.CategoryBadInput
	case KindUnauthorized:
		return goerrors.CategoryAuth
	case KindForbidden:
		return goerrors.CategoryAuthz
	default:
		return goerrors.CategoryInternal
	}
}

func status(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
