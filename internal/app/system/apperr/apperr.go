// internal/app/system/apperr/apperr.go
//
// Package apperr carries the error taxonomy of the group service. Services
// return *Error values; the HTTP layer maps the Kind to a status code.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	Internal Kind = iota
	BadRequest
	NotFound
	PermissionDenied
	AlreadyExists
	InvalidArgument
	InvalidOperation
	Common
	Conflict
)

var kindNames = map[Kind]string{
	Internal:         "internal",
	BadRequest:       "bad_request",
	NotFound:         "not_found",
	PermissionDenied: "permission_denied",
	AlreadyExists:    "already_exists",
	InvalidArgument:  "invalid_argument",
	InvalidOperation: "invalid_operation",
	Common:           "common",
	Conflict:         "conflict",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "internal"
}

// HTTPStatus returns the response status for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case BadRequest, InvalidArgument, Common:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case PermissionDenied:
		return http.StatusForbidden
	case AlreadyExists, Conflict:
		return http.StatusConflict
	case InvalidOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure with a client-facing message.
// Err, when set, is the underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap attaches cause to a classified error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func NewBadRequest(msg string) *Error       { return New(BadRequest, msg) }
func NewNotFound(msg string) *Error         { return New(NotFound, msg) }
func NewPermissionDenied(msg string) *Error { return New(PermissionDenied, msg) }
func NewAlreadyExists(msg string) *Error    { return New(AlreadyExists, msg) }
func NewInvalidArgument(msg string) *Error  { return New(InvalidArgument, msg) }
func NewInvalidOperation(msg string) *Error { return New(InvalidOperation, msg) }
func NewCommon(msg string) *Error           { return New(Common, msg) }
func NewConflict(msg string) *Error         { return New(Conflict, msg) }

// NewInternal hides cause behind a generic message.
func NewInternal(cause error) *Error {
	return Wrap(Internal, "internal error", cause)
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// MessageOf returns the client-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal error"
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
