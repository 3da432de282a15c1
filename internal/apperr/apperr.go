package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	Invalid      Kind = "invalid"
	NotFound     Kind = "not_found"
	Unauthorized Kind = "unauthorized"
	Conflict     Kind = "conflict"
	Unavailable  Kind = "unavailable"
	Internal     Kind = "internal"
)

// Classified is implemented by errors that carry their own kind and a
// message that is safe to show to API callers.
type Classified interface {
	error
	Kind() Kind
	Code() string
	PublicMessage() string
}

// Error is a sentinel-friendly domain error. Declare package-level values
// with New and wrap them with fmt.Errorf("...: %w", ErrX) for context.
type Error struct {
	kind Kind
	code string
	msg  string
}

func New(kind Kind, code, msg string) *Error {
	return &Error{kind: kind, code: code, msg: msg}
}

func (e *Error) Error() string         { return e.msg }
func (e *Error) Kind() Kind            { return e.kind }
func (e *Error) Code() string          { return e.code }
func (e *Error) PublicMessage() string { return e.msg }

func As(err error) (Classified, bool) {
	var c Classified
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	c, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch c.Kind() {
	case Invalid:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func PublicMessage(err error) string {
	if c, ok := As(err); ok && c.PublicMessage() != "" {
		return c.PublicMessage()
	}
	return "Internal server error"
}

func CodeOf(err error) string {
	if c, ok := As(err); ok {
		return c.Code()
	}
	return "INTERNAL"
}
