// Package apperror is the error taxonomy surfaced by the API.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindJobUnknown
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "authentication_required"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindJobUnknown:
		return "job_unknown"
	default:
		return "internal"
	}
}

// FieldErrors maps a field name to its messages. "non_field_errors" holds
// errors not tied to one field.
type FieldErrors map[string][]string

const NonField = "non_field_errors"

func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// Fields returns the field names in sorted order.
func (f FieldErrors) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type Error struct {
	Kind    Kind
	Message string
	Fields  FieldErrors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(fields FieldErrors) *Error {
	return &Error{Kind: KindValidation, Message: "Validation error", Fields: fields}
}

// ValidationField is a shortcut for a single-field validation error.
func ValidationField(field, msg string) *Error {
	return Validation(FieldErrors{field: {msg}})
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func JobUnknown(id string) *Error {
	return &Error{Kind: KindJobUnknown, Message: fmt.Sprintf("Job %s not found", id)}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
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

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindJobUnknown:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
