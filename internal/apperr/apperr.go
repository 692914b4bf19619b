// Package apperr classifies failures into the kinds the HTTP layer reports to clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind int

const (
	// KindInternal covers anything unclassified. Reported as 500.
	KindInternal Kind = iota
	// KindValidation is a rejected input: missing field, bad format, unknown reference.
	KindValidation
	// KindNotFound means the addressed record does not exist.
	KindNotFound
	// KindConflict is a uniqueness violation such as a duplicate subscriber.
	KindConflict
	// KindUnauthorized means the caller presented no usable credential.
	KindUnauthorized
	// KindForbidden means the caller is known but lacks the role.
	KindForbidden
	// KindUpstream is a document store or CDN failure.
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error carries a client-facing message alongside the kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind and client message to err.
func Wrap(kind Kind, err error, message string) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) error { return New(KindValidation, message) }

func Validationf(format string, args ...any) error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(message string) error { return New(KindNotFound, message) }

func Conflict(message string) error { return New(KindConflict, message) }

func Unauthorized(message string) error { return New(KindUnauthorized, message) }

func Forbidden(message string) error { return New(KindForbidden, message) }

// Upstream marks err as a store or CDN failure with a generic client message.
func Upstream(err error, message string) error { return Wrap(KindUpstream, err, message) }

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal when it carries none.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the client-facing message, or fallback for unclassified errors.
func MessageOf(err error, fallback string) string {
	if appErr, ok := As(err); ok && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
