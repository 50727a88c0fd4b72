// Package core holds the Session Manager's data model: sessions, play state,
// library-item facets, commands, events and the error kinds the manager
// surfaces to callers.
package core

import "fmt"

// Kind is one of the semantic error kinds from the error-handling design.
// It is not a type hierarchy — every error the manager returns to a caller
// carries exactly one Kind, and callers switch on it instead of doing type
// assertions.
type Kind string

const (
	KindInvalidArgument Kind = "InvalidArgument"
	KindNotFound        Kind = "NotFound"
	KindSecurityDenied  Kind = "SecurityDenied"
	KindDisposed        Kind = "Disposed"
	KindOutOfRange      Kind = "OutOfRange"
)

// Error is the manager's public error type. Details carries structured
// context for logging; it is never required for correct error handling by
// callers, who should branch on Kind.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Kind) + ": " + e.Message
}

// Is reports whether target is also a *Error of the same Kind, so
// errors.Is(err, core.NewNotFound("")) matches any NotFound error.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewInvalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, format, args...)
}

func NewNotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func NewSecurityDenied(format string, args ...any) *Error {
	return newError(KindSecurityDenied, format, args...)
}

func NewDisposed(format string, args ...any) *Error {
	return newError(KindDisposed, format, args...)
}

func NewOutOfRange(format string, args ...any) *Error {
	return newError(KindOutOfRange, format, args...)
}

// WithDetails attaches structured context and returns the same error for
// chaining at the call site: `return nil, core.NewNotFound("...").WithDetails(...)`.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, returning "" if err is not a *Error.
func KindOf(err error) Kind {
	var coreErr *Error
	if e, ok := err.(*Error); ok {
		coreErr = e
	}
	if coreErr == nil {
		return ""
	}
	return coreErr.Kind
}
