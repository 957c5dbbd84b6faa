// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sonarerr defines the coarse error taxonomy shared by every
// component: catalog services, the import pipeline, the external registry,
// and the two wire adapters all return *Error so the adapters can map a
// single Kind into their own wire codes without inspecting error strings.
package sonarerr

import (
	"errors"
	"fmt"
)

// Kind is the coarse classification of an error, independent of which
// wire protocol eventually reports it.
type Kind int

const (
	// Internal covers everything that is not one of the named kinds
	// below: I/O failures, programmer errors, unexpected database state.
	Internal Kind = iota
	// Invalid marks caller-side validation failures.
	Invalid
	// NotFound marks a lookup that found no row.
	NotFound
	// Unauthorized marks authentication or authorization failures.
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is the coarse, kind-tagged error every internal component returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Invalidf builds a validation error.
func Invalidf(format string, args ...any) *Error { return newf(Invalid, format, args...) }

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) *Error { return newf(NotFound, format, args...) }

// Unauthorizedf builds an authentication/authorization error.
func Unauthorizedf(format string, args ...any) *Error { return newf(Unauthorized, format, args...) }

// Internalf builds an internal error.
func Internalf(format string, args ...any) *Error { return newf(Internal, format, args...) }

// Wrap attaches cause to a new error of the given kind, preserving cause's
// message as context.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapInternal is shorthand for Wrap(Internal, ...), the common case of a
// lower-layer failure (database, blob store, network) surfacing as an
// opaque internal error to callers.
func WrapInternal(cause error, format string, args ...any) *Error {
	return Wrap(Internal, cause, format, args...)
}

// KindOf extracts the Kind from err, defaulting to Internal for errors that
// did not originate in this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err (or something it wraps) is a *Error of the given
// kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
