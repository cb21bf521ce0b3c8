// Package fault provides the error taxonomy shared by every package of the module.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing messages.
type Kind int

const (
	// KindMalformed indicates a wrong fixed length or a malformed DER, PEM or CBOR input.
	KindMalformed Kind = iota + 1
	// KindAuthentication indicates a signature, AEAD tag or certificate signature mismatch.
	KindAuthentication
	// KindFreshness indicates an authentic envelope whose timestamp is outside the drift bound.
	KindFreshness
	// KindValidity indicates an inconsistent certificate validity window.
	KindValidity
	// KindStream indicates a chunk tag mismatch, a missing final chunk or a counter problem.
	KindStream
	// KindUsage indicates the caller supplied the wrong key or invalid parameters.
	KindUsage
)

// Sentinel errors for errors.Is() checks, one per Kind.
var (
	// ErrMalformed matches every KindMalformed error.
	ErrMalformed = errors.New("malformed input")

	// ErrAuthentication matches every KindAuthentication error.
	ErrAuthentication = errors.New("authentication failed")

	// ErrFreshness matches every KindFreshness error.
	ErrFreshness = errors.New("timestamp outside allowed drift")

	// ErrValidity matches every KindValidity error.
	ErrValidity = errors.New("invalid validity window")

	// ErrStream matches every KindStream error.
	ErrStream = errors.New("stream integrity failure")

	// ErrUsage matches every KindUsage error.
	ErrUsage = errors.New("invalid usage")
)

// String returns the sentinel message of the kind.
func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) sentinel() error {
	switch k {
	case KindMalformed:
		return ErrMalformed
	case KindAuthentication:
		return ErrAuthentication
	case KindFreshness:
		return ErrFreshness
	case KindValidity:
		return ErrValidity
	case KindStream:
		return ErrStream
	case KindUsage:
		return ErrUsage
	}
	return nil
}

// Error is the concrete error returned by every operation of the module.
type Error struct {
	// Op is the failing operation, e.g. "cose.Verify".
	Op string
	// Kind classifies the failure.
	Kind Kind
	// Detail is a human-readable description. Never branch on it.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// New creates an error of the given kind.
func New(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(op string, kind Kind, err error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

// Malformed creates a KindMalformed error.
func Malformed(op, format string, args ...any) *Error {
	return New(op, KindMalformed, format, args...)
}

// Usage creates a KindUsage error.
func Usage(op, format string, args ...any) *Error {
	return New(op, KindUsage, format, args...)
}

// Authentication creates a KindAuthentication error. It never carries a cause.
func Authentication(op, detail string) *Error {
	return &Error{Op: op, Kind: KindAuthentication, Detail: detail}
}

// KindOf returns the kind of err, or zero if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// WithOp returns a copy of err attributed to op. Non-*Error values are returned unchanged.
func WithOp(err error, op string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	out := *e
	out.Op = op
	return &out
}
