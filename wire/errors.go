package wire

import (
	"errors"
	"fmt"
)

// Kind is a stable category for decode failures.
//
// Callers should branch on Kind (via IsKind or errors.Is against the
// sentinels) rather than matching error strings.
type Kind string

const (
	// KindMalformedFrame covers bad tags, bad presence flags and frames too
	// short to hold a declared field.
	KindMalformedFrame Kind = "MalformedFrame"
	// KindLengthMismatch means a declared message length disagrees with the
	// number of bytes remaining in the frame.
	KindLengthMismatch Kind = "LengthMismatch"
)

// Error is the structured decode error returned by this package.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "wire: " + e.Message
}

// Is makes every *Error match the sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrMalformedFrame = &Error{Kind: KindMalformedFrame, Message: "malformed frame"}
	ErrLengthMismatch = &Error{Kind: KindLengthMismatch, Message: "length mismatch"}
)

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func malformed(format string, args ...any) error {
	return &Error{Kind: KindMalformedFrame, Message: fmt.Sprintf(format, args...)}
}

func lengthMismatch(format string, args ...any) error {
	return &Error{Kind: KindLengthMismatch, Message: fmt.Sprintf(format, args...)}
}
