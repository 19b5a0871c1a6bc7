package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("storage: not found")
	ErrInvalidAddress  = errors.New("storage: invalid address")
	ErrAddressMismatch = errors.New("storage: address mismatch")
	ErrStorageFailure  = errors.New("storage: medium failure")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsStorageFailure(err error) bool { return errors.Is(err, ErrStorageFailure) }

// Failure wraps a medium error (no space, permission, I/O, RPC) so callers
// can match it with IsStorageFailure. A nil err yields nil.
func Failure(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsStorageFailure(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}
