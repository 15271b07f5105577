package security

import (
	"errors"
	"fmt"
)

// ErrCryptographic matches every failure reported by the primitives in
// this package.
var ErrCryptographic = errors.New("cryptographic failure")

// CryptoError is a failure of a signing, encryption or key derivation step.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

func (e *CryptoError) Is(target error) bool {
	return target == ErrCryptographic
}

func cryptoError(op string, err error) error {
	return &CryptoError{Op: op, Err: err}
}

func cryptoErrorf(op, format string, args ...any) error {
	return &CryptoError{Op: op, Err: fmt.Errorf(format, args...)}
}
