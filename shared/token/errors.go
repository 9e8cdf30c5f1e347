package token

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenIssuance is the only error callers of the Issuer need to
	// branch on. It never carries signing library detail in its message.
	ErrTokenIssuance = errors.New("cannot issue token")

	// ErrSigning marks a missing secret or a failing signing primitive.
	ErrSigning = errors.New("signing key unavailable or signing failed")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// IssuanceError reports a failed issuance. Error() is safe to show to end
// users; Cause() is for logs only.
type IssuanceError struct {
	Type  Type
	cause error
}

func newIssuanceError(typ Type, cause error) *IssuanceError {
	return &IssuanceError{Type: typ, cause: cause}
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("cannot issue %s token", e.Type)
}

func (e *IssuanceError) Unwrap() []error {
	return []error{ErrTokenIssuance, ErrSigning}
}

// Cause returns the underlying failure.
func (e *IssuanceError) Cause() error {
	return e.cause
}
