package accounts

import (
	"errors"

	utils "github.com/tvloc02/EventVer1-sub001/shared/utils/auth"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account temporarily locked after repeated failed logins")
	ErrAccountInactive    = errors.New("account is not active")
	ErrEmailTaken         = errors.New("email is already registered")

	ErrInvalidResetToken        = errors.New("invalid or expired password reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrAlreadyVerified          = errors.New("email is already verified")
	ErrTooManyRequests          = errors.New("too many requests")

	ErrWrongPassword = errors.New("current password is incorrect")
	ErrSamePassword  = errors.New("new password must differ from the current one")
	ErrWeakPassword  = errors.New("password does not meet the policy")
)

// PolicyError carries the report of a rejected password. It matches
// ErrWeakPassword.
type PolicyError struct {
	Report utils.PolicyReport
}

func (e *PolicyError) Error() string { return ErrWeakPassword.Error() }

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }
