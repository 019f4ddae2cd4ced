// internal/app/system/authflow/errors.go
package authflow

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict: signup for an email that already has an account.
	ErrConflict = errors.New("an account with this email already exists")
	// ErrNotFound: the account a token points at no longer exists.
	ErrNotFound = errors.New("account not found")
	// ErrLocked: too many recent failures for the email.
	ErrLocked = errors.New("account temporarily locked")
	// ErrInvalidCredentials: unknown email, wrong password or inactive account.
	// Returned wrapped in *CredentialsError.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidOrExpiredToken: reset token unknown, used or expired.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired password reset link")
)

// CredentialsError is returned by Login when the credentials do not match.
// Remaining is the advisory number of attempts left before lockout; it is
// computed from a count read before this failure was recorded, so concurrent
// attempts can make it stale.
type CredentialsError struct {
	Remaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("%s (%d attempts remaining)", ErrInvalidCredentials.Error(), e.Remaining)
}

// Is makes errors.Is(err, ErrInvalidCredentials) match.
func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
