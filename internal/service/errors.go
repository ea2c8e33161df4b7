package service

import "errors"

var (
	// ErrInvalidCredentials is returned for any failed credential check.
	// The message is deliberately the same whether the handle is unknown,
	// the account is inactive, or the password is wrong.
	ErrInvalidCredentials = errors.New("unable to log in with provided credentials")

	// ErrInvalidToken covers every way a reset link can be bad: malformed,
	// expired, consumed, or bound to state that has since changed.
	ErrInvalidToken = errors.New("invalid reset link")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// ConflictError reports a duplicate unique field during registration.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " is already in use"
}
