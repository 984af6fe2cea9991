package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials is returned both when the user does not exist
	// and when the password is wrong. The single sentinel guarantees the
	// two causes are indistinguishable on the wire.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrEmailUnverified = errors.New("email verification required")
	ErrUserNotFound    = errors.New("user not found")

	// ErrTokenRevoked means the signature checked out but no live ledger
	// row exists: logged out, reset, or past its stored expiry.
	ErrTokenRevoked = errors.New("refresh token revoked or expired")

	// ErrCodeInvalid covers missing, consumed and expired single-use
	// codes without distinguishing the cause.
	ErrCodeInvalid = errors.New("invalid or expired code")

	ErrSigningSecretMissing = errors.New("JWT_SECRET not configured")
)

// ValidationError carries the violated rule back to the client.
type ValidationError struct {
	Rule string
}

func (e *ValidationError) Error() string { return e.Rule }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Rule: fmt.Sprintf(format, args...)}
}

// LockoutError reports an active lockout window and how long remains.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many attempts, retry in %d min", e.RetryMinutes())
}

// RetryMinutes rounds the remaining window up to whole minutes for the
// client-facing message.
func (e *LockoutError) RetryMinutes() int {
	mins := int(e.RetryAfter / time.Minute)
	if e.RetryAfter%time.Minute != 0 {
		mins++
	}
	if mins < 1 {
		mins = 1
	}
	return mins
}
