package service

import (
	"time"

	"github.com/credkit/session-service/internal/domain"
)

// LoginThrottle is the per-email lockout policy over the counter fields on
// the users row. The check-then-act sequence is not isolated from
// concurrent attempts, so this is a best-effort throttle, not a hard
// boundary against distributed brute force; the failure increment itself
// is atomic (see UserRepository.IncrementFailedLogin).
type LoginThrottle struct {
	maxAttempts int
	window      time.Duration
}

func NewLoginThrottle(maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{maxAttempts: maxAttempts, window: window}
}

// Check returns a LockoutError when the account has reached the attempt
// threshold and the window has not yet elapsed. A nil user always passes:
// unknown emails must not behave differently here.
func (t *LoginThrottle) Check(user *domain.User, now time.Time) error {
	if user == nil || user.LastFailedLoginAt == nil {
		return nil
	}
	if user.FailedLoginAttempts < t.maxAttempts {
		return nil
	}
	lockedUntil := user.LastFailedLoginAt.Add(t.window)
	if now.Before(lockedUntil) {
		return &LockoutError{RetryAfter: lockedUntil.Sub(now)}
	}
	return nil
}
