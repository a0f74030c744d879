package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned at the service boundary. Handlers match on these
// with errors.Is and never see raw store errors for policy failures.
var (
	// ErrInvalidCredentials is deliberately uniform: it never reveals
	// whether the email exists or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account deactivated")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrSessionNotFound    = errors.New("session not found or revoked")
	ErrWeakPassword       = errors.New("password does not meet policy")
	ErrNotFound           = errors.New("not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrConflict           = errors.New("email already in use")
	ErrInvalidRole        = errors.New("invalid role")
)

// AccountLockedError carries the remaining lock time. A nil Until means the
// lock is permanent and only an admin can clear it.
type AccountLockedError struct {
	Until     *time.Time
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	if e.Until == nil {
		return "account is permanently locked, contact an administrator"
	}
	minutes := int(e.Remaining.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("account is locked, try again in %d minutes", minutes)
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// PasswordPolicyError itemizes the violated strength rules.
type PasswordPolicyError struct {
	Violations []string
	Score      int
}

func (e *PasswordPolicyError) Error() string {
	return "password validation failed: " + strings.Join(e.Violations, ", ")
}

func (e *PasswordPolicyError) Is(target error) bool { return target == ErrWeakPassword }
