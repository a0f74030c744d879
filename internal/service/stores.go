package service

import (
	"context"
	"time"

	"authgrid/api/internal/models"
)

// The services depend on these interfaces rather than on the pgx
// repositories directly, so tests run against in-memory fakes and a fake
// clock. The repository package provides the production implementations.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (attempts int, locked bool, err error)
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	SetPassword(ctx context.Context, id string, hash []byte, at time.Time) error
	Lock(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	Search(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error)
	Stats(ctx context.Context, recentSince time.Time) (models.UserStats, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByTokenHash(ctx context.Context, hash []byte) (models.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Revoke(ctx context.Context, userID, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type ResetStore interface {
	Create(ctx context.Context, reset models.PasswordResetRequest) error
	FindByToken(ctx context.Context, token string) (models.PasswordResetRequest, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditStore interface {
	Insert(ctx context.Context, entry models.AuditLogEntry) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, int64, error)
}

// TxManager runs a function atomically: either every store mutation inside
// commits, or none are visible.
type TxManager interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestMeta is the request-scoped context recorded alongside security
// actions.
type RequestMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceName string
}
