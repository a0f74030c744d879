package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgrid/api/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, user_id, refresh_token_hash, device_name, ip_address, user_agent,
	is_active, created_at, last_used_at, expires_at`

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshTokenHash,
		&session.DeviceName,
		&session.IPAddress,
		&session.UserAgent,
		&session.IsActive,
		&session.CreatedAt,
		&session.LastUsedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO user_sessions (
			id, user_id, refresh_token_hash, device_name, ip_address, user_agent,
			is_active, created_at, last_used_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW(), $7
		)
	`
	_, err := engine(ctx, r.pool).Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		session.DeviceName,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE id = $1`
	return scanSession(engine(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash []byte) (models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE refresh_token_hash = $1`
	return scanSession(engine(ctx, r.pool).QueryRow(ctx, query, hash))
}

// Touch stamps last_used_at. Expiry is deliberately left alone: refreshing
// never extends a session's lifetime.
func (r *SessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE user_sessions SET last_used_at = $2 WHERE id = $1`
	_, err := engine(ctx, r.pool).Exec(ctx, query, id, at)
	return err
}

// Revoke deactivates one active session owned by the user.
func (r *SessionRepository) Revoke(ctx context.Context, userID, sessionID string) error {
	const query = `
		UPDATE user_sessions SET is_active = FALSE
		WHERE id = $1 AND user_id = $2 AND is_active
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, sessionID, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAll deactivates every session for the user. Idempotent.
func (r *SessionRepository) RevokeAll(ctx context.Context, userID string) error {
	const query = `UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1`
	_, err := engine(ctx, r.pool).Exec(ctx, query, userID)
	return err
}

// SweepExpired deactivates every session past its expiry and returns how many
// it touched. Safe to run concurrently with live traffic.
func (r *SessionRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE user_sessions SET is_active = FALSE
		WHERE is_active AND expires_at < $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListActiveByUser returns the user's active sessions, most recently used
// first.
func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1 AND is_active
		ORDER BY last_used_at DESC
	`
	rows, err := engine(ctx, r.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
