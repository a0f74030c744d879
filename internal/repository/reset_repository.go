package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgrid/api/internal/models"
)

var ErrResetNotFound = errors.New("password reset request not found")

type ResetRepository struct {
	pool *pgxpool.Pool
}

func NewResetRepository(pool *pgxpool.Pool) *ResetRepository {
	return &ResetRepository{pool: pool}
}

func (r *ResetRepository) Create(ctx context.Context, reset models.PasswordResetRequest) error {
	const query = `
		INSERT INTO password_resets (
			id, user_id, token, is_used, ip_address, user_agent, created_at, expires_at
		) VALUES (
			$1, $2, $3, FALSE, $4, $5, NOW(), $6
		)
	`
	_, err := engine(ctx, r.pool).Exec(ctx, query,
		reset.ID,
		reset.UserID,
		reset.Token,
		reset.IPAddress,
		reset.UserAgent,
		reset.ExpiresAt,
	)
	return err
}

func (r *ResetRepository) FindByToken(ctx context.Context, token string) (models.PasswordResetRequest, error) {
	const query = `
		SELECT id, user_id, token, is_used, ip_address, user_agent, created_at, expires_at, used_at
		FROM password_resets
		WHERE token = $1
	`
	row := engine(ctx, r.pool).QueryRow(ctx, query, token)

	var reset models.PasswordResetRequest
	err := row.Scan(
		&reset.ID,
		&reset.UserID,
		&reset.Token,
		&reset.IsUsed,
		&reset.IPAddress,
		&reset.UserAgent,
		&reset.CreatedAt,
		&reset.ExpiresAt,
		&reset.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PasswordResetRequest{}, ErrResetNotFound
		}
		return models.PasswordResetRequest{}, err
	}
	return reset, nil
}

// MarkUsed consumes the request. The is_used guard makes the first redemption
// win under concurrent attempts.
func (r *ResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE password_resets SET is_used = TRUE, used_at = $2
		WHERE id = $1 AND NOT is_used
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrResetNotFound
	}
	return nil
}

// PurgeExpired deletes requests past their expiry that were never redeemed.
func (r *ResetRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM password_resets WHERE expires_at < $1 AND NOT is_used`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
