package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgrid/api/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const userColumns = `id, email, password_hash, first_name, last_name, avatar_url, role,
	is_active, is_verified, is_locked, failed_login_attempts, locked_until,
	last_login_at, password_changed_at, email_verified_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.AvatarURL,
		&user.Role,
		&user.IsActive,
		&user.IsVerified,
		&user.IsLocked,
		&user.FailedLoginAttempts,
		&user.LockedUntil,
		&user.LastLoginAt,
		&user.PasswordChangedAt,
		&user.EmailVerifiedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, avatar_url, role,
			is_active, is_verified, password_changed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), NOW()
		)
	`

	_, err := engine(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Role,
		user.IsActive,
		user.IsVerified,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(engine(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(engine(ctx, r.pool).QueryRow(ctx, query, email))
}

// Update writes the admin-editable fields.
func (r *UserRepository) Update(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, avatar_url = $4, role = $5,
		    is_active = $6, is_verified = $7, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.AvatarURL,
		user.Role,
		user.IsActive,
		user.IsVerified,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordLoginFailure increments the failure counter and, when the counter
// reaches maxAttempts, flips the account into a temporary lock. The whole
// transition is one statement so concurrent failures serialize on the row and
// the counter can never move backwards.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (attempts int, locked bool, err error) {
	const query = `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    is_locked = CASE WHEN failed_login_attempts + 1 >= $2 THEN TRUE ELSE is_locked END,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, is_locked
	`
	row := engine(ctx, r.pool).QueryRow(ctx, query, id, maxAttempts, lockUntil)
	if err := row.Scan(&attempts, &locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrUserNotFound
		}
		return 0, false, err
	}
	return attempts, locked, nil
}

// RecordLoginSuccess resets the failure counter, clears an elapsed temporary
// lock, and stamps the login time.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET failed_login_attempts = 0,
		    is_locked = FALSE,
		    locked_until = NULL,
		    last_login_at = $2,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $2, password_changed_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id, hash, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Lock imposes a permanent admin lock: locked with no expiry.
func (r *UserRepository) Lock(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET is_locked = TRUE, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Unlock clears any lock and resets the failure counter.
func (r *UserRepository) Unlock(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET is_locked = FALSE, locked_until = NULL, failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE, email_verified_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := engine(ctx, r.pool).Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

var sortColumns = map[string]string{
	"email":      "email",
	"first_name": "first_name",
	"last_name":  "last_name",
	"role":       "role",
	"last_login": "last_login_at",
	"created_at": "created_at",
}

// Search applies the filter with pagination and returns the page plus the
// total match count.
func (r *UserRepository) Search(ctx context.Context, filter models.UserFilter) ([]models.User, int64, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(email ILIKE %s OR first_name ILIKE %s OR last_name ILIKE %s OR CONCAT(first_name, ' ', last_name) ILIKE %s)",
			p, p, p, p))
	}
	if filter.Role != nil {
		conds = append(conds, "role = "+arg(*filter.Role))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.IsVerified != nil {
		conds = append(conds, "is_verified = "+arg(*filter.IsVerified))
	}
	if filter.IsLocked != nil {
		conds = append(conds, "is_locked = "+arg(*filter.IsLocked))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM users` + where
	if err := engine(ctx, r.pool).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 20
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT %s OFFSET %s",
			orderBy, direction, arg(perPage), arg((page-1)*perPage))

	rows, err := engine(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// Stats aggregates directory counters; "recent" means on or after the given
// cutoff.
func (r *UserRepository) Stats(ctx context.Context, recentSince time.Time) (models.UserStats, error) {
	const totalsQuery = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE is_verified),
		       COUNT(*) FILTER (WHERE is_locked),
		       COUNT(*) FILTER (WHERE created_at >= $1),
		       COUNT(*) FILTER (WHERE last_login_at >= $1)
		FROM users
	`

	var stats models.UserStats
	row := engine(ctx, r.pool).QueryRow(ctx, totalsQuery, recentSince)
	if err := row.Scan(
		&stats.TotalUsers,
		&stats.ActiveUsers,
		&stats.VerifiedUsers,
		&stats.LockedUsers,
		&stats.RecentRegistrations,
		&stats.RecentLogins,
	); err != nil {
		return models.UserStats{}, err
	}

	const byRoleQuery = `SELECT role, COUNT(*) FROM users GROUP BY role`
	rows, err := engine(ctx, r.pool).Query(ctx, byRoleQuery)
	if err != nil {
		return models.UserStats{}, err
	}
	defer rows.Close()

	stats.UsersByRole = make(map[models.Role]int64)
	for rows.Next() {
		var (
			role  models.Role
			count int64
		)
		if err := rows.Scan(&role, &count); err != nil {
			return models.UserStats{}, err
		}
		stats.UsersByRole[role] = count
	}
	return stats, rows.Err()
}
