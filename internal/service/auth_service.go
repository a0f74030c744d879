package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"authgrid/api/internal/clock"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// AuthConfig carries the token lifetimes and lockout policy.
type AuthConfig struct {
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetTTL         time.Duration
	VerifyTTL        time.Duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

// AuthService owns credential verification, the account lockout state
// machine, the session registry, and the password-reset and
// email-verification flows.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	resets   ResetStore
	audit    *AuditService
	tx       TxManager
	tokens   *security.TokenManager
	hasher   *security.Hasher
	policy   security.PasswordPolicy
	mailer   mail.Mailer
	clock    clock.Clock
	cfg      AuthConfig
	log      zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	resets ResetStore,
	audit *AuditService,
	tx TxManager,
	tokens *security.TokenManager,
	hasher *security.Hasher,
	policy security.PasswordPolicy,
	mailer mail.Mailer,
	clk clock.Clock,
	cfg AuthConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		resets:   resets,
		audit:    audit,
		tx:       tx,
		tokens:   tokens,
		hasher:   hasher,
		policy:   policy,
		mailer:   mailer,
		clock:    clk,
		cfg:      cfg,
		log:      log,
	}
}

type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Meta       RequestMeta
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         models.User
}

// Login verifies credentials, drives the lockout state machine, and issues a
// session. Failure responses are uniform regardless of whether the email
// exists.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	email := normalizeEmail(input.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	now := s.clock.Now()

	// Lock state is checked before the password so a locked account leaks
	// nothing about credential validity.
	if user.IsLocked {
		if user.LockedUntil == nil {
			return LoginResult{}, &AccountLockedError{}
		}
		if now.Before(*user.LockedUntil) {
			return LoginResult{}, &AccountLockedError{
				Until:     user.LockedUntil,
				Remaining: user.LockedUntil.Sub(now),
			}
		}
		// Temporary lock has elapsed: authentication may proceed.
	}

	if !user.IsActive {
		return LoginResult{}, ErrAccountInactive
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, s.recordFailedAttempt(ctx, user, input.Meta)
	}

	// Counter reset, session insert, and the audit row commit together: a
	// failed login responds with the account untouched.
	var accessToken, refreshToken string
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		accessToken, refreshToken, err = s.createSession(ctx, user, input.RememberMe, input.Meta)
		if err != nil {
			return err
		}
		if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
			return err
		}
		return s.audit.Record(ctx, "login_successful", "user", user.ID, &user, nil, nil, input.Meta)
	})
	if err != nil {
		return LoginResult{}, err
	}
	user.FailedLoginAttempts = 0
	user.IsLocked = false
	user.LockedUntil = nil
	user.LastLoginAt = &now

	return LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.AccessTTL.Seconds()),
		User:         user,
	}, nil
}

// recordFailedAttempt advances the failure counter and, at the threshold,
// flips the account into a timed lock. It always returns
// ErrInvalidCredentials: the lockout only becomes visible on the next
// attempt.
func (s *AuthService) recordFailedAttempt(ctx context.Context, user models.User, meta RequestMeta) error {
	now := s.clock.Now()

	attempts, locked, err := s.users.RecordLoginFailure(ctx, user.ID, s.cfg.MaxLoginAttempts, now.Add(s.cfg.LockoutDuration))
	if err != nil {
		return err
	}

	if locked && attempts == s.cfg.MaxLoginAttempts {
		if err := s.audit.Record(ctx, "account_locked_failed_attempts", "user", user.ID, &user, nil,
			map[string]any{"failed_attempts": attempts}, meta); err != nil {
			return err
		}
	}

	if err := s.audit.Record(ctx, "login_failed", "user", user.ID, &user, nil,
		map[string]any{"reason": "invalid_password"}, meta); err != nil {
		return err
	}

	return ErrInvalidCredentials
}

// createSession persists one session row and mints the token pair. The
// access token embeds email, role, and session id so later requests can be
// correlated to the session without a lookup.
func (s *AuthService) createSession(ctx context.Context, user models.User, rememberMe bool, meta RequestMeta) (accessToken, refreshToken string, err error) {
	refreshTTL := s.cfg.RefreshTTL
	if rememberMe {
		refreshTTL *= 2
	}

	refreshToken, err = s.tokens.Create(security.TokenRefresh, user.ID, refreshTTL, nil)
	if err != nil {
		return "", "", err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		RefreshTokenHash: security.HashToken(refreshToken),
		DeviceName:       meta.DeviceName,
		IPAddress:        meta.IPAddress,
		UserAgent:        meta.UserAgent,
		IsActive:         true,
		ExpiresAt:        s.clock.Now().Add(refreshTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", "", err
	}

	accessToken, err = s.tokens.Create(security.TokenAccess, user.ID, s.cfg.AccessTTL, &security.AccessClaims{
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: session.ID,
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// refresh token itself is never rotated; it stays valid until its own expiry
// or revocation.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (string, error) {
	claims, err := s.tokens.Verify(refreshToken, security.TokenRefresh)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	session, err := s.sessions.FindByTokenHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	now := s.clock.Now()
	if session.UserID != claims.Subject || !session.Usable(now) {
		return "", ErrSessionNotFound
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	if !user.IsActive {
		return "", ErrAccountInactive
	}

	if err := s.sessions.Touch(ctx, session.ID, now); err != nil {
		return "", err
	}

	accessToken, err := s.tokens.Create(security.TokenAccess, user.ID, s.cfg.AccessTTL, &security.AccessClaims{
		Email:     user.Email,
		Role:      string(user.Role),
		SessionID: session.ID,
	})
	if err != nil {
		return "", err
	}

	if err := s.audit.Record(ctx, "token_refreshed", "user", user.ID, &user, nil, nil, meta); err != nil {
		return "", err
	}
	return accessToken, nil
}

// VerifyAccessToken validates a presented access token and returns its
// claims. Every failure collapses into ErrInvalidToken for the caller.
func (s *AuthService) VerifyAccessToken(token string) (*security.Claims, error) {
	claims, err := s.tokens.Verify(token, security.TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// Logout revokes one session (matched by its refresh token) or all of them.
func (s *AuthService) Logout(ctx context.Context, user models.User, refreshToken string, allDevices bool, meta RequestMeta) error {
	action := "logout"

	if allDevices || refreshToken == "" {
		if allDevices {
			action = "logout_all_devices"
		}
		if err := s.sessions.RevokeAll(ctx, user.ID); err != nil {
			return err
		}
	} else {
		session, err := s.sessions.FindByTokenHash(ctx, security.HashToken(refreshToken))
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			// Already gone; logout is idempotent.
		case err != nil:
			return err
		case session.UserID == user.ID:
			if err := s.sessions.Revoke(ctx, user.ID, session.ID); err != nil &&
				!errors.Is(err, repository.ErrSessionNotFound) {
				return err
			}
		}
	}

	return s.audit.Record(ctx, action, "user", user.ID, &user, nil, nil, meta)
}

// RequestPasswordReset issues a reset grant and emails the link. It reports
// success even for unknown or inactive emails so the endpoint cannot be used
// to enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.Create(security.TokenPasswordReset, user.ID, s.cfg.ResetTTL, nil)
	if err != nil {
		return err
	}

	reset := models.PasswordResetRequest{
		ID:        ids.New(),
		UserID:    user.ID,
		Token:     token,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: s.clock.Now().Add(s.cfg.ResetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return err
	}

	if err := s.audit.Record(ctx, "password_reset_requested", "user", user.ID, &user, nil, nil, meta); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("password reset mail failed")
	}
	return nil
}

// ConfirmPasswordReset redeems a reset grant: first redemption wins, the new
// password must satisfy policy, and every session is revoked in the same
// transaction as the password write.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	claims, err := s.tokens.Verify(token, security.TokenPasswordReset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	reset, err := s.resets.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrResetNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	now := s.clock.Now()
	if reset.UserID != claims.Subject || !reset.Redeemable(now) {
		return ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, reset.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if res := s.policy.Validate(newPassword); !res.Valid {
		return &PasswordPolicyError{Violations: res.Violations, Score: res.Score}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.resets.MarkUsed(ctx, reset.ID, now); err != nil {
			return err
		}
		if err := s.users.SetPassword(ctx, user.ID, hash, now); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, user.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrResetNotFound) {
			// Lost the race to another redemption.
			return ErrInvalidToken
		}
		return err
	}

	return s.audit.Record(ctx, "password_reset_completed", "user", user.ID, &user, nil, nil, meta)
}

// RequestEmailVerification mails a verification link to the user.
func (s *AuthService) RequestEmailVerification(ctx context.Context, user models.User, meta RequestMeta) error {
	if user.IsVerified {
		return nil
	}

	token, err := s.tokens.Create(security.TokenEmailVerification, user.ID, s.cfg.VerifyTTL, nil)
	if err != nil {
		return err
	}

	if err := s.audit.Record(ctx, "email_verification_requested", "user", user.ID, &user, nil, nil, meta); err != nil {
		return err
	}

	if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("verification mail failed")
	}
	return nil
}

// ConfirmEmailVerification redeems a verification token.
func (s *AuthService) ConfirmEmailVerification(ctx context.Context, token string, meta RequestMeta) error {
	claims, err := s.tokens.Verify(token, security.TokenEmailVerification)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if user.IsVerified {
		return nil
	}

	if err := s.users.MarkVerified(ctx, user.ID, s.clock.Now()); err != nil {
		return err
	}
	return s.audit.Record(ctx, "email_verified", "user", user.ID, &user, nil, nil, meta)
}

// ListSessions returns the user's active sessions, most recently used first.
func (s *AuthService) ListSessions(ctx context.Context, user models.User) ([]models.Session, error) {
	return s.sessions.ListActiveByUser(ctx, user.ID)
}

// RevokeSession deactivates one session the user owns.
func (s *AuthService) RevokeSession(ctx context.Context, user models.User, sessionID string, meta RequestMeta) error {
	if err := s.sessions.Revoke(ctx, user.ID, sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return err
	}
	return s.audit.Record(ctx, "session_revoked", "session", sessionID, &user, nil, nil, meta)
}

// SweepExpiredSessions deactivates sessions past expiry. Run on a schedule;
// idempotent and safe alongside live traffic.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.sessions.SweepExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("expired sessions swept")
	}
	return count, nil
}

// PurgeExpiredResets deletes reset requests that expired unredeemed.
func (s *AuthService) PurgeExpiredResets(ctx context.Context) (int64, error) {
	count, err := s.resets.PurgeExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("expired reset requests purged")
	}
	return count, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
