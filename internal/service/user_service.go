package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"authgrid/api/internal/authz"
	"authgrid/api/internal/clock"
	"authgrid/api/internal/ids"
	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
)

// statsWindow is the lookback used for the "recent registrations" figure.
const statsWindow = 30 * 24 * time.Hour

// UserService owns the user directory: account lifecycle, profile edits,
// role assignment, and the admin search and stats views. Every mutation is
// permission-checked against the acting user and audited.
type UserService struct {
	users    UserStore
	sessions SessionStore
	audit    *AuditService
	tx       TxManager
	hasher   *security.Hasher
	policy   security.PasswordPolicy
	clock    clock.Clock
	log      zerolog.Logger
}

func NewUserService(
	users UserStore,
	sessions SessionStore,
	audit *AuditService,
	tx TxManager,
	hasher *security.Hasher,
	policy security.PasswordPolicy,
	clk clock.Clock,
	log zerolog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		audit:    audit,
		tx:       tx,
		hasher:   hasher,
		policy:   policy,
		clock:    clk,
		log:      log,
	}
}

type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      models.Role
}

// Create registers a user. With a nil actor this is self-registration and
// the role is forced to the base user role; otherwise the actor must be
// allowed to assign the requested role.
func (s *UserService) Create(ctx context.Context, actor *models.User, input CreateUserInput, meta RequestMeta) (models.User, error) {
	role := input.Role
	if actor == nil {
		role = models.RoleUser
	} else {
		if role == "" {
			role = models.RoleUser
		}
		if !role.Valid() {
			return models.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
		}
		if !authz.CanAssignRole(*actor, role) {
			return models.User{}, ErrPermissionDenied
		}
	}

	if res := s.policy.Validate(input.Password); !res.Valid {
		return models.User{}, &PasswordPolicyError{Violations: res.Violations, Score: res.Score}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.clock.Now()
	user := models.User{
		ID:                ids.New(),
		Email:             normalizeEmail(input.Email),
		PasswordHash:      hash,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Role:              role,
		IsActive:          true,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return models.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return models.User{}, err
	}

	if err := s.audit.Record(ctx, "user_created", "user", user.ID, actor, nil, snapshot(user), meta); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Get fetches a user the actor is allowed to see.
func (s *UserService) Get(ctx context.Context, actor models.User, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return models.User{}, err
	}
	if !authz.CanView(actor, user) {
		return models.User{}, ErrPermissionDenied
	}
	return user, nil
}

type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Role      *models.Role
	IsActive  *bool
}

// Update applies an admin edit to another account. Role changes additionally
// require the actor to be allowed to assign the new role.
func (s *UserService) Update(ctx context.Context, actor models.User, id string, input UpdateUserInput, meta RequestMeta) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return models.User{}, err
	}
	if !authz.CanManage(actor, user) {
		return models.User{}, ErrPermissionDenied
	}

	old := user
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Role != nil && *input.Role != user.Role {
		if !input.Role.Valid() {
			return models.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, *input.Role)
		}
		if !authz.CanAssignRole(actor, *input.Role) {
			return models.User{}, ErrPermissionDenied
		}
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, err
	}

	if err := s.audit.Record(ctx, "user_updated", "user", user.ID, &actor, snapshot(old), snapshot(user), meta); err != nil {
		return models.User{}, err
	}
	return user, nil
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	AvatarURL *string
}

// UpdateProfile applies a self-service edit to the actor's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, actor models.User, input ProfileInput, meta RequestMeta) (models.User, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, actor.ID)
		}
		return models.User{}, err
	}

	old := user
	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.AvatarURL != nil {
		user.AvatarURL = input.AvatarURL
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, err
	}

	if err := s.audit.Record(ctx, "profile_updated", "user", user.ID, &user, snapshot(old), snapshot(user), meta); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// ChangePassword rotates the actor's own password after verifying the
// current one. All sessions are revoked with the password write, so every
// device must sign in again.
func (s *UserService) ChangePassword(ctx context.Context, actor models.User, currentPassword, newPassword string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if res := s.policy.Validate(newPassword); !res.Valid {
		return &PasswordPolicyError{Violations: res.Violations, Score: res.Score}
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetPassword(ctx, user.ID, hash, now); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	return s.audit.Record(ctx, "password_changed", "user", user.ID, &user, nil, nil, meta)
}

// Delete deactivates an account and revokes its sessions. The row is kept so
// the audit trail stays resolvable.
func (s *UserService) Delete(ctx context.Context, actor models.User, id string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return err
	}
	if !authz.CanManage(actor, user) || actor.ID == user.ID {
		return ErrPermissionDenied
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.SetActive(ctx, user.ID, false); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	return s.audit.Record(ctx, "user_deleted", "user", user.ID, &actor, snapshot(user), nil, meta)
}

// Lock places a permanent administrative lock on an account. Only an
// explicit unlock clears it; the hold never expires on its own.
func (s *UserService) Lock(ctx context.Context, actor models.User, id string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return err
	}
	if !authz.CanManage(actor, user) || actor.ID == user.ID {
		return ErrPermissionDenied
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.Lock(ctx, user.ID); err != nil {
			return err
		}
		return s.sessions.RevokeAll(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	return s.audit.Record(ctx, "user_locked", "user", user.ID, &actor, nil, nil, meta)
}

// Unlock clears any lock, timed or permanent, and resets the failure
// counter.
func (s *UserService) Unlock(ctx context.Context, actor models.User, id string, meta RequestMeta) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return err
	}
	if !authz.CanManage(actor, user) {
		return ErrPermissionDenied
	}

	if err := s.users.Unlock(ctx, user.ID); err != nil {
		return err
	}
	return s.audit.Record(ctx, "user_unlocked", "user", user.ID, &actor, nil, nil, meta)
}

// AssignRole changes a user's role.
func (s *UserService) AssignRole(ctx context.Context, actor models.User, id string, role models.Role, meta RequestMeta) (models.User, error) {
	if !role.Valid() {
		return models.User{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
		}
		return models.User{}, err
	}
	if !authz.CanManage(actor, user) || !authz.CanAssignRole(actor, role) {
		return models.User{}, ErrPermissionDenied
	}
	if user.Role == role {
		return user, nil
	}

	old := user
	user.Role = role
	user.UpdatedAt = s.clock.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return models.User{}, err
	}

	if err := s.audit.Record(ctx, "role_assigned", "user", user.ID, &actor,
		map[string]any{"role": old.Role}, map[string]any{"role": role}, meta); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// Search lists users matching the filter. Requires user-management rights.
func (s *UserService) Search(ctx context.Context, actor models.User, filter models.UserFilter) ([]models.User, int64, error) {
	if !authz.HasPermission(actor.Role, authz.PermManageUsers) {
		return nil, 0, ErrPermissionDenied
	}
	return s.users.Search(ctx, filter)
}

// Stats returns the directory-wide aggregate counts.
func (s *UserService) Stats(ctx context.Context, actor models.User) (models.UserStats, error) {
	if !authz.HasPermission(actor.Role, authz.PermViewAnalytics) {
		return models.UserStats{}, ErrPermissionDenied
	}
	return s.users.Stats(ctx, s.clock.Now().Add(-statsWindow))
}

// BootstrapSuperAdmin seeds the first superadmin at startup. It is a no-op
// when the email is unset or already registered, so restarts are safe.
func (s *UserService) BootstrapSuperAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	email = normalizeEmail(email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	user := models.User{
		ID:                ids.New(),
		Email:             email,
		PasswordHash:      hash,
		FirstName:         "Super",
		LastName:          "Admin",
		Role:              models.RoleSuperAdmin,
		IsActive:          true,
		IsVerified:        true,
		PasswordChangedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil
		}
		return err
	}

	s.log.Info().Str("email", email).Msg("superadmin account bootstrapped")
	return s.audit.Record(ctx, "user_created", "user", user.ID, nil, nil, snapshot(user), RequestMeta{})
}

// snapshot strips the fields that must never land in an audit row.
func snapshot(user models.User) map[string]any {
	return map[string]any{
		"email":       user.Email,
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"role":        user.Role,
		"is_active":   user.IsActive,
		"is_verified": user.IsVerified,
	}
}
