package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"authgrid/api/internal/models"
	"authgrid/api/internal/repository"
)

// In-memory store fakes backing the service tests. They reproduce the
// repository sentinels and the row-level semantics the services rely on
// (failure counter atomicity, single reset redemption, idempotent revokes).

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.AvatarURL = user.AvatarURL
	stored.Role = user.Role
	stored.IsActive = user.IsActive
	stored.UpdatedAt = user.UpdatedAt
	s.users[user.ID] = stored
	return nil
}

func (s *fakeUserStore) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockUntil time.Time) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return 0, false, repository.ErrUserNotFound
	}
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= maxAttempts {
		user.IsLocked = true
		until := lockUntil
		user.LockedUntil = &until
	}
	s.users[id] = user
	return user.FailedLoginAttempts, user.IsLocked, nil
}

func (s *fakeUserStore) RecordLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.FailedLoginAttempts = 0
	user.IsLocked = false
	user.LockedUntil = nil
	last := at
	user.LastLoginAt = &last
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) SetPassword(_ context.Context, id string, hash []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hash
	user.PasswordChangedAt = at
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) Lock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsLocked = true
	user.LockedUntil = nil
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) Unlock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsLocked = false
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsActive = active
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) MarkVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.IsVerified = true
	verified := at
	user.EmailVerifiedAt = &verified
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) Search(_ context.Context, filter models.UserFilter) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, user := range s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		out = append(out, user)
	}
	return out, int64(len(out)), nil
}

func (s *fakeUserStore) Stats(_ context.Context, recentSince time.Time) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := models.UserStats{UsersByRole: make(map[models.Role]int64)}
	for _, user := range s.users {
		stats.TotalUsers++
		if user.IsActive {
			stats.ActiveUsers++
		}
		if user.IsVerified {
			stats.VerifiedUsers++
		}
		if user.IsLocked {
			stats.LockedUsers++
		}
		if user.CreatedAt.After(recentSince) {
			stats.RecentRegistrations++
		}
		if user.LastLoginAt != nil && user.LastLoginAt.After(recentSince) {
			stats.RecentLogins++
		}
		stats.UsersByRole[user.Role]++
	}
	return stats, nil
}

type fakeSessionStore struct {
	mu        sync.Mutex
	sessions  map[string]models.Session
	createErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]models.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) GetByID(_ context.Context, id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) FindByTokenHash(_ context.Context, hash []byte) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if bytes.Equal(session.RefreshTokenHash, hash) {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (s *fakeSessionStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return repository.ErrSessionNotFound
	}
	session.LastUsedAt = at
	s.sessions[id] = session
	return nil
}

func (s *fakeSessionStore) Revoke(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok || session.UserID != userID || !session.IsActive {
		return repository.ErrSessionNotFound
	}
	session.IsActive = false
	s.sessions[sessionID] = session
	return nil
}

func (s *fakeSessionStore) RevokeAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, session := range s.sessions {
		if session.UserID == userID {
			session.IsActive = false
			s.sessions[id] = session
		}
	}
	return nil
}

func (s *fakeSessionStore) SweepExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, session := range s.sessions {
		if session.IsActive && session.Expired(now) {
			session.IsActive = false
			s.sessions[id] = session
			count++
		}
	}
	return count, nil
}

func (s *fakeSessionStore) ListActiveByUser(_ context.Context, userID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, session := range s.sessions {
		if session.UserID == userID && session.IsActive {
			out = append(out, session)
		}
	}
	return out, nil
}

type fakeResetStore struct {
	mu     sync.Mutex
	resets map[string]models.PasswordResetRequest
}

func newFakeResetStore() *fakeResetStore {
	return &fakeResetStore{resets: make(map[string]models.PasswordResetRequest)}
}

func (s *fakeResetStore) Create(_ context.Context, reset models.PasswordResetRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[reset.ID] = reset
	return nil
}

func (s *fakeResetStore) FindByToken(_ context.Context, token string) (models.PasswordResetRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reset := range s.resets {
		if reset.Token == token {
			return reset, nil
		}
	}
	return models.PasswordResetRequest{}, repository.ErrResetNotFound
}

func (s *fakeResetStore) MarkUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reset, ok := s.resets[id]
	if !ok || reset.IsUsed {
		return repository.ErrResetNotFound
	}
	reset.IsUsed = true
	used := at
	reset.UsedAt = &used
	s.resets[id] = reset
	return nil
}

func (s *fakeResetStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, reset := range s.resets {
		if !reset.IsUsed && now.After(reset.ExpiresAt) {
			delete(s.resets, id)
			count++
		}
	}
	return count, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
	failing bool
}

func (s *fakeAuditStore) Insert(_ context.Context, entry models.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return context.DeadlineExceeded
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeAuditStore) List(_ context.Context, filter models.AuditFilter) ([]models.AuditLogEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AuditLogEntry
	for _, entry := range s.entries {
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		out = append(out, entry)
	}
	return out, int64(len(out)), nil
}

func (s *fakeAuditStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry.Action
	}
	return out
}

// fakeTx runs the function directly; the fakes mutate in place so there is
// nothing to roll back.
type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
