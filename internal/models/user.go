package models

import "time"

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin1     Role = "admin1"
	RoleAdmin2     Role = "admin2"
	RoleAdmin3     Role = "admin3"
	RoleUser       Role = "user"
)

// Roles lists every valid role. The set is closed: anything else is rejected
// at the boundary.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin1, RoleAdmin2, RoleAdmin3, RoleUser}
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin1, RoleAdmin2, RoleAdmin3, RoleUser:
		return true
	}
	return false
}

// Admin reports whether the role is any administrative tier, superadmin
// included.
func (r Role) Admin() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin1, RoleAdmin2, RoleAdmin3:
		return true
	}
	return false
}

type User struct {
	ID                  string
	Email               string
	PasswordHash        []byte
	FirstName           string
	LastName            string
	AvatarURL           *string
	Role                Role
	IsActive            bool
	IsVerified          bool
	IsLocked            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAt         *time.Time
	PasswordChangedAt   time.Time
	EmailVerifiedAt     *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// LockedPermanently is true for an admin-imposed lock, which has no expiry.
// IsLocked is the authoritative discriminator: a nil LockedUntil on an
// unlocked user is just the default state.
func (u User) LockedPermanently() bool {
	return u.IsLocked && u.LockedUntil == nil
}

// LockedAt reports whether the account is locked at the given instant.
func (u User) LockedAt(now time.Time) bool {
	if !u.IsLocked {
		return false
	}
	if u.LockedUntil == nil {
		return true
	}
	return now.Before(*u.LockedUntil)
}

// Session is one refresh-token grant for one device. The refresh token is
// stored hashed; presenting the raw token is the only way to find the row.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	DeviceName       string
	IPAddress        string
	UserAgent        string
	IsActive         bool
	CreatedAt        time.Time
	LastUsedAt       time.Time
	ExpiresAt        time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Usable reports whether the session may still mint access tokens.
func (s Session) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}

type PasswordResetRequest struct {
	ID        string
	UserID    string
	Token     string
	IsUsed    bool
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Redeemable reports whether the request can still be consumed. A request is
// single-use: the first redemption marks it used.
func (p PasswordResetRequest) Redeemable(now time.Time) bool {
	return !p.IsUsed && now.Before(p.ExpiresAt)
}

// AuditLogEntry is append-only. ActorID is nil for system-initiated actions.
// OldValues/NewValues hold JSON snapshots of the mutated fields.
type AuditLogEntry struct {
	ID         string
	ActorID    *string
	Action     string
	Resource   string
	ResourceID string
	OldValues  []byte
	NewValues  []byte
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// UserFilter narrows and pages a directory search.
type UserFilter struct {
	Search     string
	Role       *Role
	IsActive   *bool
	IsVerified *bool
	IsLocked   *bool
	SortBy     string
	SortDesc   bool
	Page       int
	PerPage    int
}

// AuditFilter narrows and pages an audit-log query. Results are always
// newest-first.
type AuditFilter struct {
	ActorID  string
	Action   string
	Resource string
	Page     int
	PerPage  int
}

type UserStats struct {
	TotalUsers          int64
	ActiveUsers         int64
	VerifiedUsers       int64
	LockedUsers         int64
	UsersByRole         map[Role]int64
	RecentRegistrations int64
	RecentLogins        int64
}
