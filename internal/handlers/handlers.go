package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"authgrid/api/internal/authz"
	"authgrid/api/internal/clock"
	"authgrid/api/internal/config"
	"authgrid/api/internal/mail"
	"authgrid/api/internal/middleware"
	"authgrid/api/internal/models"
	"authgrid/api/internal/rate"
	"authgrid/api/internal/repository"
	"authgrid/api/internal/security"
	"authgrid/api/internal/service"
	"authgrid/api/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	authService  *service.AuthService
	userService  *service.UserService
	auditService *service.AuditService
	tokens       *security.TokenManager
	clock        clock.Clock
	db           *pgxpool.Pool
	cache        *redis.Client
	store        *storage.ObjectStore
	users        *repository.UserRepository
	sessions     *repository.SessionRepository
	loginLimiter *rate.Limiter
	resetLimiter *rate.Limiter
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	clk := clock.System()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	resetRepo := repository.NewResetRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTxManager(db)

	tokens := security.NewTokenManager(cfg.Security.JWTSecret, clk)
	hasher := security.NewHasher(security.Argon2Params{
		Time:    cfg.Security.Argon2Time,
		Memory:  cfg.Security.Argon2Memory,
		Threads: cfg.Security.Argon2Threads,
		KeyLen:  32,
		SaltLen: 16,
	})
	policy := security.PasswordPolicy{
		MinLength:        cfg.Password.MinLength,
		RequireUppercase: cfg.Password.RequireUppercase,
		RequireLowercase: cfg.Password.RequireLowercase,
		RequireDigit:     cfg.Password.RequireDigit,
		RequireSpecial:   cfg.Password.RequireSpecial,
	}
	mailer := mail.New(cfg.Mail, log)

	audit := service.NewAuditService(auditRepo, cfg.Audit.Mandatory, log)
	auth := service.NewAuthService(userRepo, sessionRepo, resetRepo, audit, tx, tokens, hasher, policy, mailer, clk, service.AuthConfig{
		AccessTTL:        cfg.Security.AccessTTL,
		RefreshTTL:       cfg.Security.RefreshTTL,
		ResetTTL:         cfg.Security.ResetTTL,
		VerifyTTL:        cfg.Security.VerifyTTL,
		MaxLoginAttempts: cfg.Lockout.MaxAttempts,
		LockoutDuration:  cfg.Lockout.Duration,
	}, log)
	users := service.NewUserService(userRepo, sessionRepo, audit, tx, hasher, policy, clk, log)

	loginLimiter := rate.NewLimiter(cache, "login", rate.Config{
		Enabled:  cfg.RateLimit.Enabled,
		Attempts: cfg.RateLimit.LoginAttempts,
		Window:   cfg.RateLimit.LoginWindow,
	})
	resetLimiter := rate.NewLimiter(cache, "pwreset", rate.Config{
		Enabled:  cfg.RateLimit.Enabled,
		Attempts: cfg.RateLimit.ResetAttempts,
		Window:   cfg.RateLimit.ResetWindow,
	})

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  auth,
		userService:  users,
		auditService: audit,
		tokens:       tokens,
		clock:        clk,
		db:           db,
		cache:        cache,
		store:        store,
		users:        userRepo,
		sessions:     sessionRepo,
		loginLimiter: loginLimiter,
		resetLimiter: resetLimiter,
	}
}

// Auth exposes the auth service for the scheduler and startup bootstrap.
func (h HandlerSet) Auth() *service.AuthService { return h.authService }

// Users exposes the user service for the startup bootstrap.
func (h HandlerSet) Users() *service.UserService { return h.userService }

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/password-reset/request", h.RequestPasswordReset)
		auth.POST("/password-reset/confirm", h.ConfirmPasswordReset)
		auth.POST("/verify-email/confirm", h.ConfirmEmailVerification)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.tokens, h.users, h.sessions, h.clock))
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.PATCH("/me", h.UpdateProfile)
		protected.POST("/me/avatar", h.UploadAvatar)
		protected.POST("/password", h.ChangePassword)
		protected.POST("/verify-email/request", h.RequestEmailVerification)
		protected.GET("/sessions", h.ListSessions)
		protected.DELETE("/sessions/:sessionId", h.RevokeSession)
		protected.DELETE("/sessions", h.RevokeAllSessions)
	}

	admin := v1.Group("/admin")
	admin.Use(
		middleware.Auth(h.tokens, h.users, h.sessions, h.clock),
		middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin1, models.RoleAdmin2, models.RoleAdmin3),
	)
	{
		users := admin.Group("/users")
		users.Use(middleware.RequirePermission(authz.PermManageUsers))
		users.GET("", h.AdminListUsers)
		users.POST("", h.AdminCreateUser)
		users.GET("/:userId", h.AdminGetUser)
		users.PATCH("/:userId", h.AdminUpdateUser)
		users.DELETE("/:userId", h.AdminDeleteUser)
		users.POST("/:userId/lock", h.AdminLockUser)
		users.POST("/:userId/unlock", h.AdminUnlockUser)
		users.PUT("/:userId/role", h.AdminAssignRole)

		admin.GET("/stats", middleware.RequirePermission(authz.PermViewAnalytics), h.AdminStats)
		admin.GET("/audit-logs", middleware.RequirePermission(authz.PermViewAuditLogs), h.AdminListAuditLogs)
	}
}

// sendError maps service sentinels to HTTP statuses. Internal errors are
// logged and hidden outside development.
func (h HandlerSet) sendError(c *gin.Context, err error) {
	var lockedErr *service.AccountLockedError
	switch {
	case errors.As(err, &lockedErr):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_locked", "detail": lockedErr.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "detail": err.Error()})
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "detail": err.Error()})
	case errors.Is(err, service.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_inactive", "detail": err.Error()})
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "detail": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "detail": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "detail": err.Error()})
	case errors.Is(err, service.ErrWeakPassword):
		var policyErr *service.PasswordPolicyError
		resp := gin.H{"error": "weak_password", "detail": err.Error()}
		if errors.As(err, &policyErr) {
			resp["violations"] = policyErr.Violations
			resp["score"] = policyErr.Score
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, service.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role", "detail": err.Error()})
	case errors.Is(err, rate.ErrLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		resp := gin.H{"error": "internal_server_error"}
		if h.cfg.Environment != "production" {
			resp["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func (h HandlerSet) requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		DeviceName: c.GetHeader("X-Device-Name"),
	}
}

type userResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	FullName    string  `json:"fullName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Role        string  `json:"role"`
	IsActive    bool    `json:"isActive"`
	IsVerified  bool    `json:"isVerified"`
	IsLocked    bool    `json:"isLocked"`
	LastLoginAt *string `json:"lastLoginAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

func toUserResponse(user models.User) userResponse {
	resp := userResponse{
		ID:         user.ID,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		FullName:   user.FullName(),
		AvatarURL:  user.AvatarURL,
		Role:       string(user.Role),
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		IsLocked:   user.IsLocked,
		CreatedAt:  user.CreatedAt.Format(timeFormat),
	}
	if user.LastLoginAt != nil {
		formatted := user.LastLoginAt.Format(timeFormat)
		resp.LastLoginAt = &formatted
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z07:00"
