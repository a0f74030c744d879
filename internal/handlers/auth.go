package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/middleware"
	"authgrid/api/internal/rate"
	"authgrid/api/internal/security"
	"authgrid/api/internal/service"
)

type signUpRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

func (h HandlerSet) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Create(c.Request.Context(), nil, service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	if err := h.authService.RequestEmailVerification(c.Request.Context(), user, h.requestMeta(c)); err != nil {
		h.log.Warn().Err(err).Str("user_id", user.ID).Msg("verification request failed after signup")
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

type loginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type loginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         userResponse `json:"user"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Limit by client IP before touching the store. Redis being down fails
	// open: authentication keeps working without the limiter.
	if err := h.loginLimiter.Allow(c.Request.Context(), c.ClientIP()); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			h.sendError(c, err)
			return
		}
		h.log.Warn().Err(err).Msg("login limiter unavailable")
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Meta:       h.requestMeta(c),
	})
	if err != nil {
		h.sendError(c, err)
		return
	}

	// A successful login hands the client a fresh attempt budget.
	if err := h.loginLimiter.Reset(c.Request.Context(), c.ClientIP()); err != nil {
		h.log.Warn().Err(err).Msg("login limiter reset failed")
	}

	c.JSON(http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		User:         toUserResponse(result.User),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accessToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"tokenType":   "Bearer",
		"expiresIn":   int64(h.cfg.Security.AccessTTL.Seconds()),
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	AllDevices   bool   `json:"allDevices"`
}

func (h HandlerSet) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req logoutRequest
	// Body is optional: a bare POST logs out all devices.
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), user, req.RefreshToken, req.AllDevices, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type resetRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h HandlerSet) RequestPasswordReset(c *gin.Context) {
	var req resetRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := c.ClientIP() + ":" + strings.ToLower(req.Email)
	if err := h.resetLimiter.Allow(c.Request.Context(), key); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			h.sendError(c, err)
			return
		}
		h.log.Warn().Err(err).Msg("reset limiter unavailable")
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	// Same answer whether or not the account exists.
	c.JSON(http.StatusOK, gin.H{"message": "if the email is registered, a reset link has been sent"})
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func (h HandlerSet) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password has been reset"})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user, req.CurrentPassword, req.NewPassword, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed, sign in again on all devices"})
}

func (h HandlerSet) RequestEmailVerification(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.RequestEmailVerification(c.Request.Context(), user, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "verification email sent"})
}

type verifyConfirmRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h HandlerSet) ConfirmEmailVerification(c *gin.Context) {
	var req verifyConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authService.ConfirmEmailVerification(c.Request.Context(), req.Token, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

type sessionResponse struct {
	ID         string `json:"id"`
	DeviceName string `json:"deviceName"`
	IPAddress  string `json:"ipAddress"`
	UserAgent  string `json:"userAgent"`
	Current    bool   `json:"current"`
	CreatedAt  string `json:"createdAt"`
	LastUsedAt string `json:"lastUsedAt"`
	ExpiresAt  string `json:"expiresAt"`
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessions, err := h.authService.ListSessions(c.Request.Context(), user)
	if err != nil {
		h.sendError(c, err)
		return
	}

	var currentID string
	if val, exists := c.Get(middleware.CtxClaims); exists {
		if claims, ok := val.(security.Claims); ok {
			currentID = claims.SessionID
		}
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionResponse{
			ID:         session.ID,
			DeviceName: session.DeviceName,
			IPAddress:  session.IPAddress,
			UserAgent:  session.UserAgent,
			Current:    session.ID == currentID,
			CreatedAt:  session.CreatedAt.Format(timeFormat),
			LastUsedAt: session.LastUsedAt.Format(timeFormat),
			ExpiresAt:  session.ExpiresAt.Format(timeFormat),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h HandlerSet) RevokeSession(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), user, c.Param("sessionId"), h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) RevokeAllSessions(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), user, "", true, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
