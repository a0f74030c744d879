package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/middleware"
	"authgrid/api/internal/models"
	"authgrid/api/internal/service"
)

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.UserFilter{
		Search:   c.Query("search"),
		SortBy:   c.Query("sortBy"),
		SortDesc: c.Query("sortDir") == "desc",
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "perPage", 20),
	}
	if role := c.Query("role"); role != "" {
		r := models.Role(role)
		filter.Role = &r
	}
	if v, ok := queryBool(c, "isActive"); ok {
		filter.IsActive = &v
	}
	if v, ok := queryBool(c, "isVerified"); ok {
		filter.IsVerified = &v
	}
	if v, ok := queryBool(c, "isLocked"); ok {
		filter.IsLocked = &v
	}

	users, total, err := h.userService.Search(c.Request.Context(), actor, filter)
	if err != nil {
		h.sendError(c, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"users":   out,
		"total":   total,
		"page":    filter.Page,
		"perPage": filter.PerPage,
	})
}

type adminCreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      string `json:"role"`
}

func (h HandlerSet) AdminCreateUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req adminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.Create(c.Request.Context(), &actor, service.CreateUserInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.Role(req.Role),
	}, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.userService.Get(c.Request.Context(), actor, c.Param("userId"))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

type adminUpdateUserRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := service.UpdateUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	}
	if req.Role != nil {
		role := models.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userService.Update(c.Request.Context(), actor, c.Param("userId"), input, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID := c.Param("userId")
	if err := h.userService.Delete(c.Request.Context(), actor, userID, h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	if err := h.store.RemoveAvatar(c.Request.Context(), userID); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("avatar cleanup failed")
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) AdminLockUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.userService.Lock(c.Request.Context(), actor, c.Param("userId"), h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account locked"})
}

func (h HandlerSet) AdminUnlockUser(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.userService.Unlock(c.Request.Context(), actor, c.Param("userId"), h.requestMeta(c)); err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account unlocked"})
}

type assignRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h HandlerSet) AdminAssignRole(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.AssignRole(c.Request.Context(), actor, c.Param("userId"), models.Role(req.Role), h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h HandlerSet) AdminStats(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.userService.Stats(c.Request.Context(), actor)
	if err != nil {
		h.sendError(c, err)
		return
	}

	byRole := make(map[string]int64, len(stats.UsersByRole))
	for role, count := range stats.UsersByRole {
		byRole[string(role)] = count
	}

	c.JSON(http.StatusOK, gin.H{
		"totalUsers":          stats.TotalUsers,
		"activeUsers":         stats.ActiveUsers,
		"verifiedUsers":       stats.VerifiedUsers,
		"lockedUsers":         stats.LockedUsers,
		"usersByRole":         byRole,
		"recentRegistrations": stats.RecentRegistrations,
		"recentLogins":        stats.RecentLogins,
	})
}

type auditLogResponse struct {
	ID         string  `json:"id"`
	ActorID    *string `json:"actorId,omitempty"`
	Action     string  `json:"action"`
	Resource   string  `json:"resource"`
	ResourceID string  `json:"resourceId"`
	OldValues  string  `json:"oldValues,omitempty"`
	NewValues  string  `json:"newValues,omitempty"`
	IPAddress  string  `json:"ipAddress"`
	UserAgent  string  `json:"userAgent"`
	CreatedAt  string  `json:"createdAt"`
}

func (h HandlerSet) AdminListAuditLogs(c *gin.Context) {
	actor, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	filter := models.AuditFilter{
		ActorID:  c.Query("actorId"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     queryInt(c, "page", 1),
		PerPage:  queryInt(c, "perPage", 50),
	}

	entries, total, err := h.auditService.List(c.Request.Context(), actor, filter)
	if err != nil {
		h.sendError(c, err)
		return
	}

	out := make([]auditLogResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditLogResponse{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			Resource:   entry.Resource,
			ResourceID: entry.ResourceID,
			OldValues:  string(entry.OldValues),
			NewValues:  string(entry.NewValues),
			IPAddress:  entry.IPAddress,
			UserAgent:  entry.UserAgent,
			CreatedAt:  entry.CreatedAt.Format(timeFormat),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": out,
		"total":   total,
		"page":    filter.Page,
		"perPage": filter.PerPage,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
