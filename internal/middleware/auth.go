package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/clock"
	"authgrid/api/internal/models"
	"authgrid/api/internal/security"
	"authgrid/api/internal/service"
)

// Context keys set by Auth for downstream handlers.
const (
	CtxUser   = "current_user"
	CtxClaims = "access_claims"
)

// Auth validates the bearer access token, resolves its session, and rejects
// requests from inactive or locked accounts. The session row is the kill
// switch: a revoked session invalidates access tokens that are otherwise
// still within their lifetime.
func Auth(tokens *security.TokenManager, users service.UserStore, sessions service.SessionStore, clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := tokens.Verify(tokenStr, security.TokenAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		session, err := sessions.GetByID(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}

		now := clk.Now()
		if session.UserID != claims.Subject || !session.Usable(now) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_revoked"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_inactive"})
			return
		}
		if user.LockedAt(now) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_locked"})
			return
		}

		_ = sessions.Touch(c.Request.Context(), session.ID, now)

		c.Set(CtxUser, user)
		c.Set(CtxClaims, *claims)

		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Auth.
func CurrentUser(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(CtxUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
