package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"authgrid/api/internal/middleware"
	"authgrid/api/internal/service"
)

type profileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), user, service.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(updated))
}

const maxAvatarBytes = 5 << 20

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file required"})
		return
	}
	if fileHeader.Size > maxAvatarBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "avatar exceeds 5MB"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	switch contentType {
	case "image/png", "image/jpeg", "image/webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.sendError(c, err)
		return
	}
	defer file.Close()

	url, err := h.store.PutAvatar(c.Request.Context(), user.ID, file, fileHeader.Size, contentType)
	if err != nil {
		h.sendError(c, err)
		return
	}

	updated, err := h.userService.UpdateProfile(c.Request.Context(), user, service.ProfileInput{
		AvatarURL: &url,
	}, h.requestMeta(c))
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUserResponse(updated))
}
