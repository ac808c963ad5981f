package handler

import (
	"errors"
	"net/http"

	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Me returns the authenticated user's own profile.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.Storage.FindUserByID(currentUserID(c))
	if errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
