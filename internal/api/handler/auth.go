package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"nebulalink/backend/internal/auth"
	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Gender      string `json:"gender" binding:"required"`
	Preference  string `json:"preference" binding:"required"`
	NSFWEnabled bool   `json:"nsfw_enabled"`
	AvatarURL   string `json:"avatar_url"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates a profile and returns a signed token for it.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	if _, err := h.Storage.FindUserByUsername(req.Username); err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
		return
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: hash,
		Gender:       req.Gender,
		Preference:   req.Preference,
		NSFWEnabled:  req.NSFWEnabled,
		AvatarURL:    req.AvatarURL,
	}
	if err := h.Storage.SaveUser(user); err != nil {
		log.Printf("Register error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"user":    user,
	})
}

// Login verifies credentials and returns a fresh token. A successful
// login also marks the profile online.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing credentials"})
		return
	}

	user, err := h.Storage.FindUserByUsername(req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := h.Storage.SetOnlineStatus(user.ID, true); err != nil {
		log.Printf("Login error updating status for %s: %v", user.ID, err)
	}
	now := time.Now()
	user.OnlineStatus = true
	user.LastSeen = &now

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}
