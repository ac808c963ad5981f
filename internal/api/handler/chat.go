package handler

import (
	"errors"
	"log"
	"net/http"

	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// roomForParticipant loads the room from the path and enforces that the
// caller is one of its two members.
func (h *Handler) roomForParticipant(c *gin.Context) (roomID string, ok bool) {
	roomID = c.Param("roomId")
	room, err := h.Storage.GetRoomByID(roomID)
	if errors.Is(err, storage.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return "", false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return "", false
	}
	if !room.HasParticipant(currentUserID(c)) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return "", false
	}
	return roomID, true
}

// History returns a room's messages, oldest first, to a participant.
func (h *Handler) History(c *gin.Context) {
	roomID, ok := h.roomForParticipant(c)
	if !ok {
		return
	}

	messages, err := h.Storage.GetChatHistory(roomID)
	if err != nil {
		log.Printf("Get history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PartnerInfo returns the other participant's public profile.
func (h *Handler) PartnerInfo(c *gin.Context) {
	roomID, ok := h.roomForParticipant(c)
	if !ok {
		return
	}

	room, err := h.Storage.GetRoomByID(roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	partner, err := h.Storage.FindUserByID(room.PartnerOf(currentUserID(c)))
	if errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch partner info"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": partner.Public()})
}
