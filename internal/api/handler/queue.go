package handler

import (
	"errors"
	"log"
	"net/http"

	"nebulalink/backend/internal/chathub"
	"nebulalink/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// JoinQueue is the REST path into the queue manager. The same engine
// backs the findMatch WebSocket event.
func (h *Handler) JoinQueue(c *gin.Context) {
	status, result, err := h.Matcher.Enqueue(currentUserID(c))
	if errors.Is(err, storage.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		log.Printf("Enqueue error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join queue"})
		return
	}

	if status == chathub.StatusMatched {
		c.JSON(http.StatusOK, gin.H{
			"status":     status,
			"room_id":    result.Room.RoomID,
			"partner_id": result.PartnerID,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// LeaveQueue withdraws the user. Always succeeds, queued or not.
func (h *Handler) LeaveQueue(c *gin.Context) {
	h.Matcher.Dequeue(currentUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
