package models

import "time"

// ChatRoom represents a 1-on-1 chat session between two users.
// Participants are fixed for the room's lifetime; IsActive flips to false
// exactly once when the session is terminated and never comes back.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID  string `gorm:"primaryKey" json:"room_id"`
	User1ID string `gorm:"not null;index" json:"user1_id"`
	User2ID string `gorm:"not null;index" json:"user2_id"`
	// NSFWState is copied from the matched pair at creation.
	NSFWState bool      `json:"nsfw_state"`
	IsActive  bool      `json:"is_active"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// HasParticipant reports whether userID is one of the room's two members.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return r.User1ID == userID || r.User2ID == userID
}

// PartnerOf returns the other participant's ID, or "" when userID is not
// a member of the room.
func (r *ChatRoom) PartnerOf(userID string) string {
	switch userID {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
