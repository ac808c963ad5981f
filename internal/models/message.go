package models

import "gorm.io/gorm"

// Message kinds understood by the relay. System messages are emitted by
// the server itself (match announcements, disconnect notices).
const (
	MessageText   = "text"
	MessageEmoji  = "emoji"
	MessageImage  = "image"
	MessageGif    = "gif"
	MessageVoice  = "voice"
	MessageSystem = "system"
)

// Message is one entry in a room's append-only history. The embedded
// gorm.Model provides the ID and CreatedAt timestamp, which double as the
// message ID and send time on the wire. Seen is the only field mutated
// after creation.
type Message struct {
	gorm.Model

	RoomID   string `gorm:"type:uuid;not null;index:idx_room_msg" json:"room_id"`
	SenderID string `gorm:"not null;index:idx_room_msg" json:"sender_id"`
	Kind     string `gorm:"not null" json:"kind"`
	Content  string `json:"content,omitempty"`
	// FileURL references an externally uploaded file for image/gif/voice
	// messages. The core never touches the file itself.
	FileURL string `json:"file_url,omitempty"`
	Seen    bool   `json:"seen"`
}

// ValidKind reports whether kind is one of the accepted message kinds.
func ValidKind(kind string) bool {
	switch kind {
	case MessageText, MessageEmoji, MessageImage, MessageGif, MessageVoice, MessageSystem:
		return true
	}
	return false
}
