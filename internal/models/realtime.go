package models

import (
	"encoding/json"
	"time"
)

// Inbound event types (client -> server).
const (
	EventFindMatch    = "findMatch"
	EventCancelMatch  = "cancelMatch"
	EventSendMessage  = "sendMessage"
	EventTyping       = "typing"
	EventSeenMessage  = "seenMessage"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "iceCandidate"
	EventEndCall      = "endCall"
	EventNextChat     = "nextChat"
)

// Outbound event types (server -> client). Offer/answer/ICE are relayed
// back out under their inbound names.
const (
	EventQueued              = "queued"
	EventAlreadyQueued       = "alreadyQueued"
	EventMatchFound          = "matchFound"
	EventMatchCancelled      = "matchCancelled"
	EventNewMessage          = "newMessage"
	EventPartnerTyping       = "partnerTyping"
	EventMessageSeen         = "messageSeen"
	EventCallEnded           = "callEnded"
	EventPartnerDisconnected = "partnerDisconnected"
	EventReadyForQueue       = "readyForQueue"
	EventError               = "error"
)

// Event is the JSON envelope exchanged over a live connection. Only the
// fields relevant to a given Type are populated; the rest are omitted.
type Event struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
	// From identifies the originator of a relayed signaling event.
	From      string `json:"from,omitempty"`
	MessageID uint   `json:"message_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Content   string `json:"content,omitempty"`
	FileURL   string `json:"file_url,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	// Payload carries opaque call-signaling blobs (SDP offers/answers,
	// ICE candidates). The relay forwards them verbatim.
	Payload json.RawMessage `json:"payload,omitempty"`
	Message *Message        `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// QueueEntry is a waiting user's matchable snapshot: the attributes the
// compatibility rule reads, frozen at admission time, plus arrival order.
type QueueEntry struct {
	UserID      string
	Gender      string
	Preference  string
	NSFWEnabled bool
	EnqueuedAt  time.Time
}
