// Package chathub is the matchmaking-and-session-coordination engine:
// the presence tracker, the waiting queue with its compatibility rule,
// the room registry and the relay that routes realtime events between a
// room's two participants.
package chathub

import "nebulalink/backend/internal/models"

// Client is the interface for one live connection. It abstracts the
// underlying transport so the hub can manage connection types uniformly;
// a single user may own several clients at once (multiple tabs).
type Client interface {
	// GetUserID returns the authenticated identity the connection is
	// bound to for its whole lifetime.
	GetUserID() string
	// GetRoomID returns the room this connection is joined to, or "".
	GetRoomID() string
	// SetRoomID joins or leaves a room's delivery scope. Called by the
	// matcher on match and by the relay on termination and rejoin.
	SetRoomID(string)

	// GetSendChannel is the send-only channel the hub pushes outbound
	// events through, or nil once the client is closed. Senders must
	// use a non-blocking select; a nil channel then drops the event, so
	// a delivery racing a close can never panic.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the client down, including the underlying transport;
	// safe to call more than once.
	Close()
}
