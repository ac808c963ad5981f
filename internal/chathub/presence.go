package chathub

import (
	"errors"
	"log"
	"sync"

	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"
)

// PresenceTracker maintains the identity -> live-connections index. All
// delivery fans out through it, so finding a user's sockets is a map
// lookup rather than a scan over every connection on the server.
type PresenceTracker struct {
	storage storage.Storage

	mu    sync.RWMutex
	conns map[string]map[Client]struct{}
}

func NewPresenceTracker(s storage.Storage) *PresenceTracker {
	return &PresenceTracker{
		storage: s,
		conns:   make(map[string]map[Client]struct{}),
	}
}

// Register adds a connection to its identity's set. An identity with no
// profile is refused before it touches the index. The first connection
// marks the profile online; if the profile still points at an active
// room, the connection silently rejoins it so a refreshed client lands
// back in its in-progress conversation.
func (p *PresenceTracker) Register(c Client) error {
	userID := c.GetUserID()

	user, err := p.storage.FindUserByID(userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return err
		}
		// Transient lookup failure; admit the connection without the
		// room-rejoin step.
		log.Printf("Error loading profile for %s: %v", userID, err)
	}

	p.mu.Lock()
	set, ok := p.conns[userID]
	if !ok {
		set = make(map[Client]struct{})
		p.conns[userID] = set
	}
	set[c] = struct{}{}
	first := len(set) == 1
	p.mu.Unlock()

	if first {
		if err := p.storage.SetOnlineStatus(userID, true); err != nil {
			log.Printf("Error marking user %s online: %v", userID, err)
		}
	}

	if user != nil && user.CurrentRoom != nil {
		c.SetRoomID(*user.CurrentRoom)
		log.Printf("User %s rejoined room %s", userID, *user.CurrentRoom)
	}
	return nil
}

// Unregister removes a connection and reports whether it was the
// identity's last one. The last removal marks the profile offline and
// stamps last-seen.
func (p *PresenceTracker) Unregister(c Client) (last bool) {
	userID := c.GetUserID()

	p.mu.Lock()
	set, ok := p.conns[userID]
	if ok {
		delete(set, c)
		if len(set) == 0 {
			delete(p.conns, userID)
			last = true
		}
	}
	p.mu.Unlock()

	if last {
		if err := p.storage.SetOnlineStatus(userID, false); err != nil {
			log.Printf("Error marking user %s offline: %v", userID, err)
		}
	}
	return last
}

// ConnectionsFor returns a snapshot of the identity's live connections.
func (p *PresenceTracker) ConnectionsFor(userID string) []Client {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := p.conns[userID]
	out := make([]Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether the identity has at least one live connection.
func (p *PresenceTracker) Online(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

// SendTo delivers an event to every live connection the identity owns.
// Delivery is best-effort: a connection whose buffer is full has fallen
// too far behind and the event is dropped for it, and a connection that
// closed after the snapshot was taken exposes a nil channel and is
// dropped the same way.
func (p *PresenceTracker) SendTo(userID string, ev models.Event) {
	for _, c := range p.ConnectionsFor(userID) {
		select {
		case c.GetSendChannel() <- ev:
		default:
			log.Printf("Dropping %s event for slow connection of %s", ev.Type, userID)
		}
	}
}

// JoinRoom points every live connection of the identity at roomID
// (or out of any room when roomID is "").
func (p *PresenceTracker) JoinRoom(userID, roomID string) {
	for _, c := range p.ConnectionsFor(userID) {
		c.SetRoomID(roomID)
	}
}
