package chathub

import (
	"context"
	"errors"
	"log"

	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"
)

// ManagerService is the realtime relay. Client read pumps hand it
// decoded events; it resolves the counterpart through the room registry
// and the presence tracker and routes each event category accordingly.
// A failure while handling one event is reported to that client and
// logged, never fatal to the connection or to other rooms.
type ManagerService struct {
	Storage  storage.Storage
	Presence *PresenceTracker
	Rooms    *RoomRegistry
	Matcher  *MatcherService
}

func NewManagerService(s storage.Storage, presence *PresenceTracker, rooms *RoomRegistry, matcher *MatcherService) *ManagerService {
	return &ManagerService{
		Storage:  s,
		Presence: presence,
		Rooms:    rooms,
		Matcher:  matcher,
	}
}

// Register adds a freshly authenticated connection to the presence
// index and starts its pumps.
func (m *ManagerService) Register(c Client) {
	if err := m.Presence.Register(c); err != nil {
		log.Printf("Error registering connection for %s: %v", c.GetUserID(), err)
		c.Close()
		return
	}
	c.Run()
	log.Printf("User connected: %s", c.GetUserID())
}

// Unregister removes a connection. When it was the identity's last one,
// the disconnect cleanup runs: partner notification, departure system
// message and removal of any stale queue entry. The room itself stays
// active so the user can silently reconnect into it; only an explicit
// nextChat tears the session down.
func (m *ManagerService) Unregister(c Client) {
	last := m.Presence.Unregister(c)
	c.Close()
	if !last {
		return
	}
	log.Printf("User disconnected: %s", c.GetUserID())
	m.cleanupAfterDisconnect(c.GetUserID())
}

func (m *ManagerService) cleanupAfterDisconnect(userID string) {
	m.Matcher.Dequeue(userID)

	user, err := m.Storage.FindUserByID(userID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Printf("Disconnect cleanup error for %s: %v", userID, err)
		}
		return
	}
	if user.CurrentRoom == nil {
		return
	}

	room, err := m.Rooms.Get(*user.CurrentRoom)
	if err != nil {
		if !errors.Is(err, storage.ErrRoomNotFound) {
			log.Printf("Disconnect cleanup error for %s: %v", userID, err)
		}
		return
	}

	notice := &models.Message{
		RoomID:   room.RoomID,
		SenderID: userID,
		Kind:     models.MessageSystem,
		Content:  systemDisconnectedMessage,
	}
	if err := m.Storage.SaveMessage(notice); err != nil {
		log.Printf("Error saving disconnect message for room %s: %v", room.RoomID, err)
	}

	m.Presence.SendTo(room.PartnerOf(userID), models.Event{
		Type:   models.EventPartnerDisconnected,
		RoomID: room.RoomID,
	})
}

// Dispatch routes one inbound event. It runs on the sending
// connection's read pump goroutine, so different connections are
// handled concurrently and never block one another.
func (m *ManagerService) Dispatch(c Client, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic handling %s event from %s: %v", ev.Type, c.GetUserID(), r)
		}
	}()

	var err error
	switch ev.Type {
	case models.EventFindMatch:
		err = m.handleFindMatch(c)
	case models.EventCancelMatch:
		m.Matcher.Dequeue(c.GetUserID())
		m.reply(c, models.Event{Type: models.EventMatchCancelled})
	case models.EventSendMessage:
		err = m.handleSendMessage(c, ev)
	case models.EventTyping:
		err = m.handleTyping(c, ev)
	case models.EventSeenMessage:
		err = m.handleSeen(c, ev)
	case models.EventOffer, models.EventAnswer, models.EventICECandidate:
		err = m.handleSignal(c, ev)
	case models.EventEndCall:
		err = m.handleEndCall(c, ev)
	case models.EventNextChat:
		err = m.handleNextChat(c)
	default:
		err = errors.New("unknown event type: " + ev.Type)
	}

	if err != nil {
		log.Printf("Error handling %s event from %s: %v", ev.Type, c.GetUserID(), err)
		m.reply(c, models.Event{Type: models.EventError, Error: err.Error()})
	}
}

func (m *ManagerService) handleFindMatch(c Client) error {
	status, _, err := m.Matcher.Enqueue(c.GetUserID())
	if err != nil {
		return err
	}
	switch status {
	case StatusQueued:
		m.reply(c, models.Event{Type: models.EventQueued})
	case StatusAlreadyQueued:
		m.reply(c, models.Event{Type: models.EventAlreadyQueued})
	case StatusMatched:
		// Both sides were already notified with matchFound.
	}
	return nil
}

func (m *ManagerService) handleSendMessage(c Client, ev models.Event) error {
	if ev.Content == "" && ev.FileURL == "" {
		return errors.New("message has no content")
	}
	if !models.ValidKind(ev.Kind) || ev.Kind == models.MessageSystem {
		return errors.New("invalid message kind")
	}
	room, err := m.memberRoom(c, ev.RoomID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return errors.New("room is closed")
	}

	msg := &models.Message{
		RoomID:   room.RoomID,
		SenderID: c.GetUserID(),
		Kind:     ev.Kind,
		Content:  ev.Content,
		FileURL:  ev.FileURL,
	}
	if err := m.Storage.SaveMessage(msg); err != nil {
		return err
	}

	return m.Storage.PublishEvent(models.Event{
		Type:    models.EventNewMessage,
		RoomID:  room.RoomID,
		Message: msg,
	})
}

func (m *ManagerService) handleTyping(c Client, ev models.Event) error {
	room, err := m.memberRoom(c, ev.RoomID)
	if err != nil {
		return err
	}
	// Ephemeral: forwarded to the partner only, never persisted.
	m.Presence.SendTo(room.PartnerOf(c.GetUserID()), models.Event{
		Type:     models.EventPartnerTyping,
		RoomID:   room.RoomID,
		IsTyping: ev.IsTyping,
	})
	return nil
}

func (m *ManagerService) handleSeen(c Client, ev models.Event) error {
	room, err := m.memberRoom(c, ev.RoomID)
	if err != nil {
		return err
	}
	if ev.MessageID == 0 {
		return errors.New("missing message id")
	}
	if err := m.Storage.MarkMessageSeen(ev.MessageID); err != nil {
		return err
	}
	return m.Storage.PublishEvent(models.Event{
		Type:      models.EventMessageSeen,
		RoomID:    room.RoomID,
		MessageID: ev.MessageID,
	})
}

// handleSignal forwards call-signaling payloads verbatim to the
// partner's connections. Delivery is best-effort and the relay neither
// persists nor validates the payload.
func (m *ManagerService) handleSignal(c Client, ev models.Event) error {
	room, err := m.memberRoom(c, ev.RoomID)
	if err != nil {
		return err
	}
	m.Presence.SendTo(room.PartnerOf(c.GetUserID()), models.Event{
		Type:    ev.Type,
		RoomID:  room.RoomID,
		Payload: ev.Payload,
		From:    c.GetUserID(),
	})
	return nil
}

func (m *ManagerService) handleEndCall(c Client, ev models.Event) error {
	room, err := m.memberRoom(c, ev.RoomID)
	if err != nil {
		return err
	}
	m.Presence.SendTo(room.PartnerOf(c.GetUserID()), models.Event{
		Type:   models.EventCallEnded,
		RoomID: room.RoomID,
		From:   c.GetUserID(),
	})
	return nil
}

// handleNextChat is the explicit leave path: tear the session down
// (one-way), notify the partner, drop any stale queue entry and tell
// the departing user they may queue again.
func (m *ManagerService) handleNextChat(c Client) error {
	userID := c.GetUserID()
	user, err := m.Storage.FindUserByID(userID)
	if err != nil {
		return err
	}

	if user.CurrentRoom != nil {
		roomID := *user.CurrentRoom
		room, err := m.Rooms.Get(roomID)
		switch {
		case errors.Is(err, storage.ErrRoomNotFound):
			// Dangling pointer; just clear it.
			if err := m.Storage.SetCurrentRoom(userID, nil); err != nil {
				log.Printf("Error clearing dangling room pointer for %s: %v", userID, err)
			}
		case err != nil:
			return err
		default:
			// Terminate first: the partner only hears the session ended
			// once it actually has.
			partnerID := room.PartnerOf(userID)
			if _, err := m.Rooms.Terminate(roomID, userID); err != nil {
				return err
			}
			m.Presence.SendTo(partnerID, models.Event{
				Type:   models.EventPartnerDisconnected,
				RoomID: room.RoomID,
			})
			m.Presence.JoinRoom(userID, "")
			m.Presence.JoinRoom(partnerID, "")
		}
	}

	m.Matcher.Dequeue(userID)
	m.reply(c, models.Event{Type: models.EventReadyForQueue})
	return nil
}

// memberRoom loads a room and checks the sender is one of its two
// participants. A request against someone else's room is denied with no
// state change.
func (m *ManagerService) memberRoom(c Client, roomID string) (*models.ChatRoom, error) {
	if roomID == "" {
		return nil, errors.New("missing room id")
	}
	room, err := m.Rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(c.GetUserID()) {
		return nil, errors.New("not a participant of this room")
	}
	return room, nil
}

// DeliverRoomEvent fans a room-scoped event out to every local live
// connection of both participants. Fed by the Pub/Sub listener, so all
// instances deliver to their own connections.
func (m *ManagerService) DeliverRoomEvent(ev models.Event) {
	room, err := m.Rooms.Get(ev.RoomID)
	if err != nil {
		log.Printf("Error resolving room %s for %s event: %v", ev.RoomID, ev.Type, err)
		return
	}
	m.Presence.SendTo(room.User1ID, ev)
	m.Presence.SendTo(room.User2ID, ev)
}

// reply pushes an event to one specific connection, best-effort.
func (m *ManagerService) reply(c Client, ev models.Event) {
	select {
	case c.GetSendChannel() <- ev:
	default:
		log.Printf("Dropping %s reply for slow connection of %s", ev.Type, c.GetUserID())
	}
}

// RunPubSub consumes the shared broadcast channel until ctx is
// cancelled, delivering each event to local participants.
func (m *ManagerService) RunPubSub(ctx context.Context) error {
	events, err := m.Storage.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	log.Println("Pub/Sub listener started.")
	for ev := range events {
		m.DeliverRoomEvent(ev)
	}
	return nil
}
