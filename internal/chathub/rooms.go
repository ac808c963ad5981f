package chathub

import (
	"log"
	"sync"
	"time"

	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"

	"github.com/google/uuid"
)

// System message contents, kept byte-for-byte stable because deployed
// clients pattern-match on them.
const (
	systemConnectedMessage    = "You are now connected with a stranger. Say hi!"
	systemDisconnectedMessage = "Stranger has disconnected"
)

// RoomRegistry owns room lifecycle: creation on match and the one-way
// active -> inactive transition on termination.
type RoomRegistry struct {
	storage storage.Storage

	// terminateMu serializes Terminate so the explicit-leave and
	// transport-disconnect paths can race safely for the same room.
	terminateMu sync.Mutex
}

func NewRoomRegistry(s storage.Storage) *RoomRegistry {
	return &RoomRegistry{storage: s}
}

// Create allocates a new active room for a matched pair, appends the
// pairing system message and points both profiles at the room.
// Participants are fixed for the room's lifetime.
func (r *RoomRegistry) Create(user1ID, user2ID string, nsfwState bool) (*models.ChatRoom, error) {
	room := &models.ChatRoom{
		RoomID:    uuid.New().String(),
		User1ID:   user1ID,
		User2ID:   user2ID,
		NSFWState: nsfwState,
		IsActive:  true,
		StartedAt: time.Now(),
	}
	if err := r.storage.SaveRoom(room); err != nil {
		return nil, err
	}

	welcome := &models.Message{
		RoomID:   room.RoomID,
		SenderID: user1ID,
		Kind:     models.MessageSystem,
		Content:  systemConnectedMessage,
	}
	if err := r.storage.SaveMessage(welcome); err != nil {
		log.Printf("Error saving pairing message for room %s: %v", room.RoomID, err)
	}

	for _, id := range []string{user1ID, user2ID} {
		roomID := room.RoomID
		if err := r.storage.SetCurrentRoom(id, &roomID); err != nil {
			log.Printf("Error setting current room for %s: %v", id, err)
		}
	}
	return room, nil
}

// Terminate flips the room inactive, appends the departure system
// message and clears both participants' current-room pointers. Calling
// it again for the same room is a no-op, so the explicit-next and
// disconnect cleanup paths may both fire.
func (r *RoomRegistry) Terminate(roomID, actingUserID string) (*models.ChatRoom, error) {
	r.terminateMu.Lock()
	defer r.terminateMu.Unlock()

	room, err := r.storage.GetRoomByID(roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return room, nil
	}

	notice := &models.Message{
		RoomID:   roomID,
		SenderID: actingUserID,
		Kind:     models.MessageSystem,
		Content:  systemDisconnectedMessage,
	}
	if err := r.storage.SaveMessage(notice); err != nil {
		log.Printf("Error saving departure message for room %s: %v", roomID, err)
	}

	if err := r.storage.CloseRoom(roomID); err != nil {
		return nil, err
	}
	if err := r.storage.ClearCurrentRoomFor(roomID); err != nil {
		log.Printf("Error clearing room pointers for %s: %v", roomID, err)
	}

	room.IsActive = false
	room.EndedAt = time.Now()
	return room, nil
}

// Get looks up a room by ID.
func (r *RoomRegistry) Get(roomID string) (*models.ChatRoom, error) {
	return r.storage.GetRoomByID(roomID)
}

// Partner returns the other participant of a room, or "" when userID is
// not a member.
func (r *RoomRegistry) Partner(room *models.ChatRoom, userID string) string {
	return room.PartnerOf(userID)
}
