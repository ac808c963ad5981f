package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"nebulalink/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Sentinel errors for not-found lookups, so callers can map them to the
// right response without string matching.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("chat room not found")
)

// eventsChannel is the Redis Pub/Sub channel room-scoped events are
// broadcast on. Every instance subscribes and delivers to its own local
// connections.
const eventsChannel = "chat:events"

// searchQueueKey is the Redis set mirroring queue membership, used to
// re-seed waiting users after a restart. The in-memory queue stays
// authoritative.
const searchQueueKey = "search_queue"

// Storage is the persistence gateway the realtime core talks to. It is
// an interface so the chathub package can be tested against a mock.
type Storage interface {
	SaveUser(user *models.User) error
	FindUserByID(id string) (*models.User, error)
	FindUserByUsername(username string) (*models.User, error)
	SetOnlineStatus(userID string, online bool) error
	SetCurrentRoom(userID string, roomID *string) error
	ClearCurrentRoomFor(roomID string) error

	SaveRoom(room *models.ChatRoom) error
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	CloseRoom(roomID string) error

	SaveMessage(msg *models.Message) error
	MarkMessageSeen(messageID uint) error
	GetChatHistory(roomID string) ([]models.Message, error)

	PublishEvent(ev models.Event) error
	SubscribeEvents(ctx context.Context) (<-chan models.Event, error)

	AddUserToSearchQueue(userID string) error
	RemoveUserFromSearchQueue(userID string) error
	GetSearchingUsers() ([]string, error)
}

// Service implements Storage over PostgreSQL (via GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService constructs the gorm/redis-backed gateway.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUser inserts or updates a user record.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) FindUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetOnlineStatus flips the online flag. Going offline also stamps
// last_seen, matching the presence tracker's offline transition.
func (s *Service) SetOnlineStatus(userID string, online bool) error {
	updates := map[string]interface{}{"online_status": online}
	if !online {
		updates["last_seen"] = time.Now()
	}
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates).Error
}

// SetCurrentRoom points a user at their active room; nil clears it.
func (s *Service) SetCurrentRoom(userID string, roomID *string) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("current_room", roomID).Error
}

// ClearCurrentRoomFor clears the current-room pointer of everyone still
// pointing at roomID. Used on session termination.
func (s *Service) ClearCurrentRoomFor(roomID string) error {
	return s.DB.Model(&models.User{}).
		Where("current_room = ?", roomID).
		Update("current_room", nil).Error
}

// SaveRoom persists a chat room.
func (s *Service) SaveRoom(room *models.ChatRoom) error {
	return s.DB.Save(room).Error
}

func (s *Service) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get room %s: %v", roomID, err)
		return nil, err
	}
	return &room, nil
}

// CloseRoom marks a room inactive and stamps ended_at. The active flag
// transition is one-way; closing an already-closed room is harmless.
func (s *Service) CloseRoom(roomID string) error {
	return s.DB.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  time.Now(),
		}).Error
}

// SaveMessage appends a message to its room's history. The generated ID
// and CreatedAt are filled in on the passed struct.
func (s *Service) SaveMessage(msg *models.Message) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for room %s: %v", msg.RoomID, err)
		return err
	}
	return nil
}

// MarkMessageSeen sets the seen flag, the only post-creation mutation a
// message ever gets.
func (s *Service) MarkMessageSeen(messageID uint) error {
	return s.DB.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("seen", true).Error
}

// GetChatHistory returns a room's messages oldest first.
func (s *Service) GetChatHistory(roomID string) ([]models.Message, error) {
	var history []models.Message
	if err := s.DB.Where("room_id = ?", roomID).Order("created_at asc").Find(&history).Error; err != nil {
		log.Printf("ERROR: Failed to get chat history for room %s: %v", roomID, err)
		return nil, err
	}
	return history, nil
}

// PublishEvent broadcasts a room-scoped event over Redis Pub/Sub.
func (s *Service) PublishEvent(ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventsChannel, payload).Err()
}

// SubscribeEvents subscribes to the shared event channel and returns a
// channel of decoded events. The subscription is closed when ctx is.
func (s *Service) SubscribeEvents(ctx context.Context) (<-chan models.Event, error) {
	pubsub := s.Redis.Subscribe(ctx, eventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan models.Event)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var ev models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("Error unmarshalling pubsub event: %v", err)
					continue
				}
				out <- ev
			}
		}
	}()
	return out, nil
}

// AddUserToSearchQueue mirrors queue membership into Redis.
func (s *Service) AddUserToSearchQueue(userID string) error {
	return s.Redis.SAdd(s.Ctx, searchQueueKey, userID).Err()
}

// RemoveUserFromSearchQueue removes the membership mirror entry.
func (s *Service) RemoveUserFromSearchQueue(userID string) error {
	return s.Redis.SRem(s.Ctx, searchQueueKey, userID).Err()
}

// GetSearchingUsers returns the mirrored queue membership, used once at
// startup to re-seed waiting users.
func (s *Service) GetSearchingUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, searchQueueKey).Result()
}
