package chathub_test

import (
	"context"
	"sync"

	"nebulalink/backend/internal/chathub"
	"nebulalink/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a testify mock of the storage.Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockStorage) FindUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) FindUserByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStorage) SetOnlineStatus(userID string, online bool) error {
	args := m.Called(userID, online)
	return args.Error(0)
}

func (m *MockStorage) SetCurrentRoom(userID string, roomID *string) error {
	args := m.Called(userID, roomID)
	return args.Error(0)
}

func (m *MockStorage) ClearCurrentRoomFor(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) SaveRoom(room *models.ChatRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) CloseRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) SaveMessage(msg *models.Message) error {
	args := m.Called(msg)
	return args.Error(0)
}

func (m *MockStorage) MarkMessageSeen(messageID uint) error {
	args := m.Called(messageID)
	return args.Error(0)
}

func (m *MockStorage) GetChatHistory(roomID string) ([]models.Message, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStorage) PublishEvent(ev models.Event) error {
	args := m.Called(ev)
	return args.Error(0)
}

func (m *MockStorage) SubscribeEvents(ctx context.Context) (<-chan models.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan models.Event), args.Error(1)
}

func (m *MockStorage) AddUserToSearchQueue(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) RemoveUserFromSearchQueue(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStorage) GetSearchingUsers() ([]string, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// mockClient is an in-memory Client whose delivered events can be
// inspected by tests.
type mockClient struct {
	userID string

	mu     sync.Mutex
	roomID string
	closed bool

	Recv chan models.Event
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		Recv:   make(chan models.Event, 32),
	}
}

func (c *mockClient) GetUserID() string { return c.userID }

func (c *mockClient) GetRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *mockClient) SetRoomID(id string) {
	c.mu.Lock()
	c.roomID = id
	c.mu.Unlock()
}

func (c *mockClient) GetSendChannel() chan<- models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.Recv
}

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// received drains everything delivered so far without blocking.
func (c *mockClient) received() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.Recv:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// testStack bundles a fully wired core over a MockStorage.
type testStack struct {
	storage  *MockStorage
	presence *chathub.PresenceTracker
	rooms    *chathub.RoomRegistry
	matcher  *chathub.MatcherService
	hub      *chathub.ManagerService
}

func newTestStack() *testStack {
	s := new(MockStorage)
	presence := chathub.NewPresenceTracker(s)
	rooms := chathub.NewRoomRegistry(s)
	matcher := chathub.NewMatcherService(s, rooms, presence)
	hub := chathub.NewManagerService(s, presence, rooms, matcher)
	return &testStack{storage: s, presence: presence, rooms: rooms, matcher: matcher, hub: hub}
}

// expectUser wires FindUserByID for a profile with the given matching
// attributes.
func (ts *testStack) expectUser(id, gender, preference string, nsfw bool) *models.User {
	user := &models.User{
		ID:          id,
		Username:    id,
		Gender:      gender,
		Preference:  preference,
		NSFWEnabled: nsfw,
	}
	ts.storage.On("FindUserByID", id).Return(user, nil)
	return user
}

// expectMatchIO wires the storage calls a successful match performs,
// except SaveRoom, which each test declares itself (some capture the
// saved room).
func (ts *testStack) expectMatchIO() {
	ts.storage.On("SaveMessage", mock.AnythingOfType("*models.Message")).Return(nil)
	ts.storage.On("SetCurrentRoom", mock.Anything, mock.Anything).Return(nil)
	ts.storage.On("AddUserToSearchQueue", mock.Anything).Return(nil)
	ts.storage.On("RemoveUserFromSearchQueue", mock.Anything).Return(nil)
}
