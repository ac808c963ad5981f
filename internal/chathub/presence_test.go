package chathub_test

import (
	"testing"

	"nebulalink/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPresenceRegisterMarksOnlineOnce(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.storage.On("SetOnlineStatus", "user_A", true).Return(nil)

	tab1 := newMockClient("user_A")
	tab2 := newMockClient("user_A")
	assert.NoError(t, ts.presence.Register(tab1))
	assert.NoError(t, ts.presence.Register(tab2))

	assert.True(t, ts.presence.Online("user_A"))
	assert.Len(t, ts.presence.ConnectionsFor("user_A"), 2)
	// Only the first connection flips the profile online.
	ts.storage.AssertNumberOfCalls(t, "SetOnlineStatus", 1)
}

func TestPresenceUnregisterLastConnectionGoesOffline(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.storage.On("SetOnlineStatus", "user_A", true).Return(nil)
	ts.storage.On("SetOnlineStatus", "user_A", false).Return(nil)

	tab1 := newMockClient("user_A")
	tab2 := newMockClient("user_A")
	ts.presence.Register(tab1)
	ts.presence.Register(tab2)

	assert.False(t, ts.presence.Unregister(tab1), "one tab left, still online")
	assert.True(t, ts.presence.Online("user_A"))

	assert.True(t, ts.presence.Unregister(tab2), "last connection gone")
	assert.False(t, ts.presence.Online("user_A"))
	ts.storage.AssertCalled(t, "SetOnlineStatus", "user_A", false)
}

func TestPresenceReconnectRejoinsCurrentRoom(t *testing.T) {
	ts := newTestStack()
	roomID := "room-123"
	user := &models.User{ID: "user_A", Username: "user_A", CurrentRoom: &roomID}
	ts.storage.On("FindUserByID", "user_A").Return(user, nil)
	ts.storage.On("SetOnlineStatus", "user_A", true).Return(nil)

	c := newMockClient("user_A")
	assert.NoError(t, ts.presence.Register(c))

	assert.Equal(t, roomID, c.GetRoomID(), "a refreshed client rejoins its in-progress room")
}

func TestPresenceSendToFansOutToAllConnections(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.storage.On("SetOnlineStatus", "user_A", true).Return(nil)

	tab1 := newMockClient("user_A")
	tab2 := newMockClient("user_A")
	ts.presence.Register(tab1)
	ts.presence.Register(tab2)

	ts.presence.SendTo("user_A", models.Event{Type: models.EventQueued})

	assert.Len(t, tab1.received(), 1)
	assert.Len(t, tab2.received(), 1)
}

func TestPresenceSendToUnknownIdentityIsNoop(t *testing.T) {
	ts := newTestStack()
	assert.NotPanics(t, func() {
		ts.presence.SendTo("nobody", models.Event{Type: models.EventQueued})
	})
}
