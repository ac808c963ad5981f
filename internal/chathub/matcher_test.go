package chathub_test

import (
	"errors"
	"sync"
	"testing"

	"nebulalink/backend/internal/chathub"
	"nebulalink/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func entry(userID, gender, preference string, nsfw bool) models.QueueEntry {
	return models.QueueEntry{
		UserID:      userID,
		Gender:      gender,
		Preference:  preference,
		NSFWEnabled: nsfw,
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		name string
		a, b models.QueueEntry
		want bool
	}{
		{
			name: "mutual gender preference",
			a:    entry("a", "Male", "Female", false),
			b:    entry("b", "Female", "Male", false),
			want: true,
		},
		{
			name: "one-sided preference",
			a:    entry("a", "Male", "Female", false),
			b:    entry("b", "Female", "Female", false),
			want: false,
		},
		{
			name: "nsfw mismatch blocks otherwise compatible pair",
			a:    entry("a", "Male", "Female", true),
			b:    entry("b", "Female", "Male", false),
			want: false,
		},
		{
			name: "nsfw on both sides",
			a:    entry("a", "Male", "Female", true),
			b:    entry("b", "Female", "Male", true),
			want: true,
		},
		{
			name: "both All",
			a:    entry("a", "Male", "All", false),
			b:    entry("b", "Female", "All", false),
			want: true,
		},
		{
			name: "All never matches a specific preference",
			a:    entry("a", "Male", "All", false),
			b:    entry("b", "Male", "Male", false),
			want: false,
		},
		{
			name: "specific preference never matches All",
			a:    entry("a", "Female", "Male", false),
			b:    entry("b", "Male", "All", false),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chathub.Compatible(tt.a, tt.b))
			// The predicate must be symmetric for every input pair.
			assert.Equal(t, chathub.Compatible(tt.a, tt.b), chathub.Compatible(tt.b, tt.a))
		})
	}
}

func TestEnqueueIdempotent(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.storage.On("AddUserToSearchQueue", "user_A").Return(nil)

	status, _, err := ts.matcher.Enqueue("user_A")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusQueued, status)

	status, _, err = ts.matcher.Enqueue("user_A")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusAlreadyQueued, status)

	assert.Equal(t, 1, ts.matcher.Len(), "duplicate admission must not add a second entry")
}

func TestEnqueueMatchesMutualPair(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.expectUser("user_B", "Female", "Male", false)
	ts.expectMatchIO()

	var savedRoom *models.ChatRoom
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).
		Run(func(args mock.Arguments) {
			savedRoom = args.Get(0).(*models.ChatRoom)
		}).Return(nil)

	status, _, err := ts.matcher.Enqueue("user_A")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusQueued, status)

	status, result, err := ts.matcher.Enqueue("user_B")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusMatched, status)
	assert.Equal(t, "user_A", result.PartnerID)

	assert.NotNil(t, savedRoom)
	assert.True(t, savedRoom.IsActive)
	assert.ElementsMatch(t,
		[]string{"user_A", "user_B"},
		[]string{savedRoom.User1ID, savedRoom.User2ID})
	assert.Equal(t, 0, ts.matcher.Len(), "both entries must be consumed")
}

func TestEnqueueNotifiesBothSides(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", true)
	ts.expectUser("user_B", "Female", "Male", true)
	ts.expectMatchIO()
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	ts.storage.On("SetOnlineStatus", mock.Anything, mock.Anything).Return(nil)
	clientA := newMockClient("user_A")
	clientB := newMockClient("user_B")
	ts.presence.Register(clientA)
	ts.presence.Register(clientB)

	ts.matcher.Enqueue("user_A")
	status, result, err := ts.matcher.Enqueue("user_B")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusMatched, status)

	for _, c := range []*mockClient{clientA, clientB} {
		events := c.received()
		var found bool
		for _, ev := range events {
			if ev.Type == models.EventMatchFound {
				found = true
				assert.Equal(t, result.Room.RoomID, ev.RoomID)
			}
		}
		assert.True(t, found, "client %s should receive matchFound", c.GetUserID())
		assert.Equal(t, result.Room.RoomID, c.GetRoomID(), "connection should join the room")
	}
}

func TestEnqueueMatchedPairsShareNSFW(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("sfw_A", "Male", "Female", false)
	ts.expectUser("nsfw_B", "Female", "Male", true)
	ts.expectUser("nsfw_C", "Male", "Female", true)
	ts.expectMatchIO()

	var savedRoom *models.ChatRoom
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).
		Run(func(args mock.Arguments) {
			savedRoom = args.Get(0).(*models.ChatRoom)
		}).Return(nil)

	ts.matcher.Enqueue("sfw_A")
	status, _, _ := ts.matcher.Enqueue("nsfw_B")
	assert.Equal(t, chathub.StatusQueued, status, "nsfw mismatch must not match")

	status, result, err := ts.matcher.Enqueue("nsfw_C")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusMatched, status)
	assert.Equal(t, "nsfw_B", result.PartnerID)
	assert.True(t, savedRoom.NSFWState)
	assert.Equal(t, 1, ts.matcher.Len(), "sfw_A stays queued")
}

func TestEnqueueFirstFitOldestWins(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("older", "Female", "Male", false)
	ts.expectUser("newer", "Female", "Male", false)
	ts.expectUser("joiner", "Male", "Female", false)
	ts.expectMatchIO()
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	ts.matcher.Enqueue("older")
	ts.matcher.Enqueue("newer")

	status, result, err := ts.matcher.Enqueue("joiner")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusMatched, status)
	assert.Equal(t, "older", result.PartnerID, "earliest arrival wins as candidate")
	assert.Equal(t, 1, ts.matcher.Len())
}

func TestConcurrentEnqueueProducesOneRoom(t *testing.T) {
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.expectUser("user_B", "Female", "Male", false)
	ts.expectMatchIO()

	var roomMu sync.Mutex
	var rooms []*models.ChatRoom
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).
		Run(func(args mock.Arguments) {
			roomMu.Lock()
			rooms = append(rooms, args.Get(0).(*models.ChatRoom))
			roomMu.Unlock()
		}).Return(nil)

	var wg sync.WaitGroup
	statuses := make([]chathub.EnqueueStatus, 2)
	for i, id := range []string{"user_A", "user_B"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			status, _, err := ts.matcher.Enqueue(id)
			assert.NoError(t, err)
			statuses[i] = status
		}(i, id)
	}
	wg.Wait()

	assert.Len(t, rooms, 1, "exactly one room for the pair")
	assert.ElementsMatch(t,
		[]string{"user_A", "user_B"},
		[]string{rooms[0].User1ID, rooms[0].User2ID})
	assert.Contains(t, statuses, chathub.StatusMatched)
	assert.Equal(t, 0, ts.matcher.Len(), "both entries consumed exactly once")
}

func TestDequeueNeverQueuedSucceeds(t *testing.T) {
	ts := newTestStack()
	ts.storage.On("RemoveUserFromSearchQueue", "ghost").Return(nil)

	assert.NotPanics(t, func() { ts.matcher.Dequeue("ghost") })
	assert.Equal(t, 0, ts.matcher.Len())
}

func TestScenarioThreeUsersGreedyFirstFit(t *testing.T) {
	// A(Male wants Female), B(Female wants Male), C(Male wants All):
	// A and B pair on B's admission, C stays queued with no peer.
	ts := newTestStack()
	ts.expectUser("A", "Male", "Female", false)
	ts.expectUser("B", "Female", "Male", false)
	ts.expectUser("C", "Male", "All", false)
	ts.expectMatchIO()
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	statusA, _, _ := ts.matcher.Enqueue("A")
	statusB, resultB, _ := ts.matcher.Enqueue("B")
	statusC, _, _ := ts.matcher.Enqueue("C")

	assert.Equal(t, chathub.StatusQueued, statusA)
	assert.Equal(t, chathub.StatusMatched, statusB)
	assert.Equal(t, "A", resultB.PartnerID)
	assert.Equal(t, chathub.StatusQueued, statusC)
	assert.Equal(t, 1, ts.matcher.Len())

	// A sweep pass finds nothing new for C.
	ts.matcher.Sweep()
	assert.Equal(t, 1, ts.matcher.Len())
}

func TestSweepPairsRestoredEntries(t *testing.T) {
	// Room creation fails on the first attempt; both consumed entries
	// must be restored, and the next sweep pairs them again.
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.expectUser("user_B", "Female", "Male", false)
	ts.storage.On("SaveMessage", mock.AnythingOfType("*models.Message")).Return(nil)
	ts.storage.On("SetCurrentRoom", mock.Anything, mock.Anything).Return(nil)
	ts.storage.On("AddUserToSearchQueue", mock.Anything).Return(nil)
	ts.storage.On("RemoveUserFromSearchQueue", mock.Anything).Return(nil)

	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).
		Return(errors.New("store unavailable")).Once()
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	ts.matcher.Enqueue("user_A")
	status, _, err := ts.matcher.Enqueue("user_B")
	assert.Error(t, err)
	assert.NotEqual(t, chathub.StatusMatched, status)
	assert.Equal(t, 2, ts.matcher.Len(), "failed match must restore both entries")

	ts.matcher.Sweep()
	assert.Equal(t, 0, ts.matcher.Len(), "sweep re-runs the same consume step")
}

func TestDequeueDuringFailedMatchIsNotRestored(t *testing.T) {
	// A withdraws in the window between the consume step and the failing
	// room creation. The restore must not resurrect the withdrawn entry;
	// only the partner returns to the queue.
	ts := newTestStack()
	ts.expectUser("user_A", "Male", "Female", false)
	ts.expectUser("user_B", "Female", "Male", false)
	ts.expectUser("user_C", "Male", "Female", false)
	ts.storage.On("SaveMessage", mock.AnythingOfType("*models.Message")).Return(nil)
	ts.storage.On("SetCurrentRoom", mock.Anything, mock.Anything).Return(nil)
	ts.storage.On("AddUserToSearchQueue", mock.Anything).Return(nil)
	ts.storage.On("RemoveUserFromSearchQueue", mock.Anything).Return(nil)

	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).
		Run(func(mock.Arguments) { ts.matcher.Dequeue("user_A") }).
		Return(errors.New("store unavailable")).Once()
	ts.storage.On("SaveRoom", mock.AnythingOfType("*models.ChatRoom")).Return(nil)

	ts.matcher.Enqueue("user_A")
	_, _, err := ts.matcher.Enqueue("user_B")
	assert.Error(t, err)
	assert.Equal(t, 1, ts.matcher.Len(), "only the partner is restored")

	// B is the one still waiting; a compatible newcomer pairs with them.
	status, res, err := ts.matcher.Enqueue("user_C")
	assert.NoError(t, err)
	assert.Equal(t, chathub.StatusMatched, status)
	assert.Equal(t, "user_B", res.PartnerID)
}

func TestRecoverQueueReseedsFromMirror(t *testing.T) {
	ts := newTestStack()
	ts.storage.On("GetSearchingUsers").Return([]string{"user_A", "gone"}, nil)
	ts.expectUser("user_A", "Male", "Female", false)
	ts.storage.On("FindUserByID", "gone").Return(nil, errors.New("user not found"))
	ts.storage.On("AddUserToSearchQueue", mock.Anything).Return(nil)
	ts.storage.On("RemoveUserFromSearchQueue", "gone").Return(nil)

	ts.matcher.RecoverQueue()

	assert.Equal(t, 1, ts.matcher.Len(), "only users with live profiles are reseeded")
	ts.storage.AssertCalled(t, "RemoveUserFromSearchQueue", "gone")
}
