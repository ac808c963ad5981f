package chathub

import (
	"context"
	"log"
	"sync"
	"time"

	"nebulalink/backend/internal/models"
	"nebulalink/backend/internal/storage"
)

// EnqueueStatus is the outcome of an admission request.
type EnqueueStatus string

const (
	StatusAlreadyQueued EnqueueStatus = "already_queued"
	StatusQueued        EnqueueStatus = "queued"
	StatusMatched       EnqueueStatus = "matched"
)

// MatchResult describes a successful pairing from the enqueuing user's
// point of view.
type MatchResult struct {
	Room      *models.ChatRoom
	PartnerID string
}

// Compatible is the symmetric compatibility predicate. NSFW settings
// must agree; the "All" wildcard only matches another "All"; otherwise
// each side's preference must name the other's gender.
func Compatible(a, b models.QueueEntry) bool {
	if a.NSFWEnabled != b.NSFWEnabled {
		return false
	}
	if a.Preference == models.PreferenceAll || b.Preference == models.PreferenceAll {
		return a.Preference == models.PreferenceAll && b.Preference == models.PreferenceAll
	}
	return a.Preference == b.Gender && b.Preference == a.Gender
}

// MatcherService holds the waiting queue and pairs users greedily,
// first fit, oldest entry first. The scan-and-consume step runs under a
// single mutex so two concurrent admissions (or a concurrent sweep) can
// never both consume the same entry; everything that touches the store
// happens after the lock is released.
type MatcherService struct {
	storage  storage.Storage
	rooms    *RoomRegistry
	presence *PresenceTracker

	mu        sync.Mutex
	queue     []models.QueueEntry // oldest first
	queued    map[string]struct{} // membership index, one entry per identity
	pending   map[string]struct{} // consumed entries with room creation in flight
	withdrawn map[string]struct{} // pending users who dequeued before the match settled
}

func NewMatcherService(s storage.Storage, rooms *RoomRegistry, presence *PresenceTracker) *MatcherService {
	return &MatcherService{
		storage:   s,
		rooms:     rooms,
		presence:  presence,
		queued:    make(map[string]struct{}),
		pending:   make(map[string]struct{}),
		withdrawn: make(map[string]struct{}),
	}
}

// Enqueue admits a user to the queue and immediately attempts a match.
// A user already waiting gets StatusAlreadyQueued and no state change.
func (m *MatcherService) Enqueue(userID string) (EnqueueStatus, *MatchResult, error) {
	user, err := m.storage.FindUserByID(userID)
	if err != nil {
		return "", nil, err
	}

	entry := models.QueueEntry{
		UserID:      user.ID,
		Gender:      user.Gender,
		Preference:  user.Preference,
		NSFWEnabled: user.NSFWEnabled,
		EnqueuedAt:  time.Now(),
	}

	m.mu.Lock()
	if _, dup := m.queued[userID]; dup {
		m.mu.Unlock()
		return StatusAlreadyQueued, nil, nil
	}
	m.queue = append(m.queue, entry)
	m.queued[userID] = struct{}{}
	partner, found := m.consumeLocked(entry)
	m.mu.Unlock()

	if !found {
		if err := m.storage.AddUserToSearchQueue(userID); err != nil {
			log.Printf("Error mirroring queue entry for %s: %v", userID, err)
		}
		return StatusQueued, nil, nil
	}

	room, err := m.completeMatch(entry, partner)
	if err != nil {
		return "", nil, err
	}
	return StatusMatched, &MatchResult{Room: room, PartnerID: partner.UserID}, nil
}

// Dequeue withdraws a user from the queue. It is idempotent and always
// reports success, queued or not. A withdrawal while the user's entry
// is consumed for an in-flight match is remembered, so a failed room
// creation does not put the user back against their will.
func (m *MatcherService) Dequeue(userID string) {
	m.mu.Lock()
	m.removeLocked(userID)
	if _, ok := m.pending[userID]; ok {
		m.withdrawn[userID] = struct{}{}
	}
	m.mu.Unlock()

	if err := m.storage.RemoveUserFromSearchQueue(userID); err != nil {
		log.Printf("Error removing queue mirror entry for %s: %v", userID, err)
	}
}

// Sweep re-runs the match attempt for every waiting entry, oldest first,
// catching pairs that arrival ordering left unmatched in the same pass.
// It uses the same locked consume step as Enqueue.
func (m *MatcherService) Sweep() {
	m.mu.Lock()
	ids := make([]string, len(m.queue))
	for i, e := range m.queue {
		ids[i] = e.UserID
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		entry, ok := m.entryLocked(id)
		if !ok {
			// Consumed by an earlier iteration or a concurrent admission.
			m.mu.Unlock()
			continue
		}
		partner, found := m.consumeLocked(entry)
		m.mu.Unlock()

		if !found {
			continue
		}
		if _, err := m.completeMatch(entry, partner); err != nil {
			log.Printf("Sweep match error for %s: %v", id, err)
		}
	}
}

// Run drives periodic sweeps until ctx is cancelled. Started once from
// main.
func (m *MatcherService) Run(ctx context.Context, interval time.Duration) {
	log.Println("Matcher service started.")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// RecoverQueue re-seeds the queue from the Redis membership mirror after
// a restart. Users whose profiles vanished are dropped from the mirror.
func (m *MatcherService) RecoverQueue() {
	ids, err := m.storage.GetSearchingUsers()
	if err != nil {
		log.Printf("Error recovering search queue: %v", err)
		return
	}
	for _, id := range ids {
		status, _, err := m.Enqueue(id)
		if err != nil {
			log.Printf("Error recovering queue entry for %s: %v", id, err)
			if err := m.storage.RemoveUserFromSearchQueue(id); err != nil {
				log.Printf("Error dropping stale queue mirror entry for %s: %v", id, err)
			}
			continue
		}
		log.Printf("Recovered queue entry for %s: %s", id, status)
	}
	if len(ids) > 0 {
		log.Printf("Queue recovery complete, %d entries considered.", len(ids))
	}
}

// Len reports how many users are currently waiting.
func (m *MatcherService) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// entryLocked finds a waiting entry by user ID. Caller holds mu.
func (m *MatcherService) entryLocked(userID string) (models.QueueEntry, bool) {
	if _, ok := m.queued[userID]; !ok {
		return models.QueueEntry{}, false
	}
	for _, e := range m.queue {
		if e.UserID == userID {
			return e, true
		}
	}
	return models.QueueEntry{}, false
}

// consumeLocked scans every other entry oldest first and, on the first
// compatible one, removes both entries from the queue. This is the
// atomic consume step: the caller holds mu for the whole scan-and-remove
// so each entry is matched into at most one room. Caller holds mu.
func (m *MatcherService) consumeLocked(entry models.QueueEntry) (models.QueueEntry, bool) {
	for _, candidate := range m.queue {
		if candidate.UserID == entry.UserID {
			continue
		}
		if Compatible(entry, candidate) {
			m.removeLocked(entry.UserID)
			m.removeLocked(candidate.UserID)
			m.pending[entry.UserID] = struct{}{}
			m.pending[candidate.UserID] = struct{}{}
			return candidate, true
		}
	}
	return models.QueueEntry{}, false
}

// removeLocked deletes any entry for userID. Caller holds mu.
func (m *MatcherService) removeLocked(userID string) {
	if _, ok := m.queued[userID]; !ok {
		return
	}
	delete(m.queued, userID)
	for i, e := range m.queue {
		if e.UserID == userID {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// settleLocked ends a user's in-flight match window. Caller holds mu.
func (m *MatcherService) settleLocked(userID string) {
	delete(m.pending, userID)
	delete(m.withdrawn, userID)
}

// restoreLocked puts a consumed entry back, preserving arrival order, so
// a failed room creation does not silently drop a waiting user. A user
// who withdrew while the match was in flight stays out.
func (m *MatcherService) restoreLocked(entry models.QueueEntry) {
	delete(m.pending, entry.UserID)
	if _, w := m.withdrawn[entry.UserID]; w {
		delete(m.withdrawn, entry.UserID)
		return
	}
	if _, ok := m.queued[entry.UserID]; ok {
		return
	}
	m.queued[entry.UserID] = struct{}{}
	for i, e := range m.queue {
		if entry.EnqueuedAt.Before(e.EnqueuedAt) {
			m.queue = append(m.queue[:i], append([]models.QueueEntry{entry}, m.queue[i:]...)...)
			return
		}
	}
	m.queue = append(m.queue, entry)
}

// completeMatch executes the I/O half of a match decision: create the
// room, drop the Redis mirror entries and notify both sides' live
// connections. The entries are already consumed; on room-creation
// failure both are put back so neither user is lost.
func (m *MatcherService) completeMatch(a, b models.QueueEntry) (*models.ChatRoom, error) {
	room, err := m.rooms.Create(a.UserID, b.UserID, a.NSFWEnabled)
	if err != nil {
		m.mu.Lock()
		m.restoreLocked(a)
		m.restoreLocked(b)
		m.mu.Unlock()
		log.Printf("Error creating room for %s and %s: %v", a.UserID, b.UserID, err)
		return nil, err
	}

	m.mu.Lock()
	m.settleLocked(a.UserID)
	m.settleLocked(b.UserID)
	m.mu.Unlock()

	for _, id := range []string{a.UserID, b.UserID} {
		if err := m.storage.RemoveUserFromSearchQueue(id); err != nil {
			log.Printf("Error removing queue mirror entry for %s: %v", id, err)
		}
	}

	m.notifyMatch(a.UserID, b.UserID, room.RoomID)
	m.notifyMatch(b.UserID, a.UserID, room.RoomID)

	log.Printf("Match found: %s and %s in room %s", a.UserID, b.UserID, room.RoomID)
	return room, nil
}

// notifyMatch joins every live connection of userID to the new room and
// tells them who they were paired with.
func (m *MatcherService) notifyMatch(userID, partnerID, roomID string) {
	m.presence.JoinRoom(userID, roomID)
	m.presence.SendTo(userID, models.Event{
		Type:      models.EventMatchFound,
		RoomID:    roomID,
		PartnerID: partnerID,
	})
}
