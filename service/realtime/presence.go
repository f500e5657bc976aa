package realtime

import (
	"context"
	"sync"
	"time"

	"CampusLink/logger"
	"CampusLink/service/storage"
)

// PresenceTracker derives the user's reachability from registry transitions
// and mirrors it into the presence store. It caches the last emitted status
// so sweep-driven away/active probes only produce a broadcast on a real
// transition.
type PresenceTracker struct {
	store PresenceStore
	clock func() time.Time

	mu   sync.Mutex
	last map[string]storage.Status
}

func NewPresenceTracker(store PresenceStore, clock func() time.Time) *PresenceTracker {
	if clock == nil {
		clock = time.Now
	}
	return &PresenceTracker{store: store, clock: clock, last: make(map[string]storage.Status)}
}

// HandleConnect records a connection gained. changed is true on the
// offline/away -> online transition; a device-count-only change still
// refreshes the store so contact lists show accurate counts.
func (t *PresenceTracker) HandleConnect(ctx context.Context, userID string, deviceCount int) (changed bool, pres storage.UserPresence) {
	t.mu.Lock()
	prev := t.last[userID]
	t.last[userID] = storage.StatusOnline
	t.mu.Unlock()

	if err := t.store.SetOnline(ctx, userID, deviceCount); err != nil {
		logger.Warnf("presence: set online for %s: %v", userID, err)
	}
	pres = storage.UserPresence{UserID: userID, Status: storage.StatusOnline, DeviceCount: deviceCount}
	return prev != storage.StatusOnline, pres
}

// HandleDisconnect records a connection lost. last signals the user's final
// connection closed; only then does the user go offline with a last_seen
// stamp.
func (t *PresenceTracker) HandleDisconnect(ctx context.Context, userID string, deviceCount int, last bool) (changed bool, pres storage.UserPresence) {
	if !last {
		if err := t.store.SetDeviceCount(ctx, userID, deviceCount); err != nil {
			logger.Warnf("presence: set device count for %s: %v", userID, err)
		}
		return false, storage.UserPresence{UserID: userID, Status: storage.StatusOnline, DeviceCount: deviceCount}
	}

	now := t.clock()
	t.mu.Lock()
	delete(t.last, userID)
	t.mu.Unlock()

	if err := t.store.SetOffline(ctx, userID, now); err != nil {
		logger.Warnf("presence: set offline for %s: %v", userID, err)
	}
	return true, storage.UserPresence{UserID: userID, Status: storage.StatusOffline, LastSeen: &now}
}

// MarkAway flags a user whose every connection went quiet for a probe
// interval. No-op unless the user is currently tracked online.
func (t *PresenceTracker) MarkAway(ctx context.Context, userID string, deviceCount int) (changed bool, pres storage.UserPresence) {
	t.mu.Lock()
	prev, tracked := t.last[userID]
	if !tracked || prev == storage.StatusAway {
		t.mu.Unlock()
		return false, storage.UserPresence{}
	}
	t.last[userID] = storage.StatusAway
	t.mu.Unlock()

	if err := t.store.SetAway(ctx, userID); err != nil {
		logger.Warnf("presence: set away for %s: %v", userID, err)
	}
	return true, storage.UserPresence{UserID: userID, Status: storage.StatusAway, DeviceCount: deviceCount}
}

// MarkActive restores online after an away spell; fresh heartbeats on any
// device count.
func (t *PresenceTracker) MarkActive(ctx context.Context, userID string, deviceCount int) (changed bool, pres storage.UserPresence) {
	t.mu.Lock()
	prev, tracked := t.last[userID]
	if !tracked || prev == storage.StatusOnline {
		t.mu.Unlock()
		return false, storage.UserPresence{}
	}
	t.last[userID] = storage.StatusOnline
	t.mu.Unlock()

	if err := t.store.SetOnline(ctx, userID, deviceCount); err != nil {
		logger.Warnf("presence: set online for %s: %v", userID, err)
	}
	return true, storage.UserPresence{UserID: userID, Status: storage.StatusOnline, DeviceCount: deviceCount}
}
