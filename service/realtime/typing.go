package realtime

import (
	"sort"
	"sync"
)

// TypingTracker holds the ephemeral per-chat set of currently-typing users.
// Purely in-memory, no TTL, no persistence: cleared by explicit stop-typing
// or by the user's connection count dropping to zero. Best-effort UI state,
// allowed to be lossy.
type TypingTracker struct {
	mu     sync.Mutex
	byChat map[string]map[string]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{byChat: make(map[string]map[string]struct{})}
}

// Set toggles the user's typing state and returns the chat's complete
// current set; each toggle rebroadcasts the full set (not a diff) to avoid
// drift from missed individual events.
func (t *TypingTracker) Set(chatID, userID string, typing bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	m := t.byChat[chatID]
	if typing {
		if m == nil {
			m = make(map[string]struct{})
			t.byChat[chatID] = m
		}
		m[userID] = struct{}{}
	} else if m != nil {
		delete(m, userID)
		if len(m) == 0 {
			delete(t.byChat, chatID)
		}
	}
	return t.currentLocked(chatID)
}

func (t *TypingTracker) Current(chatID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked(chatID)
}

func (t *TypingTracker) currentLocked(chatID string) []string {
	m := t.byChat[chatID]
	if len(m) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(m))
	for u := range m {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// ClearUser drops the user from every chat's typing set and returns the
// affected chats with their remaining sets, for rebroadcast on disconnect.
func (t *TypingTracker) ClearUser(userID string) map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string][]string)
	for chatID, m := range t.byChat {
		if _, ok := m[userID]; !ok {
			continue
		}
		delete(m, userID)
		if len(m) == 0 {
			delete(t.byChat, chatID)
		}
		out[chatID] = t.currentLocked(chatID)
	}
	return out
}
