package realtime

import (
	"context"
	"testing"
	"time"

	"CampusLink/service/storage"
)

func TestPresenceConnectDisconnectCycle(t *testing.T) {
	store := newFakePresence()
	now := time.Unix(2000, 0)
	tr := NewPresenceTracker(store, func() time.Time { return now })
	ctx := context.Background()

	changed, pres := tr.HandleConnect(ctx, "alice", 1)
	if !changed || pres.Status != storage.StatusOnline {
		t.Fatalf("first connect = (%v, %s), want (true, online)", changed, pres.Status)
	}

	// second device: no transition, but count refreshes
	changed, pres = tr.HandleConnect(ctx, "alice", 2)
	if changed {
		t.Fatal("second device must not re-announce online")
	}
	if pres.DeviceCount != 2 {
		t.Fatalf("device count = %d, want 2", pres.DeviceCount)
	}

	// one of two devices drops: still online
	changed, _ = tr.HandleDisconnect(ctx, "alice", 1, false)
	if changed {
		t.Fatal("non-final disconnect must not change status")
	}
	if store.statusOf("alice") != storage.StatusOnline {
		t.Fatal("store must still show online")
	}

	changed, pres = tr.HandleDisconnect(ctx, "alice", 0, true)
	if !changed || pres.Status != storage.StatusOffline {
		t.Fatalf("final disconnect = (%v, %s), want (true, offline)", changed, pres.Status)
	}
	if pres.LastSeen == nil || !pres.LastSeen.Equal(now) {
		t.Fatalf("last seen = %v, want %v", pres.LastSeen, now)
	}
}

func TestPresenceAwayAndBack(t *testing.T) {
	store := newFakePresence()
	tr := NewPresenceTracker(store, nil)
	ctx := context.Background()

	tr.HandleConnect(ctx, "bob", 1)

	changed, pres := tr.MarkAway(ctx, "bob", 1)
	if !changed || pres.Status != storage.StatusAway {
		t.Fatalf("away = (%v, %s), want (true, away)", changed, pres.Status)
	}
	// sweep repeats while still idle: no duplicate broadcast
	if changed, _ = tr.MarkAway(ctx, "bob", 1); changed {
		t.Fatal("repeated away must not re-announce")
	}

	changed, pres = tr.MarkActive(ctx, "bob", 1)
	if !changed || pres.Status != storage.StatusOnline {
		t.Fatalf("active = (%v, %s), want (true, online)", changed, pres.Status)
	}
	if changed, _ = tr.MarkActive(ctx, "bob", 1); changed {
		t.Fatal("already online must not re-announce")
	}
}

func TestPresenceAwayIgnoresUntrackedUser(t *testing.T) {
	tr := NewPresenceTracker(newFakePresence(), nil)
	if changed, _ := tr.MarkAway(context.Background(), "ghost", 0); changed {
		t.Fatal("away for an offline user must be a no-op")
	}
	if changed, _ := tr.MarkActive(context.Background(), "ghost", 0); changed {
		t.Fatal("active for an offline user must be a no-op")
	}
}

func TestDisconnectBroadcastsOfflineToChatContacts(t *testing.T) {
	env := newTestEnv(t)
	env.chats.addChat("c1", "alice", "bob")
	alice := env.connect(t, "alice", "c1")
	bob := env.connect(t, "bob", "c1")
	env.s.presence.HandleConnect(context.Background(), "alice", 1)

	env.s.disconnect(alice)
	waitFanoutDrain(t, env.s, bob)

	got := framesOfKind(recvFrames(t, bob), EventUserStatus)
	if len(got) != 1 {
		t.Fatalf("status frames = %d, want 1", len(got))
	}
	p := decodePayload[UserStatusPayload](t, got[0])
	if p.UserID != "alice" || p.Status != storage.StatusOffline {
		t.Fatalf("payload = %+v", p)
	}
	if p.LastSeen == nil {
		t.Fatal("offline status must carry last seen")
	}
}

func TestDisconnectClearsTypingState(t *testing.T) {
	env := newTestEnv(t)
	env.chats.addChat("c1", "alice", "bob")
	alice := env.connect(t, "alice", "c1")
	bob := env.connect(t, "bob", "c1")
	env.s.presence.HandleConnect(context.Background(), "alice", 1)
	env.s.typing.Set("c1", "alice", true)

	env.s.disconnect(alice)
	// both the typing clear and the offline status arrive async
	waitFrameCount(t, env.s, bob, 2)

	frames := framesOfKind(recvFrames(t, bob), EventUserTyping)
	if len(frames) != 1 {
		t.Fatalf("typing frames = %d, want 1", len(frames))
	}
	p := decodePayload[UserTypingPayload](t, frames[0])
	if p.IsTyping || p.UserID != "alice" || len(p.CurrentTypers) != 0 {
		t.Fatalf("payload = %+v", p)
	}
	if got := env.s.typing.Current("c1"); len(got) != 0 {
		t.Fatalf("typing set must be empty, got %v", got)
	}
}
