package realtime

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestRegistry(clock func() time.Time) *Registry {
	r := NewRegistry(RegistryConf{ProbeInterval: time.Hour, Clock: clock})
	return r
}

func TestRegisterFirstAndLast(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Close()

	phone := &websocket.Conn{}
	laptop := &websocket.Conn{}

	w1, first := r.Register(phone, "alice", "phone")
	if !first {
		t.Fatal("first device should report first=true")
	}
	_, first = r.Register(laptop, "alice", "laptop")
	if first {
		t.Fatal("second device should report first=false")
	}
	if n := r.DeviceCount("alice"); n != 2 {
		t.Fatalf("device count = %d, want 2", n)
	}

	_, last := r.Unregister(w1.ID)
	if last {
		t.Fatal("one device remains, last must be false")
	}
	handles := r.HandlesFor("alice")
	if len(handles) != 1 {
		t.Fatalf("handles = %d, want 1", len(handles))
	}
	_, last = r.Unregister(handles[0].ID)
	if !last {
		t.Fatal("final unregister must report last=true")
	}
	if n := r.DeviceCount("alice"); n != 0 {
		t.Fatalf("device count = %d, want 0", n)
	}
}

func TestRegisterIdempotentPerSocket(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Close()

	sock := &websocket.Conn{}
	w1, _ := r.Register(sock, "bob", "phone")
	w2, first := r.Register(sock, "bob", "phone")
	if w1 != w2 {
		t.Fatal("re-registering the same socket must return the existing handle")
	}
	if first {
		t.Fatal("re-registration is never a first transition")
	}
	if n := r.DeviceCount("bob"); n != 1 {
		t.Fatalf("device count = %d, want 1", n)
	}
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r := newTestRegistry(nil)
	defer r.Close()

	w, last := r.Unregister("missing")
	if w != nil || last {
		t.Fatalf("unknown unregister = (%v, %v), want (nil, false)", w, last)
	}
}

func TestSweepEvictsAndClassifiesIdle(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	r := NewRegistry(RegistryConf{ProbeInterval: 25 * time.Second, Clock: clock})
	defer r.Close()

	var evicted []string
	var idle, active []string
	r.SetCallbacks(
		func(w *WsConn) { evicted = append(evicted, w.ID) },
		func(u string) { idle = append(idle, u) },
		func(u string) { active = append(active, u) },
	)

	stale, _ := r.Register(&websocket.Conn{}, "carol", "phone")
	r.Register(&websocket.Conn{}, "dave", "phone")

	// carol misses two probes, dave one pong keeps him fresh
	now = now.Add(55 * time.Second)
	r.Heartbeat(r.HandlesFor("dave")[0].ID)
	r.sweepOnce(now)

	if len(evicted) != 1 || evicted[0] != stale.ID {
		t.Fatalf("evicted = %v, want [%s]", evicted, stale.ID)
	}
	if len(idle) != 1 || idle[0] != "carol" {
		t.Fatalf("idle = %v, want [carol]", idle)
	}
	if len(active) != 1 || active[0] != "dave" {
		t.Fatalf("active = %v, want [dave]", active)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	r := NewRegistry(RegistryConf{ProbeInterval: time.Hour, SendQueue: 1})
	defer r.Close()

	w, _ := r.Register(&websocket.Conn{}, "erin", "phone")
	if !w.Enqueue([]byte("a")) {
		t.Fatal("first enqueue should succeed")
	}
	if w.Enqueue([]byte("b")) {
		t.Fatal("full queue must drop, not block")
	}
	r.Unregister(w.ID)
	if w.Enqueue([]byte("c")) {
		t.Fatal("enqueue after shutdown must fail")
	}
}
