package realtime

import (
	"reflect"
	"testing"
)

func TestRoomIDTyping(t *testing.T) {
	if ChatRoom("42") == RoleRoom("42") {
		t.Fatal("chat and role rooms sharing a key must not collide")
	}
	if got := GroupRoom("algo").String(); got != "group:algo" {
		t.Fatalf("String() = %q, want group:algo", got)
	}
}

func TestSubscribeAndMembers(t *testing.T) {
	r := NewRooms()
	room := ChatRoom("c1")

	r.Subscribe(room, "conn1", "alice")
	r.Subscribe(room, "conn2", "alice") // second device
	r.Subscribe(room, "conn3", "bob")

	got := r.MembersOf(room)
	want := []string{"alice", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MembersOf = %v, want %v", got, want)
	}
}

func TestUnsubscribeRefcountsUser(t *testing.T) {
	r := NewRooms()
	room := ChatRoom("c1")
	r.Subscribe(room, "conn1", "alice")
	r.Subscribe(room, "conn2", "alice")

	r.Unsubscribe(room, "conn1")
	if got := r.MembersOf(room); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("alice should remain via conn2, got %v", got)
	}
	r.Unsubscribe(room, "conn2")
	if got := r.MembersOf(room); got != nil {
		t.Fatalf("empty room should resolve to nil, got %v", got)
	}
}

func TestUnsubscribeEmptyRoomIsNoop(t *testing.T) {
	r := NewRooms()
	r.Unsubscribe(ChatRoom("ghost"), "conn1") // must not panic
	r.DropConn("conn1")
}

func TestDropConnLeavesEveryRoom(t *testing.T) {
	r := NewRooms()
	r.Subscribe(ChatRoom("c1"), "conn1", "alice")
	r.Subscribe(GroupRoom("g1"), "conn1", "alice")
	r.Subscribe(ChatRoom("c1"), "conn2", "bob")

	r.DropConn("conn1")
	if got := r.MembersOf(ChatRoom("c1")); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("c1 members = %v, want [bob]", got)
	}
	if got := r.MembersOf(GroupRoom("g1")); got != nil {
		t.Fatalf("g1 should be empty, got %v", got)
	}
	if got := r.RoomsOfUser("alice", RoomChat); len(got) != 0 {
		t.Fatalf("alice should have no chat rooms, got %v", got)
	}
}

func TestRoomsOfUserFiltersKind(t *testing.T) {
	r := NewRooms()
	r.Subscribe(ChatRoom("c2"), "conn1", "alice")
	r.Subscribe(ChatRoom("c1"), "conn1", "alice")
	r.Subscribe(RoleRoom("student"), "conn1", "alice")

	got := r.RoomsOfUser("alice", RoomChat)
	want := []RoomID{ChatRoom("c1"), ChatRoom("c2")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RoomsOfUser = %v, want %v", got, want)
	}
}
