package realtime

import (
	"testing"

	errs "CampusLink/tools/errs"
)

func TestNotifyTargetsRoom(t *testing.T) {
	env := newTestEnv(t)
	member := env.connect(t, "alice")
	env.s.rooms.Subscribe(GroupRoom("algo"), member.ID, "alice")
	outsider := env.connect(t, "bob")

	err := env.s.Notify(&NotifyEvent{
		Target: NotifyTarget{Kind: "group", Key: "algo"},
		Event:  "group_invite_accepted",
		Data:   map[string]any{"groupId": "algo"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFanoutDrain(t, env.s, member)

	got := framesOfKind(recvFrames(t, member), EventNotify)
	if len(got) != 1 {
		t.Fatalf("notify frames = %d, want 1", len(got))
	}
	p := decodePayload[NotifyPayload](t, got[0])
	if p.Event != "group_invite_accepted" || p.Data["groupId"] != "algo" {
		t.Fatalf("payload = %+v", p)
	}
	if n := len(recvFrames(t, outsider)); n != 0 {
		t.Fatalf("outsider received %d frames, want 0", n)
	}
}

func TestNotifyUserHitsPersonalRoom(t *testing.T) {
	env := newTestEnv(t)
	alice := env.connect(t, "alice")

	if err := env.s.NotifyUser("alice", "friend_request", map[string]any{"from": "bob"}); err != nil {
		t.Fatalf("NotifyUser: %v", err)
	}
	waitFanoutDrain(t, env.s, alice)

	got := framesOfKind(recvFrames(t, alice), EventNotify)
	if len(got) != 1 {
		t.Fatalf("notify frames = %d, want 1", len(got))
	}
	if p := decodePayload[NotifyPayload](t, got[0]); p.Event != "friend_request" {
		t.Fatalf("event = %q", p.Event)
	}
}

func TestNotifyRejectsBadTargets(t *testing.T) {
	env := newTestEnv(t)

	cases := []NotifyEvent{
		{Target: NotifyTarget{Kind: "planet", Key: "x"}, Event: "e"},
		{Target: NotifyTarget{Kind: "group"}, Event: "e"},
		{Target: NotifyTarget{Kind: "group", Key: "algo"}},
	}
	for i, ev := range cases {
		if err := env.s.Notify(&ev); errs.CodeOf(err) != errs.CodeValidation {
			t.Fatalf("case %d: err = %v, want validation failure", i, err)
		}
	}
}
