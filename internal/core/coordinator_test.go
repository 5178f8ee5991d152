package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSubscribeCeremony(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	c := NewClient("c1", "alice", "rgb(1,2,3)")
	coord.Subscribe(ctx, "lobby", c, "")

	wm := mustEvent(t, c, EventWatermark)
	if wm.ID != 0 {
		t.Fatalf("expected watermark 0 for fresh room, got %d", wm.ID)
	}

	join := mustEvent(t, c, EventChat)
	if !strings.Contains(join.Message.Body, "alice has joined the chat.") {
		t.Fatalf("expected join notice, got %q", join.Message.Body)
	}
	if join.Message.Type != MessageTypeSystem {
		t.Fatalf("join notice should be SYSTEM, got %q", join.Message.Type)
	}

	cid := mustEvent(t, c, EventOwnCID)
	if cid.CID != "c1" {
		t.Fatalf("expected own cid c1, got %q", cid.CID)
	}

	welcome := mustEvent(t, c, EventChat)
	if !strings.Contains(welcome.Message.Body, "Talking in channel 'lobby'") {
		t.Fatalf("expected welcome notice, got %q", welcome.Message.Body)
	}

	users := mustEvent(t, c, EventUserlist)
	if len(users.Users) != 1 || users.Users[0].Nickname != "alice" {
		t.Fatalf("unexpected userlist: %+v", users.Users)
	}
}

func TestSubscribePrivateChannel(t *testing.T) {
	coord := newTestCoordinator(t, gatedAdmission{password: "sekrit"})
	ctx := context.Background()

	insider := joined(t, coord, "vault", "c0", "warden")
	// joined uses an empty password, so the gate actually rejected the
	// insider; force membership for the broadcast assertion.
	coord.Registry().Join("vault", insider)

	c := NewClient("c1", "alice", "")
	coord.Subscribe(ctx, "vault", c, "")
	notice := mustEvent(t, c, EventChat)
	if !strings.Contains(notice.Message.Body, "This channel is private.") {
		t.Fatalf("expected private-channel notice, got %q", notice.Message.Body)
	}
	mustEvent(t, c, EventPrivateRequired)
	mustNoEvent(t, c, EventOwnCID)

	// Wrong password: requester gets an error, the room sees the failure.
	coord.Subscribe(ctx, "vault", c, "wrong")
	errNotice := mustEvent(t, c, EventChat)
	if !strings.Contains(errNotice.Message.Body, "Incorrect password.") {
		t.Fatalf("expected incorrect-password notice, got %q", errNotice.Message.Body)
	}
	failed := mustEvent(t, insider, EventChat)
	if !strings.Contains(failed.Message.Body, "alice just failed to join the room.") {
		t.Fatalf("expected room-visible failure notice, got %q", failed.Message.Body)
	}
	if failed.Message.Type != MessageTypeIdentity {
		t.Fatalf("failure notice should be identity-class, got %q", failed.Message.Type)
	}

	// Correct password admits.
	coord.Subscribe(ctx, "vault", c, "sekrit")
	mustEvent(t, c, EventOwnCID)
}

func TestChatBroadcastAndEcho(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundChat, Body: "hi there"})

	got := mustEvent(t, bob, EventChat)
	if got.Message.Body != "hi there" || got.Message.Nickname != "alice" || got.You {
		t.Fatalf("unexpected broadcast: %+v", got)
	}
	if got.Message.ID != 0 {
		t.Fatalf("first message should get sequence ID 0, got %d", got.Message.ID)
	}

	echo := mustEvent(t, alice, EventChat)
	if !echo.You || echo.Message.Body != "hi there" {
		t.Fatalf("expected you-tagged echo, got %+v", echo)
	}

	// Second message gets the next ID.
	coord.Dispatch(ctx, "lobby", bob, Inbound{Kind: InboundChat, Body: "hey"})
	second := mustEvent(t, alice, EventChat)
	if second.Message.ID != 1 {
		t.Fatalf("expected sequence ID 1, got %d", second.Message.ID)
	}
}

func TestChatEmptyBodyIsNoOp(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	coord.Dispatch(context.Background(), "lobby", alice, Inbound{Kind: InboundChat, Body: ""})
	mustNoEvent(t, bob, EventChat)
	mustNoEvent(t, alice, EventChat)
}

func TestHistoryRequestOmitsMissing(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundChat, Body: "zero"})
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundChat, Body: "one"})
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundHistoryRequest, RequestRange: []int64{0, 1, 5}})

	first := mustEvent(t, alice, EventChat)
	second := mustEvent(t, alice, EventChat)
	if first.Message.Body != "zero" || second.Message.Body != "one" {
		t.Fatalf("unexpected replay: %q, %q", first.Message.Body, second.Message.Body)
	}
	mustNoEvent(t, alice, EventChat)
}

func TestIdleUnidleTransitions(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdle})

	notice := mustEvent(t, bob, EventIdle)
	if notice.CID != "a" {
		t.Fatalf("idle notice for wrong cid: %q", notice.CID)
	}
	users := mustEvent(t, bob, EventUserlist)
	var entry *PresenceEntry
	for i := range users.Users {
		if users.Users[i].CID == "a" {
			entry = &users.Users[i]
		}
	}
	if entry == nil || !entry.Idle || entry.IdleSince == 0 {
		t.Fatalf("presence should show alice idle with a timestamp: %+v", entry)
	}

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundUnidle})
	mustEvent(t, bob, EventUnidle)
	users = mustEvent(t, bob, EventUserlist)
	for _, u := range users.Users {
		if u.CID == "a" && (u.Idle || u.IdleSince != 0) {
			t.Fatalf("presence should show alice active again: %+v", u)
		}
	}

	// Re-marking idle is harmless and still re-broadcasts the notice.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdle})
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdle})
	mustEvent(t, bob, EventIdle)
	mustEvent(t, bob, EventIdle)
}

func TestPrivateMessageReachesAllMatchingNicknames(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob1 := joined(t, coord, "lobby", "b1", "bob")
	bob2 := joined(t, coord, "lobby", "b2", "bob")
	carol := joined(t, coord, "lobby", "c", "carol")
	drain(alice)
	drain(bob1)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundPrivateMessage, Body: "psst", DirectedAt: "bob"})

	for _, bob := range []*Client{bob1, bob2} {
		pm := mustEvent(t, bob, EventPrivateMessage)
		if pm.Message.Body != "psst" || pm.Message.DirectedAt != "bob" || pm.You {
			t.Fatalf("unexpected pm: %+v", pm)
		}
	}

	echo := mustEvent(t, alice, EventPrivateMessage)
	if !echo.You {
		t.Fatal("sender echo must be you-tagged")
	}

	mustNoEvent(t, carol, EventPrivateMessage)
}

func TestPrivateMessageNoMatchSilentDrop(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})

	alice := joined(t, coord, "lobby", "a", "alice")
	drain(alice)

	coord.Dispatch(context.Background(), "lobby", alice, Inbound{Kind: InboundPrivateMessage, Body: "psst", DirectedAt: "ghost"})
	mustNoEvent(t, alice, EventPrivateMessage)
	mustNoEvent(t, alice, EventChat)
}

func TestNicknameChangeResetsIdentity(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundRegisterNick, Password: "pw1"})
	if !alice.Identified() {
		t.Fatal("registration should mark the client identified")
	}
	drain(alice)
	drain(bob)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundNickname, Nickname: "alicia"})

	if alice.Identified() {
		t.Fatal("nickname change must reset identified")
	}
	notice := mustEvent(t, bob, EventChat)
	if notice.Message.Type != MessageTypeIdentity || !strings.Contains(notice.Message.Body, "alice is now known as alicia") {
		t.Fatalf("expected identity-change notice, got %+v", notice.Message)
	}
	own := mustEvent(t, alice, EventChat)
	if !strings.Contains(own.Message.Body, "You are now known as alicia") {
		t.Fatalf("expected own rename notice, got %q", own.Message.Body)
	}
	mustEvent(t, alice, EventAck)
	mustEvent(t, bob, EventUserlist)
}

func TestNicknameEmptyRejected(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})

	alice := joined(t, coord, "lobby", "a", "alice")
	drain(alice)

	coord.Dispatch(context.Background(), "lobby", alice, Inbound{Kind: InboundNickname, Nickname: "   "})

	notice := mustEvent(t, alice, EventChat)
	if !strings.Contains(notice.Message.Body, "empty string") {
		t.Fatalf("expected validation notice, got %q", notice.Message.Body)
	}
	if alice.Nickname() != "alice" {
		t.Fatalf("nickname must be unchanged, got %q", alice.Nickname())
	}
}

func TestIdentifyFlows(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	// No registration yet.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdentify, Password: "pw1"})
	notice := mustEvent(t, alice, EventChat)
	if !strings.Contains(notice.Message.Body, "no registration on file for alice") {
		t.Fatalf("expected unknown-nickname notice, got %q", notice.Message.Body)
	}

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundRegisterNick, Password: "pw1"})
	drain(alice)
	drain(bob)
	alice.SetIdentified(false)

	// Wrong password: requester notice, room-visible failure, presence refresh.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdentify, Password: "pw2"})
	if alice.Identified() {
		t.Fatal("failed identify must leave identified=false")
	}
	wrong := mustEvent(t, alice, EventChat)
	if !strings.Contains(wrong.Message.Body, "Wrong password for alice") {
		t.Fatalf("expected wrong-password notice, got %q", wrong.Message.Body)
	}
	failed := mustEvent(t, bob, EventChat)
	if !strings.Contains(failed.Message.Body, "alice just failed to identify himself") {
		t.Fatalf("expected room-visible failure, got %q", failed.Message.Body)
	}
	mustEvent(t, bob, EventUserlist)

	// Correct password.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdentify, Password: "pw1"})
	if !alice.Identified() {
		t.Fatal("successful identify must set identified=true")
	}
	ok := mustEvent(t, alice, EventChat)
	if !strings.Contains(ok.Message.Body, "You are now identified for alice") {
		t.Fatalf("expected identified notice, got %q", ok.Message.Body)
	}
}

func TestRegisterNickTaken(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	impostor := joined(t, coord, "lobby", "b", "alice")
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundRegisterNick, Password: "pw1"})
	drain(impostor)
	coord.Dispatch(ctx, "lobby", impostor, Inbound{Kind: InboundRegisterNick, Password: "pw2"})

	notice := mustEvent(t, impostor, EventChat)
	if !strings.Contains(notice.Message.Body, "already registered by somebody") {
		t.Fatalf("expected nickname-taken notice, got %q", notice.Message.Body)
	}
	if impostor.Identified() {
		t.Fatal("failed registration must not identify the client")
	}
}

func TestUnsubscribeBroadcastsPart(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(bob)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundUnsubscribe})

	part := mustEvent(t, bob, EventChat)
	if !strings.Contains(part.Message.Body, "alice has left the chat.") {
		t.Fatalf("expected part notice, got %q", part.Message.Body)
	}
	users := mustEvent(t, bob, EventUserlist)
	if len(users.Users) != 1 || users.Users[0].Nickname != "bob" {
		t.Fatalf("unexpected userlist after part: %+v", users.Users)
	}

	// A second unsubscribe is a silent no-op.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundUnsubscribe})
	mustNoEvent(t, bob, EventChat)
}

func TestTopicBroadcast(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)

	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundTopic, Topic: "release day"})

	topic := mustEvent(t, bob, EventTopic)
	if topic.Message.Body != "release day" {
		t.Fatalf("unexpected topic notice: %q", topic.Message.Body)
	}
	if coord.Registry().Topic("lobby") != "release day" {
		t.Fatal("registry topic cache not updated")
	}

	// New joiners receive the persisted topic during the ceremony.
	carol := NewClient("c", "carol", "")
	coord.Subscribe(ctx, "lobby", carol, "")
	got := mustEvent(t, carol, EventTopic)
	if got.Message.Body != "release day" {
		t.Fatalf("joiner should see topic, got %q", got.Message.Body)
	}
}

func mustErrorCode(t *testing.T, c *Client, code string) {
	t.Helper()

	ev := mustEvent(t, c, EventError)
	if ev.Err == nil || ev.Err.Code != code {
		t.Fatalf("expected error code %q, got %+v", code, ev.Err)
	}
}

func TestErrorCodesAccompanyNotices(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	alice := joined(t, coord, "lobby", "a", "alice")
	bob := joined(t, coord, "lobby", "b", "bob")
	drain(alice)
	drain(bob)

	// Empty nickname: validation.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundNickname, Nickname: ""})
	mustErrorCode(t, alice, ErrCodeValidation)

	// Identify without a registration: unknown_nickname.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdentify, Password: "pw"})
	mustErrorCode(t, alice, ErrCodeUnknownNickname)

	// Register, then identify with the wrong password: authentication.
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundRegisterNick, Password: "pw1"})
	drain(alice)
	coord.Dispatch(ctx, "lobby", alice, Inbound{Kind: InboundIdentify, Password: "pw2"})
	mustErrorCode(t, alice, ErrCodeAuthentication)

	// Register a name someone else holds: nickname_taken.
	drain(bob)
	coord.Dispatch(ctx, "lobby", bob, Inbound{Kind: InboundNickname, Nickname: "alice"})
	coord.Dispatch(ctx, "lobby", bob, Inbound{Kind: InboundRegisterNick, Password: "pw3"})
	mustErrorCode(t, bob, ErrCodeNicknameTaken)
}

func TestWrongChannelPasswordEmitsAuthenticationError(t *testing.T) {
	coord := newTestCoordinator(t, gatedAdmission{password: "sekrit"})

	c := NewClient("c1", "alice", "")
	coord.Subscribe(context.Background(), "vault", c, "nope")
	mustErrorCode(t, c, ErrCodeAuthentication)
}

func TestNicknameChangeToRegisteredNameReminds(t *testing.T) {
	coord := newTestCoordinator(t, openAdmission{})
	ctx := context.Background()

	holder := joined(t, coord, "lobby", "a", "duchess")
	coord.Dispatch(ctx, "lobby", holder, Inbound{Kind: InboundRegisterNick, Password: "pw1"})

	carol := joined(t, coord, "lobby", "b", "carol")
	drain(carol)

	coord.Dispatch(ctx, "lobby", carol, Inbound{Kind: InboundNickname, Nickname: "duchess"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-carol.Events:
			if ev != nil && ev.Kind == EventChat && strings.Contains(ev.Message.Body, "This nickname is registered.") {
				return
			}
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("expected registered-nickname reminder")
}
