package calls

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/studyhub-server/internal/callengine/livekit"
	"github.com/vovakirdan/studyhub-server/internal/store"
	"github.com/vovakirdan/studyhub-server/internal/store/sqlite"
)

func setup(t *testing.T, withEngine bool) (*Service, *sqlite.SQLiteStore, []*store.User) {
	t.Helper()
	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var users []*store.User
	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := st.CreateUser(context.Background(), name, "hash")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		users = append(users, u)
	}

	if withEngine {
		return New(st, livekit.New("key", "secret-secret-secret-secret-secret", "ws://lk")), st, users
	}
	return New(st, nil), st, users
}

func TestDirectCallLifecycle(t *testing.T) {
	svc, _, users := setup(t, true)
	ctx := context.Background()
	alice, bob, carol := users[0], users[1], users[2]

	if _, _, err := svc.Start(ctx, alice.ID, Request{CalleeID: &alice.ID}); !errors.Is(err, ErrCannotCallSelf) {
		t.Fatalf("expected ErrCannotCallSelf, got %v", err)
	}
	if _, _, err := svc.Start(ctx, alice.ID, Request{}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}

	call, info, err := svc.Start(ctx, alice.ID, Request{CalleeID: &bob.ID, Type: store.CallTypeVideo})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if call.Status != store.CallStatusPending || info == nil || info.Identity != "user-1" {
		t.Fatalf("unexpected start result: %+v %+v", call, info)
	}

	if _, _, err := svc.Join(ctx, call.ID, carol.ID); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	joined, _, err := svc.Join(ctx, call.ID, bob.ID)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.Status != store.CallStatusActive {
		t.Fatalf("status after join = %s", joined.Status)
	}

	ended, err := svc.End(ctx, call.ID, bob.ID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.Status != store.CallStatusEnded || ended.EndedAt == nil {
		t.Fatalf("unexpected ended call: %+v", ended)
	}
	if _, _, err := svc.Join(ctx, call.ID, bob.ID); !errors.Is(err, ErrCallEnded) {
		t.Fatalf("expected ErrCallEnded, got %v", err)
	}
}

func TestUnansweredCallIsMissed(t *testing.T) {
	svc, _, users := setup(t, false)
	ctx := context.Background()

	call, info, err := svc.Start(ctx, users[0].ID, Request{CalleeID: &users[1].ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if info != nil {
		t.Fatal("join info must be nil without an engine")
	}
	ended, err := svc.End(ctx, call.ID, users[0].ID)
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if ended.Status != store.CallStatusMissed {
		t.Fatalf("status = %s, want missed", ended.Status)
	}
}

func TestRoomCallRequiresMembership(t *testing.T) {
	svc, st, users := setup(t, false)
	ctx := context.Background()
	room, err := st.CreateRoom(ctx, "Physics", "", users[0].ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Start(ctx, users[1].ID, Request{RoomID: &room.ID}); !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("expected ErrNotRoomMember, got %v", err)
	}
	call, _, err := svc.Start(ctx, users[0].ID, Request{RoomID: &room.ID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if call.Type != store.CallTypeGroup {
		t.Fatalf("room call type = %s, want group", call.Type)
	}

	calls, err := svc.List(ctx, users[0].ID)
	if err != nil || len(calls) != 1 {
		t.Fatalf("List = (%v, %v)", calls, err)
	}
}
