package friends

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/studyhub-server/internal/store"
	"github.com/vovakirdan/studyhub-server/internal/store/sqlite"
)

func setup(t *testing.T) (*Service, []*store.User) {
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
	return New(st), users
}

func TestFriendRequestFlow(t *testing.T) {
	svc, users := setup(t)
	ctx := context.Background()
	alice, bob, carol := users[0], users[1], users[2]

	if _, err := svc.SendRequest(ctx, alice.ID, alice.ID); !errors.Is(err, ErrCannotFriendSelf) {
		t.Fatalf("expected ErrCannotFriendSelf, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := svc.SendRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrRequestAlreadyExists) {
		t.Fatalf("expected ErrRequestAlreadyExists, got %v", err)
	}

	if err := svc.AcceptRequest(ctx, alice.ID, req.ID); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("requester must not accept own request, got %v", err)
	}
	pending, err := svc.ListPendingRequests(ctx, bob.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("ListPendingRequests = (%v, %v)", pending, err)
	}

	if err := svc.AcceptRequest(ctx, bob.ID, req.ID); err != nil {
		t.Fatalf("AcceptRequest failed: %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}

	friends, err := svc.ListFriends(ctx, alice.ID)
	if err != nil || len(friends) != 1 || friends[0].ID != bob.ID {
		t.Fatalf("ListFriends = (%v, %v)", friends, err)
	}
	ok, err := svc.IsFriend(ctx, bob.ID, alice.ID)
	if err != nil || !ok {
		t.Fatalf("IsFriend = (%v, %v)", ok, err)
	}

	// Rejected requests can be sent again.
	req2, err := svc.SendRequest(ctx, carol.ID, alice.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if err := svc.RejectRequest(ctx, alice.ID, req2.ID); err != nil {
		t.Fatalf("RejectRequest failed: %v", err)
	}
	again, err := svc.SendRequest(ctx, carol.ID, alice.ID)
	if err != nil {
		t.Fatalf("resend after reject failed: %v", err)
	}
	if again.Status != store.FriendStatusPending {
		t.Fatalf("resent request status = %s", again.Status)
	}
}
