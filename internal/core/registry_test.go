package core

import (
	"sync"
	"testing"
)

func TestRegistryRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1)

	if _, ok := r.Register(1, c); !ok {
		t.Fatal("register failed")
	}
	if got := r.LookupUser(1); got != c {
		t.Fatalf("lookup returned %v, want c", got)
	}

	userID, removed := r.Unregister(c)
	if userID != 1 || !removed {
		t.Fatalf("unregister = (%d, %v), want (1, true)", userID, removed)
	}
	if got := r.LookupUser(1); got != nil {
		t.Fatalf("user should be gone, got %v", got)
	}

	// Idempotent.
	if _, removed := r.Unregister(c); removed {
		t.Fatal("second unregister should not remove anything")
	}
}

func TestRegistryLastSocketWins(t *testing.T) {
	r := NewRegistry()
	old := NewConn(1)
	cur := NewConn(1)

	r.Register(1, old)
	replaced, _ := r.Register(1, cur)
	if replaced != old {
		t.Fatalf("expected old connection to be reported as replaced")
	}
	if old.Closed() {
		t.Fatal("replaced connection must not be closed by register")
	}
	if got := r.LookupUser(1); got != cur {
		t.Fatal("lookup should return the newest connection")
	}

	// Unregistering the stale socket must not remove the newer one.
	if _, removed := r.Unregister(old); removed {
		t.Fatal("stale unregister should not remove the user entry")
	}
	if got := r.LookupUser(1); got != cur {
		t.Fatal("newer connection was removed by stale unregister")
	}

	// Registering the same connection twice is idempotent.
	if replaced, ok := r.Register(1, cur); !ok || replaced != nil {
		t.Fatalf("re-register = (%v, %v), want (nil, true)", replaced, ok)
	}
}

func TestRegistryAuthenticationIsOneWay(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1)
	r.Register(1, c)

	if _, ok := r.Register(2, c); ok {
		t.Fatal("connection must not rebind to another user")
	}
	if r.LookupUser(2) != nil {
		t.Fatal("user 2 must not be registered")
	}
	if id, _ := c.UserID(); id != 1 {
		t.Fatalf("user id changed to %d", id)
	}
}

func TestRegistryJoinLeaveRoom(t *testing.T) {
	r := NewRegistry()
	anon := NewConn(1)
	if r.JoinRoom(7, anon) {
		t.Fatal("anonymous join must be a no-op")
	}
	if len(r.LookupRoom(7)) != 0 {
		t.Fatal("anonymous connection leaked into room")
	}

	a := NewConn(1)
	b := NewConn(1)
	r.Register(1, a)
	r.Register(2, b)
	r.JoinRoom(7, a)
	r.JoinRoom(7, b)

	if n := len(r.LookupRoom(7)); n != 2 {
		t.Fatalf("room size = %d, want 2", n)
	}

	r.LeaveRoom(7, a)
	for _, c := range r.LookupRoom(7) {
		if c == a {
			t.Fatal("a should have left room 7")
		}
	}
	r.LeaveRoom(7, b)

	if _, rooms := r.Stats(); rooms != 0 {
		t.Fatalf("empty room entry should be removed, rooms=%d", rooms)
	}
	if r.LeaveRoom(7, b) {
		t.Fatal("leaving twice should report false")
	}
}

func TestRegistryUnregisterClearsRooms(t *testing.T) {
	r := NewRegistry()
	c := NewConn(1)
	r.Register(1, c)
	for _, room := range []int64{1, 2, 3} {
		r.JoinRoom(room, c)
	}

	r.Unregister(c)

	gotUsers, gotRooms := r.Stats()
	if gotUsers != 0 || gotRooms != 0 {
		t.Fatalf("stats after unregister = (%d, %d), want (0, 0)", gotUsers, gotRooms)
	}
	if len(r.Rooms(c)) != 0 {
		t.Fatal("connection still lists joined rooms")
	}

	// Anonymous connections unregister cleanly.
	if _, removed := r.Unregister(NewConn(1)); removed {
		t.Fatal("anonymous unregister should remove nothing")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	const users = 50

	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := NewConn(1)
			r.Register(userID, c)
			r.JoinRoom(1, c)
			_ = r.LookupRoom(1)
			_ = r.LookupUser(userID)
			r.LeaveRoom(1, c)
			r.JoinRoom(2, c)
			r.Unregister(c)
		}(int64(i + 1))
	}
	wg.Wait()

	gotUsers, gotRooms := r.Stats()
	if gotUsers != 0 || gotRooms != 0 {
		t.Fatalf("stats after concurrent churn = (%d, %d), want (0, 0)", gotUsers, gotRooms)
	}
}

func TestConnSend(t *testing.T) {
	c := NewConn(1)
	if err := c.Send(&Event{Kind: EventTyping}); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := c.Send(&Event{Kind: EventTyping}); err != ErrSlowConsumer {
		t.Fatalf("expected ErrSlowConsumer, got %v", err)
	}
	c.Close()
	c.Close()
	if err := c.Send(&Event{Kind: EventTyping}); err != ErrConnClosed {
		t.Fatalf("expected ErrConnClosed, got %v", err)
	}
}
