package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent asserts that nothing of the given kind is queued on ch.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

// fakeGateway is an in-memory persistence gateway.
type fakeGateway struct {
	mu        sync.Mutex
	members   map[int64][]int64
	friends   map[int64][]int64
	messages  map[int64]*store.Message
	nextID    int64
	listCalls int
	failList  bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		members:  make(map[int64][]int64),
		friends:  make(map[int64][]int64),
		messages: make(map[int64]*store.Message),
	}
}

func (g *fakeGateway) ListMembers(_ context.Context, roomID int64) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	if g.failList {
		return nil, errors.New("db down")
	}
	return append([]int64(nil), g.members[roomID]...), nil
}

func (g *fakeGateway) ListFriendIDs(_ context.Context, userID int64) ([]int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.friends[userID]...), nil
}

func (g *fakeGateway) MarkDelivered(_ context.Context, id int64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.messages[id]
	if !ok || m.Status != store.MessageStatusSent {
		return false, nil
	}
	m.Status = store.MessageStatusDelivered
	return true, nil
}

func (g *fakeGateway) status(id int64) store.MessageStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.messages[id].Status
}

func (g *fakeGateway) befriend(a, b int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.friends[a] = append(g.friends[a], b)
	g.friends[b] = append(g.friends[b], a)
}

// fakeMessages is a minimal MessageService: persist in the gateway, then deliver.
type fakeMessages struct {
	gw     *fakeGateway
	fanout *Fanout
	fail   bool
}

func (m *fakeMessages) Send(ctx context.Context, senderID int64, d Draft) (*store.Message, error) {
	if d.Content == "" {
		return nil, ErrInvalidMessage
	}
	if d.RoomID != nil {
		ok, err := m.fanout.Members().IsMember(ctx, *d.RoomID, senderID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	if m.fail {
		return nil, errors.New("disk full")
	}

	m.gw.mu.Lock()
	m.gw.nextID++
	msg := &store.Message{
		ID:          m.gw.nextID,
		Content:     d.Content,
		SenderID:    senderID,
		RoomID:      d.RoomID,
		RecipientID: d.RecipientID,
		Type:        store.MessageTypeText,
		Status:      store.MessageStatusSent,
	}
	stored := *msg
	m.gw.messages[msg.ID] = &stored
	m.gw.mu.Unlock()

	if err := m.fanout.Deliver(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *fakeMessages) MarkRead(ctx context.Context, readerID, messageID int64) (bool, error) {
	m.gw.mu.Lock()
	msg, ok := m.gw.messages[messageID]
	if !ok {
		m.gw.mu.Unlock()
		return false, ErrNotFound
	}
	changed := msg.Status != store.MessageStatusRead
	msg.Status = store.MessageStatusRead
	snapshot := *msg
	m.gw.mu.Unlock()

	if changed {
		m.fanout.NotifyMessageRead(ctx, &snapshot, readerID)
	}
	return changed, nil
}

func (m *fakeMessages) MarkChatRead(ctx context.Context, readerID, peerID int64) ([]int64, error) {
	m.gw.mu.Lock()
	var ids []int64
	for id, msg := range m.gw.messages {
		if msg.SenderID == peerID && msg.RecipientID != nil && *msg.RecipientID == readerID &&
			msg.Status != store.MessageStatusRead {
			msg.Status = store.MessageStatusRead
			ids = append(ids, id)
		}
	}
	m.gw.mu.Unlock()

	if len(ids) > 0 {
		m.fanout.NotifyChatRead(ctx, peerID, readerID, ids)
	}
	return ids, nil
}

type testEnv struct {
	gw       *fakeGateway
	registry *Registry
	fanout   *Fanout
	hub      *Hub
	messages *fakeMessages
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gw := newFakeGateway()
	reg := NewRegistry()
	fan := NewFanout(reg, NewMemberCache(gw, time.Minute), gw, gw, nil)
	msgs := &fakeMessages{gw: gw, fanout: fan}
	return &testEnv{
		gw:       gw,
		registry: reg,
		fanout:   fan,
		hub:      NewHub(fan, msgs, nil, nil),
		messages: msgs,
	}
}

// connect creates a connection and authenticates it as userID.
func (e *testEnv) connect(t *testing.T, userID int64) *Conn {
	t.Helper()
	c := NewConn(32)
	e.hub.Handle(context.Background(), c, &Command{Kind: CommandAuthenticate, UserID: userID})
	ev := mustEvent(t, c.Events(), EventAuthenticated)
	if ev.UserID != userID {
		t.Fatalf("authenticated as %d, want %d", ev.UserID, userID)
	}
	return c
}

func int64p(v int64) *int64 { return &v }
