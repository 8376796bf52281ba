package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

func direct(from, to int64, content string) *store.Message {
	return &store.Message{SenderID: from, RecipientID: &to, Content: content}
}

func TestCreateMessageAddressing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	room, err := s.CreateRoom(ctx, "Algebra", "", alice.ID)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	msg := direct(alice.ID, bob.ID, "hi")
	if err := s.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	if msg.ID == 0 || msg.Status != store.MessageStatusSent || msg.Type != store.MessageTypeText {
		t.Fatalf("unexpected message after insert: %+v", msg)
	}

	both := &store.Message{SenderID: alice.ID, RoomID: &room.ID, RecipientID: &bob.ID, Content: "x"}
	if err := s.CreateMessage(ctx, both); err == nil {
		t.Fatal("expected error when both room and recipient are set")
	}
	neither := &store.Message{SenderID: alice.ID, Content: "x"}
	if err := s.CreateMessage(ctx, neither); err == nil {
		t.Fatal("expected error when neither room nor recipient is set")
	}

	got, err := s.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if !got.IsDirect() || *got.RecipientID != bob.ID || got.RoomID != nil {
		t.Fatalf("unexpected stored message: %+v", got)
	}

	if _, err := s.GetMessage(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	msg := direct(alice.ID, bob.ID, "hello")
	if err := s.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	changed, err := s.MarkDelivered(ctx, msg.ID)
	if err != nil || !changed {
		t.Fatalf("first MarkDelivered: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkDelivered(ctx, msg.ID)
	if err != nil || changed {
		t.Fatalf("second MarkDelivered must not change: changed=%v err=%v", changed, err)
	}

	changed, err = s.MarkRead(ctx, msg.ID)
	if err != nil || !changed {
		t.Fatalf("first MarkRead: changed=%v err=%v", changed, err)
	}
	changed, err = s.MarkRead(ctx, msg.ID)
	if err != nil || changed {
		t.Fatalf("second MarkRead must not change: changed=%v err=%v", changed, err)
	}

	// Status never moves backward.
	changed, err = s.MarkDelivered(ctx, msg.ID)
	if err != nil || changed {
		t.Fatalf("MarkDelivered after read must not change: changed=%v err=%v", changed, err)
	}

	got, err := s.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Status != store.MessageStatusRead || got.ReadAt == nil || got.DeliveredAt == nil {
		t.Fatalf("unexpected final state: %+v", got)
	}
}

func TestMarkChatRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	var fromBob []int64
	for _, text := range []string{"one", "two", "three"} {
		m := direct(bob.ID, alice.ID, text)
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
		fromBob = append(fromBob, m.ID)
	}
	own := direct(alice.ID, bob.ID, "mine")
	if err := s.CreateMessage(ctx, own); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	ids, err := s.MarkChatRead(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkChatRead failed: %v", err)
	}
	if len(ids) != len(fromBob) {
		t.Fatalf("expected %d ids, got %v", len(fromBob), ids)
	}
	for i := range ids {
		if ids[i] != fromBob[i] {
			t.Fatalf("expected ids %v, got %v", fromBob, ids)
		}
	}

	ids, err = s.MarkChatRead(ctx, alice.ID, bob.ID)
	if err != nil || len(ids) != 0 {
		t.Fatalf("second MarkChatRead should be empty: %v %v", ids, err)
	}

	got, err := s.GetMessage(ctx, own.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Status != store.MessageStatusSent {
		t.Fatalf("reader's own message must stay sent, got %s", got.Status)
	}
}

func TestListMessagesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")
	room, err := s.CreateRoom(ctx, "Chem", "", alice.ID)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	for _, text := range []string{"a", "b", "c", "d"} {
		m := &store.Message{SenderID: alice.ID, RoomID: &room.ID, Content: text}
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	msgs, err := s.ListRoomMessages(ctx, room.ID, 3, 0)
	if err != nil {
		t.Fatalf("ListRoomMessages failed: %v", err)
	}
	want := []string{"b", "c", "d"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], m.Content)
		}
	}

	for _, m := range []*store.Message{
		direct(alice.ID, bob.ID, "1"),
		direct(bob.ID, alice.ID, "2"),
		direct(alice.ID, carol.ID, "other"),
	} {
		if err := s.CreateMessage(ctx, m); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}
	dms, err := s.ListDirectMessages(ctx, bob.ID, alice.ID, 50, 0)
	if err != nil {
		t.Fatalf("ListDirectMessages failed: %v", err)
	}
	if len(dms) != 2 || dms[0].Content != "1" || dms[1].Content != "2" {
		t.Fatalf("unexpected direct history: %+v", dms)
	}
}

func TestFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	room, err := s.CreateRoom(ctx, "Bio", "", alice.ID)
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	subject, err := s.CreateSubject(ctx, room.ID, "Genetics")
	if err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}

	f := &store.File{
		OriginalName: "notes.pdf",
		FileName:     uuid.NewString() + ".pdf",
		FileType:     "application/pdf",
		FileSize:     1024,
		FilePath:     "uploads/notes.pdf",
		UploaderID:   alice.ID,
		RoomID:       &room.ID,
		SubjectID:    &subject.ID,
	}
	if err := s.CreateFile(ctx, f); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	files, err := s.ListRoomFiles(ctx, room.ID, &subject.ID, nil)
	if err != nil || len(files) != 1 {
		t.Fatalf("ListRoomFiles: %v, %d", err, len(files))
	}

	found, err := s.SearchFiles(ctx, "notes", bob.ID)
	if err != nil {
		t.Fatalf("SearchFiles failed: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("non-member should not see room files, got %d", len(found))
	}
	found, err = s.SearchFiles(ctx, "notes", alice.ID)
	if err != nil || len(found) != 1 {
		t.Fatalf("SearchFiles for uploader: %v, %d", err, len(found))
	}

	if err := s.DeleteFile(ctx, f.ID, bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("non-owner delete should be ErrNotFound, got %v", err)
	}
	if err := s.DeleteFile(ctx, f.ID, alice.ID); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := s.GetFile(ctx, f.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted file should be ErrNotFound, got %v", err)
	}
}

func TestCallsAndStatuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")

	call := &store.Call{ID: uuid.NewString(), CallerID: alice.ID, CalleeID: &bob.ID, Type: store.CallTypeVideo}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if err := s.UpdateCallStatus(ctx, call.ID, store.CallStatusActive); err != nil {
		t.Fatalf("UpdateCallStatus active failed: %v", err)
	}
	if err := s.UpdateCallStatus(ctx, call.ID, store.CallStatusEnded); err != nil {
		t.Fatalf("UpdateCallStatus ended failed: %v", err)
	}
	got, err := s.GetCall(ctx, call.ID)
	if err != nil {
		t.Fatalf("GetCall failed: %v", err)
	}
	if got.Status != store.CallStatusEnded || got.StartedAt == nil || got.EndedAt == nil {
		t.Fatalf("unexpected call: %+v", got)
	}
	if err := s.UpdateCallStatus(ctx, "missing", store.CallStatusEnded); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	calls, err := s.ListUserCalls(ctx, bob.ID)
	if err != nil || len(calls) != 1 {
		t.Fatalf("ListUserCalls: %v, %d", err, len(calls))
	}

	if _, err := s.CreateStatus(ctx, alice.ID, "passed the exam", ""); err != nil {
		t.Fatalf("CreateStatus failed: %v", err)
	}
	posts, err := s.ListStatusesByUsers(ctx, []int64{alice.ID, bob.ID}, 10)
	if err != nil {
		t.Fatalf("ListStatusesByUsers failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Type != "achievement" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
}
