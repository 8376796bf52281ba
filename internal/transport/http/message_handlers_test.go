package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/studyhub-server/internal/proto"
)

func TestRESTRoomMessageReachesWebSocket(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceToken, alice := ts.register(t, "alice")
	bobToken, bob := ts.register(t, "bob")

	var room RoomResponse
	ts.doJSON(t, http.MethodPost, "/api/rooms", aliceToken, map[string]string{"name": "literature"}, &room)
	ts.doJSON(t, http.MethodPost, "/api/rooms/"+itoa(room.ID)+"/members", aliceToken, map[string]int64{"user_id": bob}, nil)

	bobConn := ts.connect(ctx, t, bob, "")

	var sent proto.Message
	status := ts.doJSON(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{
		"content": "chapter 3 notes are up",
		"roomId":  room.ID,
	}, &sent)
	if status != http.StatusCreated {
		t.Fatalf("send message: status %d", status)
	}
	if sent.ID == 0 || sent.SenderID != alice || sent.Status != "sent" {
		t.Fatalf("unexpected response: %+v", sent)
	}

	got := mustRead(ctx, t, bobConn, "new_message")
	if got.Data == nil || got.Data.ID != sent.ID {
		t.Fatalf("websocket got %+v, want message %d", got.Data, sent.ID)
	}

	var history []proto.Message
	if status := ts.doJSON(t, http.MethodGet, "/api/rooms/"+itoa(room.ID)+"/messages", bobToken, nil, &history); status != http.StatusOK {
		t.Fatalf("room history: status %d", status)
	}
	if len(history) != 1 || history[0].Content != "chapter 3 notes are up" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRESTMessageValidation(t *testing.T) {
	ts := startTestServer(t, nil)
	aliceToken, _ := ts.register(t, "alice")
	bobToken, bob := ts.register(t, "bob")

	var room RoomResponse
	ts.doJSON(t, http.MethodPost, "/api/rooms", aliceToken, map[string]string{"name": "art"}, &room)

	cases := []struct {
		name   string
		token  string
		body   map[string]any
		status int
	}{
		{"empty content", aliceToken, map[string]any{"content": "  ", "roomId": room.ID}, http.StatusBadRequest},
		{"both targets", aliceToken, map[string]any{"content": "x", "roomId": room.ID, "recipientId": bob}, http.StatusBadRequest},
		{"not a member", bobToken, map[string]any{"content": "x", "roomId": room.ID}, http.StatusForbidden},
		{"unknown recipient", aliceToken, map[string]any{"content": "x", "recipientId": 9999}, http.StatusNotFound},
		{"unknown type", aliceToken, map[string]any{"content": "x", "roomId": room.ID, "messageType": "sticker"}, http.StatusBadRequest},
		{"unknown file", aliceToken, map[string]any{"content": "x", "roomId": room.ID, "fileId": 999}, http.StatusNotFound},
		{"unknown reply", aliceToken, map[string]any{"content": "x", "roomId": room.ID, "replyToId": 999}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp ErrorResponse
			if status := ts.doJSON(t, http.MethodPost, "/api/messages", tc.token, tc.body, &resp); status != tc.status {
				t.Fatalf("status = %d, want %d (%s)", status, tc.status, resp.Error)
			}
		})
	}

	var history []proto.Message
	ts.doJSON(t, http.MethodGet, "/api/rooms/"+itoa(room.ID)+"/messages", aliceToken, nil, &history)
	if len(history) != 0 {
		t.Fatalf("rejected messages were persisted: %+v", history)
	}
}

func TestRESTChatMessageAndReadReceipts(t *testing.T) {
	ts := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	aliceToken, alice := ts.register(t, "alice")
	bobToken, bob := ts.register(t, "bob")

	aliceConn := ts.connect(ctx, t, alice, "")

	// Bob is offline, so the message stays sent.
	var first, second proto.Message
	ts.doJSON(t, http.MethodPost, "/api/chats/"+itoa(bob)+"/messages", aliceToken, map[string]any{"content": "one"}, &first)
	ts.doJSON(t, http.MethodPost, "/api/chats/"+itoa(bob)+"/messages", aliceToken, map[string]any{"content": "two"}, &second)
	if first.Status != "sent" || first.RecipientID == nil || *first.RecipientID != bob {
		t.Fatalf("unexpected first message: %+v", first)
	}

	var readResp struct {
		Success bool `json:"success"`
		Changed bool `json:"changed"`
	}
	if status := ts.doJSON(t, http.MethodPost, "/api/messages/"+itoa(first.ID)+"/read", bobToken, nil, &readResp); status != http.StatusOK {
		t.Fatalf("mark read: status %d", status)
	}
	if !readResp.Success || !readResp.Changed {
		t.Fatalf("unexpected mark read response: %+v", readResp)
	}
	ev := mustRead(ctx, t, aliceConn, "message_read")
	if ev.MessageID != first.ID || ev.UserID != bob {
		t.Fatalf("unexpected message_read: %+v", ev)
	}

	// Marking again is a no-op.
	ts.doJSON(t, http.MethodPost, "/api/messages/"+itoa(first.ID)+"/read", bobToken, nil, &readResp)
	if readResp.Changed {
		t.Fatal("second mark read reported a change")
	}

	var chatResp struct {
		Success    bool    `json:"success"`
		MessageIDs []int64 `json:"messageIds"`
	}
	if status := ts.doJSON(t, http.MethodPost, "/api/chats/"+itoa(alice)+"/read", bobToken, nil, &chatResp); status != http.StatusOK {
		t.Fatalf("mark chat read: status %d", status)
	}
	if len(chatResp.MessageIDs) != 1 || chatResp.MessageIDs[0] != second.ID {
		t.Fatalf("unexpected chat read ids: %+v", chatResp.MessageIDs)
	}
	ev = mustRead(ctx, t, aliceConn, "chat_messages_read")
	if ev.UserID != bob || len(ev.MessageIDs) != 1 || ev.MessageIDs[0] != second.ID {
		t.Fatalf("unexpected chat_messages_read: %+v", ev)
	}

	var history []proto.Message
	ts.doJSON(t, http.MethodGet, "/api/messages/direct/"+itoa(alice), bobToken, nil, &history)
	if len(history) != 2 || history[0].ID != first.ID || history[1].Status != "read" {
		t.Fatalf("unexpected direct history: %+v", history)
	}
}

func TestMarkReadBySenderForbidden(t *testing.T) {
	ts := startTestServer(t, nil)
	aliceToken, _ := ts.register(t, "alice")
	_, bob := ts.register(t, "bob")

	var msg proto.Message
	ts.doJSON(t, http.MethodPost, "/api/messages", aliceToken, map[string]any{"content": "hey", "recipientId": bob}, &msg)

	if status := ts.doJSON(t, http.MethodPost, "/api/messages/"+itoa(msg.ID)+"/read", aliceToken, nil, nil); status != http.StatusForbidden {
		t.Fatalf("sender marking read: status %d", status)
	}
	if status := ts.doJSON(t, http.MethodPost, "/api/messages/9999/read", aliceToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown message: status %d", status)
	}
}
