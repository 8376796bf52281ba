package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// Typing relays a typing indicator to every connection that joined the room,
// except connections of the typing user.
func (f *Fanout) Typing(ctx context.Context, roomID, userID int64, isTyping bool) {
	ev := &Event{Kind: EventTyping, RoomID: roomID, UserID: userID, IsTyping: isTyping}
	for _, c := range f.registry.LookupRoom(roomID) {
		if id, _ := c.UserID(); id == userID {
			continue
		}
		f.push(ctx, c, ev)
	}
}

// ForwardCall hands an opaque signal to the target user's connection.
func (f *Fanout) ForwardCall(ctx context.Context, fromUserID, targetUserID int64, signal json.RawMessage) error {
	c := f.registry.LookupUser(targetUserID)
	if c == nil {
		return fmt.Errorf("%w: user %d is not connected", ErrNotFound, targetUserID)
	}
	ev := &Event{Kind: EventCall, FromUserID: fromUserID, TargetUserID: targetUserID, Signal: signal}
	if !f.push(ctx, c, ev) {
		return fmt.Errorf("%w: user %d is not connected", ErrNotFound, targetUserID)
	}
	return nil
}

// NotifyMessageRead tells the sender of msg that readerID read it.
func (f *Fanout) NotifyMessageRead(ctx context.Context, msg *store.Message, readerID int64) {
	c := f.registry.LookupUser(msg.SenderID)
	if c == nil {
		return
	}
	ev := &Event{Kind: EventMessageRead, MessageID: msg.ID, UserID: readerID, Status: store.MessageStatusRead}
	if msg.RoomID != nil {
		ev.RoomID = *msg.RoomID
	}
	f.push(ctx, c, ev)
}

// NotifyChatRead tells peerID that readerID read the listed direct messages.
func (f *Fanout) NotifyChatRead(ctx context.Context, peerID, readerID int64, ids []int64) {
	c := f.registry.LookupUser(peerID)
	if c == nil {
		return
	}
	f.push(ctx, c, &Event{Kind: EventChatMessagesRead, UserID: readerID, MessageIDs: ids, Status: store.MessageStatusRead})
}

// Announce tells subscribed connections of userID's friends that the user
// went online or offline.
func (f *Fanout) Announce(ctx context.Context, userID int64, online bool) {
	if f.friends == nil {
		return
	}
	ids, err := f.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		f.log.Error().Err(err).Int64("user_id", userID).Msg("failed to list friends for presence")
		return
	}
	ev := &Event{Kind: EventPresence, UserID: userID, Online: online}
	for _, friendID := range ids {
		c := f.registry.LookupUser(friendID)
		if c == nil || !c.Subscribed() {
			continue
		}
		f.push(ctx, c, ev)
	}
}

// PresenceSnapshot pushes one online event per currently connected friend of userID to c.
func (f *Fanout) PresenceSnapshot(ctx context.Context, c *Conn, userID int64) error {
	if f.friends == nil {
		return nil
	}
	ids, err := f.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("list friends: %w", err)
	}
	for _, friendID := range ids {
		if f.registry.LookupUser(friendID) == nil {
			continue
		}
		if !f.push(ctx, c, &Event{Kind: EventPresence, UserID: friendID, Online: true}) {
			return nil
		}
	}
	return nil
}
