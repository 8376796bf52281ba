package core

import (
	"encoding/json"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventAuthenticated confirms that the connection is bound to a user.
	EventAuthenticated EventKind = iota
	// EventJoinedRoom confirms a room subscription on this connection.
	EventJoinedRoom
	// EventNewMessage delivers a persisted message.
	EventNewMessage
	// EventMessageSent acknowledges a message to the connection that sent it.
	EventMessageSent
	// EventMessageStatus tells the sender that a message status advanced.
	EventMessageStatus
	// EventTyping relays a typing indicator.
	EventTyping
	// EventMessageRead tells the sender that a message was read.
	EventMessageRead
	// EventChatMessagesRead tells a user that a peer read their direct messages.
	EventChatMessagesRead
	// EventCall forwards an opaque call signal.
	EventCall
	// EventPresence tells a subscribed connection that a friend went online or offline.
	EventPresence
	// EventError notifies the connection about a rejected command.
	EventError
)

var eventNames = [...]string{
	EventAuthenticated:    "authenticated",
	EventJoinedRoom:       "joined_room",
	EventNewMessage:       "new_message",
	EventMessageSent:      "message_sent",
	EventMessageStatus:    "update_message_status",
	EventTyping:           "typing",
	EventMessageRead:      "message_read",
	EventChatMessagesRead: "chat_messages_read",
	EventCall:             "call",
	EventPresence:         "presence",
	EventError:            "error",
}

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	if int(k) < 0 || int(k) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[k]
}

// Event is pushed to connections to describe what happened in the system.
// Events are shared between recipients and must not be mutated after Send.
type Event struct {
	Kind EventKind

	UserID     int64 // subject user: authenticated, typing, reader, presence
	RoomID     int64
	IsTyping   bool
	Online     bool
	Message    *store.Message // new_message, message_sent
	MessageID  int64
	MessageIDs []int64
	Status     store.MessageStatus

	FromUserID   int64
	TargetUserID int64
	Signal       json.RawMessage

	Error *CoreError
}

func errorEvent(ce *CoreError) *Event {
	return &Event{Kind: EventError, Error: ce}
}
