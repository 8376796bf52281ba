package core

import (
	"encoding/json"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAuthenticate binds the connection to a user.
	CommandAuthenticate CommandKind = iota
	// CommandJoinRoom subscribes the connection to a room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the connection from a room.
	CommandLeaveRoom
	// CommandSendMessage persists and fans out a message.
	CommandSendMessage
	// CommandTyping broadcasts a typing indicator to a room.
	CommandTyping
	// CommandCall forwards a call signal to another user.
	CommandCall
	// CommandSubscribeStatus subscribes the connection to friends' presence.
	CommandSubscribeStatus
	// CommandMarkRead marks a single message as read.
	CommandMarkRead
	// CommandMarkChatRead marks a whole direct conversation as read.
	CommandMarkChatRead
)

// Command represents an action requested by a connection.
type Command struct {
	Kind CommandKind

	UserID   int64 // authenticate, typing; peer for mark chat read
	Token    string
	RoomID   int64
	IsTyping bool

	SenderID int64 // optional claimed sender on messages
	Draft    Draft

	MessageID    int64
	TargetUserID int64
	Signal       json.RawMessage
}

// Draft is a message before persistence. Exactly one of RoomID and
// RecipientID must be set.
type Draft struct {
	Content     string
	RoomID      *int64
	RecipientID *int64
	Type        store.MessageType
	FileID      *int64
	ReplyToID   *int64
}
