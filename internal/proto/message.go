package proto

import (
	"encoding/json"
	"time"
)

// Inbound is a flat client frame; Type selects which of the other fields apply.
type Inbound struct {
	Type string `json:"type"`

	UserID       int64           `json:"userId,omitempty"`
	Token        string          `json:"token,omitempty"`
	RoomID       *int64          `json:"roomId,omitempty"`
	Content      string          `json:"content,omitempty"`
	SenderID     int64           `json:"senderId,omitempty"`
	RecipientID  *int64          `json:"recipientId,omitempty"`
	MessageType  string          `json:"messageType,omitempty"`
	FileID       *int64          `json:"fileId,omitempty"`
	ReplyToID    *int64          `json:"replyToId,omitempty"`
	IsTyping     bool            `json:"isTyping,omitempty"`
	TargetUserID int64           `json:"targetUserId,omitempty"`
	Signal       json.RawMessage `json:"signal,omitempty"`
	MessageID    int64           `json:"messageId,omitempty"`
}

const (
	InboundTypeAuthenticate    = "authenticate"
	InboundTypeJoinRoom        = "join_room"
	InboundTypeLeaveRoom       = "leave_room"
	InboundTypeMessage         = "message"
	InboundTypeTyping          = "typing"
	InboundTypeCall            = "call"
	InboundTypeSubscribeStatus = "subscribe_status_updates"
	InboundTypeMarkRead        = "mark_read"
	InboundTypeMarkChatRead    = "mark_chat_read"

	OutboundTypeError = "error"
)

// Outbound is a flat server frame. Type carries the event name.
type Outbound struct {
	Type string `json:"type"`

	UserID       int64           `json:"userId,omitempty"`
	RoomID       int64           `json:"roomId,omitempty"`
	IsTyping     *bool           `json:"isTyping,omitempty"`
	Online       *bool           `json:"online,omitempty"`
	Data         *Message        `json:"data,omitempty"`
	MessageID    int64           `json:"messageId,omitempty"`
	MessageIDs   []int64         `json:"messageIds,omitempty"`
	Status       string          `json:"status,omitempty"`
	FromUserID   int64           `json:"fromUserId,omitempty"`
	TargetUserID int64           `json:"targetUserId,omitempty"`
	Signal       json.RawMessage `json:"signal,omitempty"`
	Error        *Error          `json:"error,omitempty"`
}

// Message is the wire form of a persisted message, shared by WebSocket
// events and REST responses.
type Message struct {
	ID          int64      `json:"id"`
	Content     string     `json:"content"`
	SenderID    int64      `json:"senderId"`
	RoomID      *int64     `json:"roomId,omitempty"`
	RecipientID *int64     `json:"recipientId,omitempty"`
	MessageType string     `json:"messageType"`
	FileID      *int64     `json:"fileId,omitempty"`
	ReplyToID   *int64     `json:"replyToId,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
