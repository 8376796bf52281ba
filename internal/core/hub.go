package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Hub interprets commands from connections. Each connection's commands are
// handled sequentially by the goroutine that reads it; different
// connections are handled concurrently and share only the Registry.
type Hub struct {
	registry *Registry
	fanout   *Fanout
	members  *MemberCache
	messages MessageService
	tokens   TokenVerifier
	log      *zerolog.Logger
}

// NewHub creates a hub. When tokens is non-nil, authenticate requires a
// token that resolves to the claimed user id.
func NewHub(fanout *Fanout, messages MessageService, tokens TokenVerifier, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry: fanout.Registry(),
		fanout:   fanout,
		members:  fanout.Members(),
		messages: messages,
		tokens:   tokens,
		log:      logger,
	}
}

// Registry returns the connection registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Disconnect removes c from the registry and closes it. Called once when the
// socket ends; safe if the fanout already dropped c.
func (h *Hub) Disconnect(ctx context.Context, c *Conn) {
	userID, _ := c.UserID()
	h.fanout.Drop(ctx, c)
	h.log.Info().Str("conn_id", c.ID).Int64("user_id", userID).Msg("connection closed")
}

// Handle executes one command on behalf of c. Rejections are reported to c
// as error events and never change registry state.
func (h *Hub) Handle(ctx context.Context, c *Conn, cmd *Command) {
	if c.Closed() {
		return
	}

	if cmd.Kind == CommandAuthenticate {
		h.handleAuthenticate(ctx, c, cmd)
		return
	}

	userID, ok := c.UserID()
	if !ok {
		h.reject(ctx, c, coreError(ErrCodeUnauthorized, "authenticate first"))
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoinRoom(ctx, c, userID, cmd.RoomID)
	case CommandLeaveRoom:
		if cmd.RoomID <= 0 {
			h.reject(ctx, c, coreError(ErrCodeBadRequest, "roomId is required"))
			return
		}
		h.registry.LeaveRoom(cmd.RoomID, c)
	case CommandSendMessage:
		h.handleSendMessage(ctx, c, userID, cmd)
	case CommandTyping:
		h.handleTyping(ctx, c, userID, cmd)
	case CommandCall:
		if cmd.TargetUserID <= 0 {
			h.reject(ctx, c, coreError(ErrCodeBadRequest, "targetUserId is required"))
			return
		}
		if err := h.fanout.ForwardCall(ctx, userID, cmd.TargetUserID, cmd.Signal); err != nil {
			h.fail(ctx, c, err)
		}
	case CommandSubscribeStatus:
		c.setSubscribed()
		if err := h.fanout.PresenceSnapshot(ctx, c, userID); err != nil {
			h.fail(ctx, c, err)
		}
	case CommandMarkRead:
		if cmd.MessageID <= 0 {
			h.reject(ctx, c, coreError(ErrCodeBadRequest, "messageId is required"))
			return
		}
		if _, err := h.messages.MarkRead(ctx, userID, cmd.MessageID); err != nil {
			h.fail(ctx, c, err)
		}
	case CommandMarkChatRead:
		if cmd.UserID <= 0 {
			h.reject(ctx, c, coreError(ErrCodeBadRequest, "userId is required"))
			return
		}
		if _, err := h.messages.MarkChatRead(ctx, userID, cmd.UserID); err != nil {
			h.fail(ctx, c, err)
		}
	default:
		h.reject(ctx, c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) handleAuthenticate(ctx context.Context, c *Conn, cmd *Command) {
	if cmd.UserID <= 0 {
		h.reject(ctx, c, coreError(ErrCodeBadRequest, "userId is required"))
		return
	}
	if h.tokens != nil {
		tokenUser, err := h.tokens.VerifyUserToken(cmd.Token)
		if err != nil || tokenUser != cmd.UserID {
			h.reject(ctx, c, coreError(ErrCodeUnauthorized, "invalid token"))
			return
		}
	}

	wasOnline := h.registry.LookupUser(cmd.UserID) != nil
	replaced, ok := h.registry.Register(cmd.UserID, c)
	if !ok {
		h.reject(ctx, c, coreError(ErrCodeBadRequest, "connection is already authenticated as another user"))
		return
	}
	if replaced != nil {
		h.log.Info().Int64("user_id", cmd.UserID).Str("conn_id", c.ID).
			Str("replaced_conn_id", replaced.ID).Msg("connection replaced")
	}
	h.log.Info().Int64("user_id", cmd.UserID).Str("conn_id", c.ID).Msg("connection authenticated")

	h.fanout.push(ctx, c, &Event{Kind: EventAuthenticated, UserID: cmd.UserID})
	if !wasOnline {
		h.fanout.Announce(ctx, cmd.UserID, true)
	}
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *Conn, userID, roomID int64) {
	if roomID <= 0 {
		h.reject(ctx, c, coreError(ErrCodeBadRequest, "roomId is required"))
		return
	}
	member, err := h.members.IsMember(ctx, roomID, userID)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	if !member {
		h.reject(ctx, c, coreError(ErrCodeForbidden, "not a member of this room"))
		return
	}
	h.registry.JoinRoom(roomID, c)
	h.fanout.push(ctx, c, &Event{Kind: EventJoinedRoom, RoomID: roomID, UserID: userID})
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Conn, userID int64, cmd *Command) {
	if cmd.SenderID != 0 && cmd.SenderID != userID {
		h.reject(ctx, c, coreError(ErrCodeForbidden, "senderId does not match the authenticated user"))
		return
	}
	msg, err := h.messages.Send(ctx, userID, cmd.Draft)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	ack := *msg
	h.fanout.push(ctx, c, &Event{Kind: EventMessageSent, Message: &ack})
}

func (h *Hub) handleTyping(ctx context.Context, c *Conn, userID int64, cmd *Command) {
	if cmd.RoomID <= 0 {
		h.reject(ctx, c, coreError(ErrCodeBadRequest, "roomId is required"))
		return
	}
	if cmd.UserID != 0 && cmd.UserID != userID {
		h.reject(ctx, c, coreError(ErrCodeForbidden, "userId does not match the authenticated user"))
		return
	}
	if !h.registry.InRoom(cmd.RoomID, c) {
		h.reject(ctx, c, coreError(ErrCodeNotInRoom, "join the room first"))
		return
	}
	h.fanout.Typing(ctx, cmd.RoomID, userID, cmd.IsTyping)
}

// Reject reports a client error to c.
func (h *Hub) Reject(ctx context.Context, c *Conn, ce *CoreError) {
	h.reject(ctx, c, ce)
}

func (h *Hub) reject(ctx context.Context, c *Conn, ce *CoreError) {
	h.log.Debug().Str("conn_id", c.ID).Str("code", ce.Code).Msg(ce.Message)
	h.fanout.push(ctx, c, errorEvent(ce))
}

func (h *Hub) fail(ctx context.Context, c *Conn, err error) {
	ce := ToCoreError(err)
	if ce.Code == ErrCodeInternal && !errors.Is(err, context.Canceled) {
		h.log.Error().Err(err).Str("conn_id", c.ID).Msg("command failed")
	}
	h.reject(ctx, c, ce)
}
