package http

import (
	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/proto"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// inboundToCommand maps a client frame to a core command. Field validation
// beyond the frame type is left to the hub.
func inboundToCommand(inbound *proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeAuthenticate:
		return &core.Command{
			Kind:   core.CommandAuthenticate,
			UserID: inbound.UserID,
			Token:  inbound.Token,
		}, nil
	case proto.InboundTypeJoinRoom:
		return &core.Command{Kind: core.CommandJoinRoom, RoomID: deref(inbound.RoomID)}, nil
	case proto.InboundTypeLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom, RoomID: deref(inbound.RoomID)}, nil
	case proto.InboundTypeMessage:
		return &core.Command{
			Kind:     core.CommandSendMessage,
			SenderID: inbound.SenderID,
			Draft: core.Draft{
				Content:     inbound.Content,
				RoomID:      inbound.RoomID,
				RecipientID: inbound.RecipientID,
				Type:        store.MessageType(inbound.MessageType),
				FileID:      inbound.FileID,
				ReplyToID:   inbound.ReplyToID,
			},
		}, nil
	case proto.InboundTypeTyping:
		return &core.Command{
			Kind:     core.CommandTyping,
			UserID:   inbound.UserID,
			RoomID:   deref(inbound.RoomID),
			IsTyping: inbound.IsTyping,
		}, nil
	case proto.InboundTypeCall:
		return &core.Command{
			Kind:         core.CommandCall,
			TargetUserID: inbound.TargetUserID,
			Signal:       inbound.Signal,
		}, nil
	case proto.InboundTypeSubscribeStatus:
		return &core.Command{Kind: core.CommandSubscribeStatus}, nil
	case proto.InboundTypeMarkRead:
		return &core.Command{Kind: core.CommandMarkRead, MessageID: inbound.MessageID}, nil
	case proto.InboundTypeMarkChatRead:
		return &core.Command{Kind: core.CommandMarkChatRead, UserID: inbound.UserID}, nil
	case "":
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "type is required"}
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: event.Kind.String()}

	switch event.Kind {
	case core.EventAuthenticated:
		out.UserID = event.UserID
	case core.EventJoinedRoom:
		out.RoomID = event.RoomID
		out.UserID = event.UserID
	case core.EventNewMessage, core.EventMessageSent:
		out.Data = messageToProto(event.Message)
	case core.EventMessageStatus:
		out.MessageID = event.MessageID
		out.UserID = event.UserID
		out.Status = string(event.Status)
	case core.EventTyping:
		isTyping := event.IsTyping
		out.UserID = event.UserID
		out.RoomID = event.RoomID
		out.IsTyping = &isTyping
	case core.EventMessageRead:
		out.MessageID = event.MessageID
		out.UserID = event.UserID
		out.RoomID = event.RoomID
		out.Status = string(event.Status)
	case core.EventChatMessagesRead:
		out.UserID = event.UserID
		out.MessageIDs = event.MessageIDs
		out.Status = string(event.Status)
	case core.EventCall:
		out.FromUserID = event.FromUserID
		out.TargetUserID = event.TargetUserID
		out.Signal = event.Signal
	case core.EventPresence:
		online := event.Online
		out.UserID = event.UserID
		out.Online = &online
	case core.EventError:
		if event.Error == nil {
			out.Error = &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"}
			break
		}
		out.Error = &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}
	}
	return out
}

func messageToProto(m *store.Message) *proto.Message {
	if m == nil {
		return nil
	}
	return &proto.Message{
		ID:          m.ID,
		Content:     m.Content,
		SenderID:    m.SenderID,
		RoomID:      m.RoomID,
		RecipientID: m.RecipientID,
		MessageType: string(m.Type),
		FileID:      m.FileID,
		ReplyToID:   m.ReplyToID,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
	}
}

func messagesToProto(msgs []*store.Message) []*proto.Message {
	out := make([]*proto.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageToProto(m))
	}
	return out
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
