package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

const (
	// DefaultHistoryLimit is used when a history request has no limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps history page size.
	MaxHistoryLimit = 200
	// MaxContentLength caps message content in bytes.
	MaxContentLength = 4000
)

// Store is the persistence the message service needs.
type Store interface {
	store.MessageStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	GetFile(ctx context.Context, id int64) (*store.File, error)
}

// Service persists messages and hands them to the fanout engine. It is the
// single path for both the WebSocket and REST entry points.
type Service struct {
	store  Store
	fanout *core.Fanout
	log    *zerolog.Logger
}

var _ core.MessageService = (*Service)(nil)

// New creates a message service.
func New(st Store, fanout *core.Fanout, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, fanout: fanout, log: logger}
}

// Send validates a draft, persists it and fans it out. Nothing is pushed
// unless the write succeeded. The returned message reflects a delivered
// status when the direct recipient was reachable.
func (s *Service) Send(ctx context.Context, senderID int64, d core.Draft) (*store.Message, error) {
	if err := s.validate(ctx, senderID, &d); err != nil {
		return nil, err
	}

	msg := &store.Message{
		Content:     d.Content,
		SenderID:    senderID,
		RoomID:      d.RoomID,
		RecipientID: d.RecipientID,
		Type:        d.Type,
		FileID:      d.FileID,
		ReplyToID:   d.ReplyToID,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	// The sender going away must not stop delivery to others.
	if err := s.fanout.Deliver(context.WithoutCancel(ctx), msg); err != nil {
		// The message is durable; live delivery is best-effort.
		s.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("fanout failed")
	}
	return msg, nil
}

func (s *Service) validate(ctx context.Context, senderID int64, d *core.Draft) error {
	d.Content = strings.TrimSpace(d.Content)
	if d.Type == "" {
		d.Type = store.MessageTypeText
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", core.ErrInvalidMessage, d.Type)
	}
	if d.Content == "" && d.FileID == nil {
		return fmt.Errorf("%w: content or file is required", core.ErrInvalidMessage)
	}
	if len(d.Content) > MaxContentLength {
		return fmt.Errorf("%w: content is too long", core.ErrInvalidMessage)
	}
	if (d.RoomID == nil) == (d.RecipientID == nil) {
		return fmt.Errorf("%w: exactly one of roomId and recipientId is required", core.ErrInvalidMessage)
	}

	if d.RoomID != nil {
		member, err := s.fanout.Members().IsMember(ctx, *d.RoomID, senderID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return fmt.Errorf("%w: not a member of room %d", core.ErrForbidden, *d.RoomID)
		}
	} else {
		if *d.RecipientID == senderID {
			return fmt.Errorf("%w: cannot message yourself", core.ErrInvalidMessage)
		}
		if _, err := s.store.GetUserByID(ctx, *d.RecipientID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: recipient %d", core.ErrNotFound, *d.RecipientID)
			}
			return fmt.Errorf("get recipient: %w", err)
		}
	}

	if err := s.checkFile(ctx, senderID, d); err != nil {
		return err
	}
	return s.checkReply(ctx, senderID, d)
}

// checkFile requires an attached file to live in the message's room, or to
// be the sender's own upload when it belongs to no room.
func (s *Service) checkFile(ctx context.Context, senderID int64, d *core.Draft) error {
	if d.FileID == nil {
		return nil
	}
	f, err := s.store.GetFile(ctx, *d.FileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: file %d", core.ErrNotFound, *d.FileID)
		}
		return fmt.Errorf("get file: %w", err)
	}
	if f.RoomID == nil {
		if f.UploaderID != senderID {
			return fmt.Errorf("%w: file %d", core.ErrNotFound, *d.FileID)
		}
		return nil
	}
	if d.RoomID == nil || *f.RoomID != *d.RoomID {
		return fmt.Errorf("%w: file %d belongs to another room", core.ErrForbidden, *d.FileID)
	}
	return nil
}

// checkReply requires the replied-to message to be in the same room or the
// same direct conversation.
func (s *Service) checkReply(ctx context.Context, senderID int64, d *core.Draft) error {
	if d.ReplyToID == nil {
		return nil
	}
	parent, err := s.store.GetMessage(ctx, *d.ReplyToID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: message %d", core.ErrNotFound, *d.ReplyToID)
		}
		return fmt.Errorf("get reply target: %w", err)
	}

	if d.RoomID != nil {
		if parent.RoomID == nil || *parent.RoomID != *d.RoomID {
			return fmt.Errorf("%w: reply target is outside room %d", core.ErrForbidden, *d.RoomID)
		}
		return nil
	}
	if !parent.IsDirect() || !sameConversation(parent, senderID, *d.RecipientID) {
		return fmt.Errorf("%w: reply target is outside this conversation", core.ErrForbidden)
	}
	return nil
}

func sameConversation(m *store.Message, a, b int64) bool {
	r := *m.RecipientID
	return (m.SenderID == a && r == b) || (m.SenderID == b && r == a)
}

// MarkRead marks one message read by readerID. Direct messages may only be
// marked by their recipient, room messages by a member other than the
// sender. The sender is notified once per transition.
func (s *Service) MarkRead(ctx context.Context, readerID, messageID int64) (bool, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("%w: message %d", core.ErrNotFound, messageID)
		}
		return false, fmt.Errorf("get message: %w", err)
	}

	if msg.IsDirect() {
		if *msg.RecipientID != readerID {
			return false, fmt.Errorf("%w: only the recipient can mark this message read", core.ErrForbidden)
		}
	} else {
		if msg.SenderID == readerID {
			return false, fmt.Errorf("%w: cannot mark your own message read", core.ErrForbidden)
		}
		member, err := s.fanout.Members().IsMember(ctx, *msg.RoomID, readerID)
		if err != nil {
			return false, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return false, fmt.Errorf("%w: not a member of room %d", core.ErrForbidden, *msg.RoomID)
		}
	}

	changed, err := s.store.MarkRead(ctx, messageID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	if changed {
		s.fanout.NotifyMessageRead(ctx, msg, readerID)
	}
	return changed, nil
}

// MarkChatRead marks every unread direct message from peerID to readerID and
// notifies the peer when anything changed.
func (s *Service) MarkChatRead(ctx context.Context, readerID, peerID int64) ([]int64, error) {
	if peerID == readerID {
		return nil, fmt.Errorf("%w: cannot read a chat with yourself", core.ErrBadRequest)
	}
	ids, err := s.store.MarkChatRead(ctx, readerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("mark chat read: %w", err)
	}
	if len(ids) > 0 {
		s.fanout.NotifyChatRead(ctx, peerID, readerID, ids)
	}
	return ids, nil
}

// RoomHistory returns a page of room messages for a member.
func (s *Service) RoomHistory(ctx context.Context, userID, roomID int64, limit, offset int) ([]*store.Message, error) {
	member, err := s.fanout.Members().IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("%w: not a member of room %d", core.ErrForbidden, roomID)
	}
	limit, offset = page(limit, offset)
	msgs, err := s.store.ListRoomMessages(ctx, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list room messages: %w", err)
	}
	return msgs, nil
}

// DirectHistory returns a page of the conversation between userID and peerID.
func (s *Service) DirectHistory(ctx context.Context, userID, peerID int64, limit, offset int) ([]*store.Message, error) {
	limit, offset = page(limit, offset)
	msgs, err := s.store.ListDirectMessages(ctx, userID, peerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}
	return msgs, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
