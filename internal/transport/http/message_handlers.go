package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/service/messages"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// MessageHandlers exposes the message service over REST. Writes go through
// the same service as WebSocket frames, so live sockets see identical events.
type MessageHandlers struct {
	service *messages.Service
	log     *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		service: svc,
		log:     logger,
	}
}

// SendMessageRequest is the body of a REST message. For chat routes the
// recipient comes from the path.
type SendMessageRequest struct {
	Content     string `json:"content"`
	RoomID      *int64 `json:"roomId"`
	RecipientID *int64 `json:"recipientId"`
	MessageType string `json:"messageType"`
	FileID      *int64 `json:"fileId"`
	ReplyToID   *int64 `json:"replyToId"`
}

func (r SendMessageRequest) draft() core.Draft {
	return core.Draft{
		Content:     r.Content,
		RoomID:      r.RoomID,
		RecipientID: r.RecipientID,
		Type:        store.MessageType(r.MessageType),
		FileID:      r.FileID,
		ReplyToID:   r.ReplyToID,
	}
}

// SendMessage persists a room or direct message and fans it out.
// POST /api/messages
func (h *MessageHandlers) SendMessage(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	h.send(c, uid, req.draft())
}

// SendChatMessage sends a direct message to the chat peer.
// POST /api/chats/:id/messages
func (h *MessageHandlers) SendChatMessage(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	peerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send chat message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	d := req.draft()
	d.RoomID = nil
	d.RecipientID = &peerID
	h.send(c, uid, d)
}

func (h *MessageHandlers) send(c *gin.Context, uid int64, d core.Draft) {
	msg, err := h.service.Send(c.Request.Context(), uid, d)
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, messageToProto(msg))
}

// DirectMessages returns a page of the conversation with another user.
// GET /api/messages/direct/:userId and GET /api/chats/:id/messages
func (h *MessageHandlers) DirectMessages(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := currentUserID(c, h.log)
		if !ok {
			return
		}
		peerID, ok := paramID(c, param)
		if !ok {
			return
		}

		msgs, err := h.service.DirectHistory(c.Request.Context(), uid, peerID, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
		if err != nil {
			writeCoreError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, messagesToProto(msgs))
	}
}

// MarkRead marks one message read and notifies its sender.
// POST /api/messages/:id/read
func (h *MessageHandlers) MarkRead(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}

	changed, err := h.service.MarkRead(c.Request.Context(), uid, messageID)
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "changed": changed})
}

// MarkChatRead marks every unread message from the chat peer as read.
// POST /api/chats/:id/read
func (h *MessageHandlers) MarkChatRead(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	peerID, ok := paramID(c, "id")
	if !ok {
		return
	}

	ids, err := h.service.MarkChatRead(c.Request.Context(), uid, peerID)
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "messageIds": ids})
}
