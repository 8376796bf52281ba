package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

const feedLimit = 50

// StatusHandlers serves status posts shared between friends.
type StatusHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(st store.Store, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{store: st, log: logger}
}

// CreateStatusRequest represents the request body for a status post.
type CreateStatusRequest struct {
	Content string `json:"content" binding:"required,min=1,max=500"`
	Type    string `json:"type" binding:"omitempty,oneof=achievement update"`
}

// StatusResponse represents a status post in API responses.
type StatusResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
}

// CreateStatus posts a status for the current user.
// POST /api/status
func (h *StatusHandlers) CreateStatus(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	post, err := h.store.CreateStatus(c.Request.Context(), uid, req.Content, req.Type)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to create status")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, statusToResponse(post))
}

// Feed lists recent statuses of the user and their friends.
// GET /api/status/feed
func (h *StatusHandlers) Feed(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	ids, err := h.store.ListFriendIDs(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friends for feed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	posts, err := h.store.ListStatusesByUsers(ctx, append(ids, uid), feedLimit)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list statuses")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]StatusResponse, 0, len(posts))
	for _, p := range posts {
		response = append(response, statusToResponse(p))
	}
	c.JSON(http.StatusOK, response)
}

func statusToResponse(p *store.StatusPost) StatusResponse {
	return StatusResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Content:   p.Content,
		Type:      p.Type,
		CreatedAt: p.CreatedAt.Format(timeFormat),
	}
}
