package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/callengine"
	"github.com/vovakirdan/studyhub-server/internal/service/calls"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// CallsHandlers provides HTTP handlers for call management endpoints.
type CallsHandlers struct {
	service *calls.Service
	log     *zerolog.Logger
}

// NewCallsHandlers creates a new calls handlers instance.
func NewCallsHandlers(svc *calls.Service, logger *zerolog.Logger) *CallsHandlers {
	return &CallsHandlers{
		service: svc,
		log:     logger,
	}
}

// CreateCallRequest represents the request body for starting a call.
type CreateCallRequest struct {
	CalleeID *int64 `json:"callee_id"`
	RoomID   *int64 `json:"room_id"`
	Type     string `json:"type" binding:"omitempty,oneof=voice video group"`
}

// CallResponse represents a call in API responses.
type CallResponse struct {
	ID        string               `json:"id"`
	CallerID  int64                `json:"caller_id"`
	CalleeID  *int64               `json:"callee_id,omitempty"`
	RoomID    *int64               `json:"room_id,omitempty"`
	Type      string               `json:"type"`
	Status    string               `json:"status"`
	StartedAt *string              `json:"started_at,omitempty"`
	EndedAt   *string              `json:"ended_at,omitempty"`
	CreatedAt string               `json:"created_at"`
	Join      *callengine.JoinInfo `json:"join,omitempty"`
}

// callToResponse converts a store.Call to CallResponse.
func callToResponse(c *store.Call, join *callengine.JoinInfo) CallResponse {
	resp := CallResponse{
		ID:        c.ID,
		CallerID:  c.CallerID,
		CalleeID:  c.CalleeID,
		RoomID:    c.RoomID,
		Type:      string(c.Type),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt.Format(timeFormat),
		Join:      join,
	}
	if c.StartedAt != nil {
		startedAt := c.StartedAt.Format(timeFormat)
		resp.StartedAt = &startedAt
	}
	if c.EndedAt != nil {
		endedAt := c.EndedAt.Format(timeFormat)
		resp.EndedAt = &endedAt
	}
	return resp
}

// CreateCall starts a direct or room call.
// POST /api/calls
func (h *CallsHandlers) CreateCall(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create call request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	call, join, err := h.service.Start(c.Request.Context(), uid, calls.Request{
		CalleeID: req.CalleeID,
		RoomID:   req.RoomID,
		Type:     store.CallType(req.Type),
	})
	if err != nil {
		h.writeError(c, err, uid)
		return
	}

	h.log.Info().Str("call_id", call.ID).Int64("caller_id", uid).Str("type", string(call.Type)).Msg("call started")
	c.JSON(http.StatusCreated, callToResponse(call, join))
}

// JoinCall returns media credentials for a participant.
// POST /api/calls/:id/join
func (h *CallsHandlers) JoinCall(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	call, join, err := h.service.Join(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		h.writeError(c, err, uid)
		return
	}
	c.JSON(http.StatusOK, callToResponse(call, join))
}

// EndCall ends a call.
// POST /api/calls/:id/end
func (h *CallsHandlers) EndCall(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	call, err := h.service.End(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		h.writeError(c, err, uid)
		return
	}

	h.log.Info().Str("call_id", call.ID).Int64("user_id", uid).Str("status", string(call.Status)).Msg("call ended")
	c.JSON(http.StatusOK, callToResponse(call, nil))
}

// ListCalls lists the user's recent calls.
// GET /api/calls
func (h *CallsHandlers) ListCalls(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	list, err := h.service.List(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err, uid)
		return
	}

	response := make([]CallResponse, 0, len(list))
	for _, call := range list {
		response = append(response, callToResponse(call, nil))
	}
	c.JSON(http.StatusOK, response)
}

func (h *CallsHandlers) writeError(c *gin.Context, err error, uid int64) {
	switch {
	case errors.Is(err, calls.ErrInvalidTarget), errors.Is(err, calls.ErrInvalidType), errors.Is(err, calls.ErrCannotCallSelf):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, calls.ErrUserNotFound), errors.Is(err, calls.ErrCallNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, calls.ErrNotParticipant), errors.Is(err, calls.ErrNotRoomMember):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, calls.ErrCallEnded):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		h.log.Error().Err(err).Int64("user_id", uid).Msg("call request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}
