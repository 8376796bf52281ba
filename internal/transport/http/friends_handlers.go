package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/service/friends"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// FriendsHandlers provides HTTP handlers for friend management endpoints.
type FriendsHandlers struct {
	service *friends.Service
	users   store.UserStore
	log     *zerolog.Logger
}

// NewFriendsHandlers creates a new friends handlers instance.
func NewFriendsHandlers(svc *friends.Service, users store.UserStore, logger *zerolog.Logger) *FriendsHandlers {
	return &FriendsHandlers{
		service: svc,
		users:   users,
		log:     logger,
	}
}

// FriendRequestBody represents the request body for sending a friend request.
type FriendRequestBody struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// FriendRequestResponse represents a friend request in API responses.
type FriendRequestResponse struct {
	ID          int64         `json:"id"`
	RequesterID int64         `json:"requester_id"`
	AddresseeID int64         `json:"addressee_id"`
	Status      string        `json:"status"`
	Requester   *UserResponse `json:"requester,omitempty"`
	CreatedAt   string        `json:"created_at"`
}

func friendshipToResponse(f *store.Friendship) FriendRequestResponse {
	return FriendRequestResponse{
		ID:          f.ID,
		RequesterID: f.RequesterID,
		AddresseeID: f.AddresseeID,
		Status:      string(f.Status),
		CreatedAt:   f.CreatedAt.Format(timeFormat),
	}
}

// SendRequest handles sending a friend request.
// POST /api/friends/request
func (h *FriendsHandlers) SendRequest(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req FriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid friend request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	friendship, err := h.service.SendRequest(c.Request.Context(), uid, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, friends.ErrCannotFriendSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot send friend request to yourself"})
		case errors.Is(err, friends.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already friends"})
		case errors.Is(err, friends.ErrRequestAlreadyExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "friend request already exists"})
		case errors.Is(err, friends.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("from_user_id", uid).Int64("to_user_id", req.UserID).Msg("failed to send friend request")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("from_user_id", uid).Int64("to_user_id", req.UserID).Msg("friend request sent")
	c.JSON(http.StatusCreated, friendshipToResponse(friendship))
}

// ListPendingRequests lists incoming pending friend requests.
// GET /api/friends/requests
func (h *FriendsHandlers) ListPendingRequests(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	requests, err := h.service.ListPendingRequests(ctx, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friend requests")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]FriendRequestResponse, 0, len(requests))
	for _, f := range requests {
		resp := friendshipToResponse(f)
		if u, err := h.users.GetUserByID(ctx, f.RequesterID); err == nil {
			ur := userToResponse(u)
			resp.Requester = &ur
		}
		response = append(response, resp)
	}
	c.JSON(http.StatusOK, response)
}

// AcceptRequest accepts an incoming friend request.
// POST /api/friends/requests/:id/accept
func (h *FriendsHandlers) AcceptRequest(c *gin.Context) {
	h.respond(c, true)
}

// RejectRequest rejects an incoming friend request.
// POST /api/friends/requests/:id/reject
func (h *FriendsHandlers) RejectRequest(c *gin.Context) {
	h.respond(c, false)
}

func (h *FriendsHandlers) respond(c *gin.Context, accept bool) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	requestID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var err error
	if accept {
		err = h.service.AcceptRequest(c.Request.Context(), uid, requestID)
	} else {
		err = h.service.RejectRequest(c.Request.Context(), uid, requestID)
	}
	if err != nil {
		if errors.Is(err, friends.ErrRequestNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "friend request not found"})
			return
		}
		h.log.Error().Err(err).Int64("request_id", requestID).Msg("failed to respond to friend request")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if accept {
		c.JSON(http.StatusOK, gin.H{"message": "friend request accepted"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend request rejected"})
}

// ListFriends lists accepted friends.
// GET /api/friends
func (h *FriendsHandlers) ListFriends(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	users, err := h.service.ListFriends(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list friends")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		response = append(response, userToResponse(u))
	}
	c.JSON(http.StatusOK, response)
}
