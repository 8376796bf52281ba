package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	store store.UserStore
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.UserStore, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func userToResponse(u *store.User) UserResponse {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: name,
		Bio:         u.Bio,
		Status:      string(u.Status),
		CreatedAt:   u.CreatedAt.Format(timeFormat),
	}
}

// UpdateProfileRequest holds the optional profile fields to change.
type UpdateProfileRequest struct {
	Username    *string `json:"username" binding:"omitempty,min=3,max=32"`
	DisplayName *string `json:"display_name" binding:"omitempty,max=64"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
	Status      *string `json:"status" binding:"omitempty,oneof=active away busy"`
}

// SearchUsers handles searching for users.
// GET /api/users/search?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	trimmed := strings.TrimSpace(c.Query("q"))
	if len(trimmed) < 2 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "search query must be at least 2 characters"})
		return
	}

	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	users, err := h.store.SearchUsers(c.Request.Context(), trimmed)
	if err != nil {
		h.log.Error().Err(err).Str("query", trimmed).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.ID == uid {
			continue
		}
		response = append(response, userToResponse(u))
	}

	c.JSON(http.StatusOK, response)
}

// UpdateProfile changes the current user's profile.
// PUT /api/users/profile
func (h *UserHandlers) UpdateProfile(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update profile request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	upd := store.ProfileUpdate{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		upd.Username = &name
	}
	if req.Status != nil {
		status := store.UserStatus(*req.Status)
		upd.Status = &status
	}

	user, err := h.store.UpdateProfile(c.Request.Context(), uid, upd)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username is taken"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to update profile")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("user_id", uid).Msg("profile updated")
	c.JSON(http.StatusOK, userToResponse(user))
}
