package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/service/messages"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store    store.Store
	members  *core.MemberCache
	messages *messages.Service
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance. Membership writes
// invalidate members so room fanout sees them immediately.
func NewRoomHandlers(st store.Store, members *core.MemberCache, msgs *messages.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:    st,
		members:  members,
		messages: msgs,
		log:      logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description" binding:"max=500"`
}

// AddMemberRequest represents the add member request body.
type AddMemberRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=admin member"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatorID   int64  `json:"creator_id"`
	CreatedAt   string `json:"created_at"`
}

// MemberResponse represents a room member in API responses.
type MemberResponse struct {
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt string `json:"joined_at"`
}

func roomToResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		CreatorID:   room.CreatorID,
		CreatedAt:   room.CreatedAt.Format(timeFormat),
	}
}

// CreateRoom handles room creation. The creator becomes its first member.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, req.Description, uid)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	h.members.Invalidate(room.ID)

	h.log.Info().Str("room_name", room.Name).Int64("room_id", room.ID).Int64("creator_id", uid).Msg("room created successfully")
	c.JSON(http.StatusCreated, roomToResponse(room))
}

// ListRooms handles listing the rooms the user belongs to.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	rooms, err := h.store.ListUserRooms(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, roomToResponse(room))
	}

	h.log.Debug().Int64("user_id", uid).Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// GetRoom returns one room the user belongs to.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	room, ok := h.memberRoom(c, roomID, uid)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, roomToResponse(room))
}

// AddMember adds a user to a room. Only the creator and admins may add.
// POST /api/rooms/:id/members
func (h *RoomHandlers) AddMember(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if !h.requireManager(c, roomID, uid) {
		return
	}
	if _, err := h.store.GetUserByID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", req.UserID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	role := store.MemberRoleMember
	if req.Role != "" {
		role = store.MemberRole(req.Role)
	}
	if err := h.store.AddMember(ctx, roomID, req.UserID, role); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", req.UserID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	h.members.Invalidate(roomID)

	h.log.Info().Int64("room_id", roomID).Int64("user_id", req.UserID).Int64("by_user_id", uid).Msg("member added")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListMembers lists members of a room the user belongs to.
// GET /api/rooms/:id/members
func (h *RoomHandlers) ListMembers(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.memberRoom(c, roomID, uid); !ok {
		return
	}

	members, err := h.store.ListRoomMembers(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, MemberResponse{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt.Format(timeFormat),
		})
	}
	c.JSON(http.StatusOK, response)
}

// RemoveMember removes a user from a room. Members may remove themselves;
// removing others needs the creator or an admin. The creator cannot be removed.
// DELETE /api/rooms/:id/members/:userId
func (h *RoomHandlers) RemoveMember(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	target, ok := paramID(c, "userId")
	if !ok {
		return
	}

	room, ok := h.memberRoom(c, roomID, uid)
	if !ok {
		return
	}
	if target == room.CreatorID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "the room creator cannot be removed"})
		return
	}
	if target != uid && !h.requireManager(c, roomID, uid) {
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), roomID, target); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", target).Msg("failed to remove member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	h.members.Invalidate(roomID)

	h.log.Info().Int64("room_id", roomID).Int64("user_id", target).Int64("by_user_id", uid).Msg("member removed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RoomMessages returns a page of room history.
// GET /api/rooms/:id/messages?limit=&offset=
func (h *RoomHandlers) RoomMessages(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	msgs, err := h.messages.RoomHistory(c.Request.Context(), uid, roomID, queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messagesToProto(msgs))
}

// memberRoom loads a room and checks that uid belongs to it. On failure it
// writes the response.
func (h *RoomHandlers) memberRoom(c *gin.Context, roomID, uid int64) (*store.Room, bool) {
	ctx := c.Request.Context()
	room, err := h.store.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return nil, false
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}

	member, err := h.members.IsMember(ctx, roomID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return nil, false
	}
	return room, true
}

// requireManager checks that uid is the creator or an admin of the room.
func (h *RoomHandlers) requireManager(c *gin.Context, roomID, uid int64) bool {
	role, err := h.memberRole(c.Request.Context(), roomID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load member role")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return false
	}
	if role != store.MemberRoleCreator && role != store.MemberRoleAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only room admins can manage members"})
		return false
	}
	return true
}

// memberRole returns the role of uid in the room, or "" if not a member.
func (h *RoomHandlers) memberRole(ctx context.Context, roomID, uid int64) (store.MemberRole, error) {
	members, err := h.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if m.UserID == uid {
			return m.Role, nil
		}
	}
	return "", nil
}
