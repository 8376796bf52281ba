package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// CreateNameRequest is the body for subjects and subcategories.
type CreateNameRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// SubjectResponse represents a subject or subcategory in API responses.
type SubjectResponse struct {
	ID        int64  `json:"id"`
	ParentID  int64  `json:"parent_id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// CreateSubject adds a subject to a room.
// POST /api/rooms/:id/subjects
func (h *RoomHandlers) CreateSubject(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CreateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if _, ok := h.memberRoom(c, roomID, uid); !ok {
		return
	}

	subject, err := h.store.CreateSubject(c.Request.Context(), roomID, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "subject already exists"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to create subject")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, SubjectResponse{
		ID:        subject.ID,
		ParentID:  subject.RoomID,
		Name:      subject.Name,
		CreatedAt: subject.CreatedAt.Format(timeFormat),
	})
}

// ListSubjects lists subjects of a room.
// GET /api/rooms/:id/subjects
func (h *RoomHandlers) ListSubjects(c *gin.Context) {
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

	subjects, err := h.store.ListSubjects(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list subjects")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]SubjectResponse, 0, len(subjects))
	for _, s := range subjects {
		response = append(response, SubjectResponse{
			ID:        s.ID,
			ParentID:  s.RoomID,
			Name:      s.Name,
			CreatedAt: s.CreatedAt.Format(timeFormat),
		})
	}
	c.JSON(http.StatusOK, response)
}

// CreateSubcategory adds a subcategory to a subject.
// POST /api/subjects/:id/subcategories
func (h *RoomHandlers) CreateSubcategory(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	subjectID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req CreateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !h.subjectMember(c, subjectID, uid) {
		return
	}

	sub, err := h.store.CreateSubcategory(c.Request.Context(), subjectID, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "subcategory already exists"})
			return
		}
		h.log.Error().Err(err).Int64("subject_id", subjectID).Msg("failed to create subcategory")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, SubjectResponse{
		ID:        sub.ID,
		ParentID:  sub.SubjectID,
		Name:      sub.Name,
		CreatedAt: sub.CreatedAt.Format(timeFormat),
	})
}

// ListSubcategories lists subcategories of a subject.
// GET /api/subjects/:id/subcategories
func (h *RoomHandlers) ListSubcategories(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	subjectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !h.subjectMember(c, subjectID, uid) {
		return
	}

	subs, err := h.store.ListSubcategories(c.Request.Context(), subjectID)
	if err != nil {
		h.log.Error().Err(err).Int64("subject_id", subjectID).Msg("failed to list subcategories")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]SubjectResponse, 0, len(subs))
	for _, s := range subs {
		response = append(response, SubjectResponse{
			ID:        s.ID,
			ParentID:  s.SubjectID,
			Name:      s.Name,
			CreatedAt: s.CreatedAt.Format(timeFormat),
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *RoomHandlers) subjectMember(c *gin.Context, subjectID, uid int64) bool {
	subject, err := h.store.GetSubject(c.Request.Context(), subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "subject not found"})
			return false
		}
		h.log.Error().Err(err).Int64("subject_id", subjectID).Msg("failed to load subject")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return false
	}
	_, ok := h.memberRoom(c, subject.RoomID, uid)
	return ok
}
