package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/core"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// FileHandlers stores uploads on local disk and their metadata in the store.
type FileHandlers struct {
	store     store.Store
	members   *core.MemberCache
	uploadDir string
	maxBytes  int64
	log       *zerolog.Logger
}

// NewFileHandlers creates a new file handlers instance.
func NewFileHandlers(st store.Store, members *core.MemberCache, uploadDir string, maxBytes int64, logger *zerolog.Logger) *FileHandlers {
	return &FileHandlers{
		store:     st,
		members:   members,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
		log:       logger,
	}
}

// FileResponse represents file metadata in API responses.
type FileResponse struct {
	ID            int64  `json:"id"`
	OriginalName  string `json:"original_name"`
	FileName      string `json:"file_name"`
	FileType      string `json:"file_type"`
	FileSize      int64  `json:"file_size"`
	UploaderID    int64  `json:"uploader_id"`
	RoomID        *int64 `json:"room_id,omitempty"`
	SubjectID     *int64 `json:"subject_id,omitempty"`
	SubcategoryID *int64 `json:"subcategory_id,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func fileToResponse(f *store.File) FileResponse {
	return FileResponse{
		ID:            f.ID,
		OriginalName:  f.OriginalName,
		FileName:      f.FileName,
		FileType:      f.FileType,
		FileSize:      f.FileSize,
		UploaderID:    f.UploaderID,
		RoomID:        f.RoomID,
		SubjectID:     f.SubjectID,
		SubcategoryID: f.SubcategoryID,
		CreatedAt:     f.CreatedAt.Format(timeFormat),
	}
}

func filesToResponse(files []*store.File) []FileResponse {
	out := make([]FileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, fileToResponse(f))
	}
	return out
}

// Upload stores a multipart file field named "file". Optional form fields
// roomId, subjectId and subcategoryId file it under a room.
// POST /api/files/upload
func (h *FileHandlers) Upload(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid upload request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	roomID, err1 := formID(c, "roomId")
	subjectID, err2 := formID(c, "subjectId")
	subcategoryID, err3 := formID(c, "subcategoryId")
	if err := errors.Join(err1, err2, err3); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid form field"})
		return
	}
	if roomID == nil && (subjectID != nil || subcategoryID != nil) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "roomId is required with subjectId"})
		return
	}
	if roomID != nil && !h.requireMember(c, *roomID, uid) {
		return
	}
	if subjectID != nil {
		subject, err := h.store.GetSubject(c.Request.Context(), *subjectID)
		if err != nil || subject.RoomID != *roomID {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "subject does not belong to the room"})
			return
		}
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("dir", h.uploadDir).Msg("failed to create upload dir")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	stored := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	path := filepath.Join(h.uploadDir, stored)
	if err := c.SaveUploadedFile(header, path); err != nil {
		h.log.Error().Err(err).Str("path", path).Msg("failed to save upload")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	f := &store.File{
		OriginalName:  filepath.Base(header.Filename),
		FileName:      stored,
		FileType:      fileType,
		FileSize:      header.Size,
		FilePath:      path,
		UploaderID:    uid,
		RoomID:        roomID,
		SubjectID:     subjectID,
		SubcategoryID: subcategoryID,
	}
	if err := h.store.CreateFile(c.Request.Context(), f); err != nil {
		_ = os.Remove(path)
		h.log.Error().Err(err).Msg("failed to save file metadata")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("file_id", f.ID).Int64("uploader_id", uid).Int64("size", f.FileSize).Msg("file uploaded")
	c.JSON(http.StatusCreated, fileToResponse(f))
}

// Download streams a file to a user allowed to see it.
// GET /api/files/:id
func (h *FileHandlers) Download(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	fileID, ok := paramID(c, "id")
	if !ok {
		return
	}

	f, err := h.store.GetFile(c.Request.Context(), fileID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to load file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if f.UploaderID != uid {
		if f.RoomID == nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		if !h.requireMember(c, *f.RoomID, uid) {
			return
		}
	}

	c.FileAttachment(f.FilePath, f.OriginalName)
}

// ListRoomFiles lists files of a room, optionally filtered by subjectId or subcategoryId.
// GET /api/rooms/:id/files
func (h *FileHandlers) ListRoomFiles(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}

	subjectID, err1 := queryID(c, "subjectId")
	subcategoryID, err2 := queryID(c, "subcategoryId")
	if err := errors.Join(err1, err2); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid filter"})
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	files, err := h.store.ListRoomFiles(c.Request.Context(), roomID, subjectID, subcategoryID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list files")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, filesToResponse(files))
}

// SearchFiles searches files visible to the user by name.
// GET /api/files/search?q=
func (h *FileHandlers) SearchFiles(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	files, err := h.store.SearchFiles(c.Request.Context(), q, uid)
	if err != nil {
		h.log.Error().Err(err).Str("query", q).Msg("failed to search files")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, filesToResponse(files))
}

// DeleteFile soft-deletes a file uploaded by the current user.
// DELETE /api/files/:id
func (h *FileHandlers) DeleteFile(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	fileID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteFile(c.Request.Context(), fileID, uid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("failed to delete file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("file_id", fileID).Int64("user_id", uid).Msg("file deleted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *FileHandlers) requireMember(c *gin.Context, roomID, uid int64) bool {
	member, err := h.members.IsMember(c.Request.Context(), roomID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return false
	}
	return true
}

func formID(c *gin.Context, name string) (*int64, error) {
	return parseOptionalID(c.PostForm(name))
}

func queryID(c *gin.Context, name string) (*int64, error) {
	return parseOptionalID(c.Query(name))
}

func parseOptionalID(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return &id, nil
}
