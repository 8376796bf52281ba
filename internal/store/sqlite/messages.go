package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// ==== MessageStore implementation ====

const messageColumns = `id, content, sender_id, room_id, recipient_id, message_type, file_id, reply_to_id,
	status, created_at, delivered_at, read_at`

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		m                                  store.Message
		roomID, recipientID, fileID, reply sql.NullInt64
		deliveredAt, readAt                sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.Content, &m.SenderID, &roomID, &recipientID, &m.Type, &fileID, &reply,
		&m.Status, &m.CreatedAt, &deliveredAt, &readAt); err != nil {
		return nil, err
	}
	m.RoomID = ptrInt(roomID)
	m.RecipientID = ptrInt(recipientID)
	m.FileID = ptrInt(fileID)
	m.ReplyToID = ptrInt(reply)
	m.DeliveredAt = ptrTime(deliveredAt)
	m.ReadAt = ptrTime(readAt)
	return &m, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}
	return messages, nil
}

// CreateMessage persists msg with status sent and fills ID, Status and CreatedAt.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if (msg.RoomID == nil) == (msg.RecipientID == nil) {
		return fmt.Errorf("insert message: exactly one of room and recipient must be set")
	}
	if msg.Type == "" {
		msg.Type = store.MessageTypeText
	}
	msg.Status = store.MessageStatusSent
	msg.CreatedAt = now()

	query := `
		INSERT INTO messages (content, sender_id, room_id, recipient_id, message_type, file_id, reply_to_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Content, msg.SenderID, nullInt(msg.RoomID), nullInt(msg.RecipientID), string(msg.Type),
		nullInt(msg.FileID), nullInt(msg.ReplyToID), string(msg.Status), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`
	m, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query message")
	}
	return m, nil
}

// ListRoomMessages returns room messages in chronological order.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, roomID int64, limit, offset int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`
	return s.queryMessages(ctx, query, roomID, limit, offset)
}

// ListDirectMessages returns messages between two users in chronological order.
func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userID, peerID int64, limit, offset int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?)
		   OR (sender_id = ? AND recipient_id = ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`
	return s.queryMessages(ctx, query, userID, peerID, peerID, userID, limit, offset)
}

// MarkDelivered moves a sent message to delivered. Reports whether the row changed.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE messages SET status = 'delivered', delivered_at = ?
		WHERE id = ? AND status = 'sent'
	`
	return s.execChanged(ctx, "mark delivered", query, now(), id)
}

// MarkRead moves a sent or delivered message to read. Reports whether the row changed.
func (s *SQLiteStore) MarkRead(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE messages SET status = 'read', read_at = ?
		WHERE id = ? AND status IN ('sent', 'delivered')
	`
	return s.execChanged(ctx, "mark read", query, now(), id)
}

func (s *SQLiteStore) execChanged(ctx context.Context, what, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", what, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkChatRead marks every unread direct message from peerID to readerID as read
// and returns the ids that changed.
func (s *SQLiteStore) MarkChatRead(ctx context.Context, readerID, peerID int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM messages
		WHERE sender_id = ? AND recipient_id = ? AND status IN ('sent', 'delivered')
		ORDER BY id ASC
	`, peerID, readerID)
	if err != nil {
		return nil, fmt.Errorf("query unread: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE messages SET status = 'read', read_at = ?
		WHERE sender_id = ? AND recipient_id = ? AND status IN ('sent', 'delivered') AND id <= ?
	`, now(), peerID, readerID, ids[len(ids)-1]); err != nil {
		return nil, fmt.Errorf("mark chat read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return ids, nil
}

// ==== FileStore implementation ====

const fileColumns = `id, original_name, file_name, file_type, file_size, file_path, uploader_id,
	room_id, subject_id, subcategory_id, created_at`

func scanFile(row rowScanner) (*store.File, error) {
	var (
		f                       store.File
		roomID, subjectID, subc sql.NullInt64
	)
	if err := row.Scan(&f.ID, &f.OriginalName, &f.FileName, &f.FileType, &f.FileSize, &f.FilePath, &f.UploaderID,
		&roomID, &subjectID, &subc, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.RoomID = ptrInt(roomID)
	f.SubjectID = ptrInt(subjectID)
	f.SubcategoryID = ptrInt(subc)
	return &f, nil
}

func (s *SQLiteStore) queryFiles(ctx context.Context, query string, args ...any) ([]*store.File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*store.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CreateFile persists file metadata and fills ID and CreatedAt.
func (s *SQLiteStore) CreateFile(ctx context.Context, f *store.File) error {
	f.CreatedAt = now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO files (original_name, file_name, file_type, file_size, file_path, uploader_id,
			room_id, subject_id, subcategory_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, f.OriginalName, f.FileName, f.FileType, f.FileSize, f.FilePath, f.UploaderID,
		nullInt(f.RoomID), nullInt(f.SubjectID), nullInt(f.SubcategoryID), f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	f.ID = id
	return nil
}

// GetFile retrieves a non-deleted file by id.
func (s *SQLiteStore) GetFile(ctx context.Context, id int64) (*store.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = ? AND is_deleted = 0`
	f, err := scanFile(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query file")
	}
	return f, nil
}

// ListRoomFiles lists non-deleted files of a room, optionally narrowed to a subject or subcategory.
func (s *SQLiteStore) ListRoomFiles(ctx context.Context, roomID int64, subjectID, subcategoryID *int64) ([]*store.File, error) {
	conds := []string{"room_id = ?", "is_deleted = 0"}
	args := []any{roomID}
	if subjectID != nil {
		conds = append(conds, "subject_id = ?")
		args = append(args, *subjectID)
	}
	if subcategoryID != nil {
		conds = append(conds, "subcategory_id = ?")
		args = append(args, *subcategoryID)
	}
	query := `SELECT ` + fileColumns + ` FROM files WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY created_at DESC, id DESC`
	return s.queryFiles(ctx, query, args...)
}

// SearchFiles matches names of files the user uploaded or can see through room membership.
func (s *SQLiteStore) SearchFiles(ctx context.Context, query string, userID int64) ([]*store.File, error) {
	q := `
		SELECT ` + fileColumns + `
		FROM files
		WHERE is_deleted = 0
		  AND (original_name LIKE ? OR file_name LIKE ?)
		  AND (uploader_id = ? OR room_id IN (SELECT room_id FROM room_members WHERE user_id = ?))
		ORDER BY created_at DESC, id DESC
		LIMIT 50
	`
	pattern := "%" + query + "%"
	return s.queryFiles(ctx, q, pattern, pattern, userID, userID)
}

// DeleteFile soft-deletes a file owned by uploaderID.
func (s *SQLiteStore) DeleteFile(ctx context.Context, id, uploaderID int64) error {
	changed, err := s.execChanged(ctx, "delete file", `
		UPDATE files SET is_deleted = 1, deleted_at = ?
		WHERE id = ? AND uploader_id = ? AND is_deleted = 0
	`, now(), id, uploaderID)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("delete file: %w", store.ErrNotFound)
	}
	return nil
}

// ==== CallStore implementation ====

const callColumns = `id, caller_id, callee_id, room_id, call_type, status, started_at, ended_at, created_at`

func scanCall(row rowScanner) (*store.Call, error) {
	var (
		c                store.Call
		calleeID, roomID sql.NullInt64
		started, ended   sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.CallerID, &calleeID, &roomID, &c.Type, &c.Status, &started, &ended, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CalleeID = ptrInt(calleeID)
	c.RoomID = ptrInt(roomID)
	c.StartedAt = ptrTime(started)
	c.EndedAt = ptrTime(ended)
	return &c, nil
}

// CreateCall creates a new call.
func (s *SQLiteStore) CreateCall(ctx context.Context, call *store.Call) error {
	call.CreatedAt = now()
	if call.Status == "" {
		call.Status = store.CallStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, caller_id, callee_id, room_id, call_type, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, call.ID, call.CallerID, nullInt(call.CalleeID), nullInt(call.RoomID), string(call.Type), string(call.Status), call.CreatedAt)
	if err != nil {
		return mapErr(err, "insert call")
	}
	return nil
}

// GetCall retrieves a call by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*store.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = ?`
	c, err := scanCall(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query call")
	}
	return c, nil
}

// UpdateCallStatus sets the call status, stamping started_at or ended_at as appropriate.
func (s *SQLiteStore) UpdateCallStatus(ctx context.Context, id string, status store.CallStatus) error {
	var query string
	switch status {
	case store.CallStatusActive:
		query = `UPDATE calls SET status = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`
	case store.CallStatusEnded, store.CallStatusMissed:
		query = `UPDATE calls SET status = ?, ended_at = COALESCE(ended_at, ?) WHERE id = ?`
	default:
		return fmt.Errorf("update call: unsupported status %q", status)
	}
	changed, err := s.execChanged(ctx, "update call", query, string(status), now(), id)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("update call: %w", store.ErrNotFound)
	}
	return nil
}

// ListUserCalls lists calls the user placed or received, newest first.
func (s *SQLiteStore) ListUserCalls(ctx context.Context, userID int64) ([]*store.Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+`
		FROM calls
		WHERE caller_id = ? OR callee_id = ?
		   OR room_id IN (SELECT room_id FROM room_members WHERE user_id = ?)
		ORDER BY created_at DESC
		LIMIT 50
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var calls []*store.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// ==== StatusStore implementation ====

// CreateStatus creates a status post.
func (s *SQLiteStore) CreateStatus(ctx context.Context, userID int64, content, kind string) (*store.StatusPost, error) {
	if kind == "" {
		kind = "achievement"
	}
	post := &store.StatusPost{UserID: userID, Content: content, Type: kind, CreatedAt: now()}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO statuses (user_id, content, type, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, content, kind, post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert status: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	post.ID = id
	return post, nil
}

// ListStatusesByUsers lists recent status posts of the given users, newest first.
func (s *SQLiteStore) ListStatusesByUsers(ctx context.Context, userIDs []int64, limit int) ([]*store.StatusPost, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, 0, len(userIDs)+1)
	for _, id := range userIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, type, created_at
		FROM statuses
		WHERE is_deleted = 0 AND user_id IN (`+placeholders+`)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query statuses: %w", err)
	}
	defer rows.Close()

	var posts []*store.StatusPost
	for rows.Next() {
		var p store.StatusPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.Type, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}
