package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

//go:embed schema.sql
var schema string

// ApplySchema creates all tables and indexes that do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests use it with ":memory:" and ApplySchema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; ":memory:" requires it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC()
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", what, store.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func ptrInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func ptrTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// ==== UserStore implementation ====

const userColumns = `id, username, password_hash, display_name, bio, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &u.Bio, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, display_name)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, username)
	if err != nil {
		return nil, mapErr(err, "insert user")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query user")
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, mapErr(err, "query user")
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id int64, upd store.ProfileUpdate) (*store.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{now()}
	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.DisplayName != nil {
		sets = append(sets, "display_name = ?")
		args = append(args, *upd.DisplayName)
	}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, *upd.Bio)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "update profile")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("update profile: %w", store.ErrNotFound)
	}
	return s.GetUserByID(ctx, id)
}

// SearchUsers searches for users by username or display name.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username LIKE ? OR display_name LIKE ?
		ORDER BY username ASC
		LIMIT 20
	`
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, q, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ==== FriendStore implementation ====

const friendshipColumns = `id, requester_id, addressee_id, status, created_at, updated_at`

func scanFriendship(row rowScanner) (*store.Friendship, error) {
	var f store.Friendship
	if err := row.Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFriendRequest creates a new pending friend request.
func (s *SQLiteStore) CreateFriendRequest(ctx context.Context, requesterID, addresseeID int64) (*store.Friendship, error) {
	query := `
		INSERT INTO friendships (requester_id, addressee_id, status)
		VALUES (?, ?, 'pending')
	`
	result, err := s.db.ExecContext(ctx, query, requesterID, addresseeID)
	if err != nil {
		return nil, mapErr(err, "insert friendship")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetFriendship(ctx, id)
}

// GetFriendship retrieves a friendship by id.
func (s *SQLiteStore) GetFriendship(ctx context.Context, id int64) (*store.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friendships WHERE id = ?`
	f, err := scanFriendship(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query friendship")
	}
	return f, nil
}

// FindFriendship returns the friendship between two users in either direction.
func (s *SQLiteStore) FindFriendship(ctx context.Context, userID, otherID int64) (*store.Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE (requester_id = ? AND addressee_id = ?)
		   OR (requester_id = ? AND addressee_id = ?)
		ORDER BY id DESC
		LIMIT 1
	`
	f, err := scanFriendship(s.db.QueryRowContext(ctx, query, userID, otherID, otherID, userID))
	if err != nil {
		return nil, mapErr(err, "query friendship")
	}
	return f, nil
}

// UpdateFriendStatus updates the status of a friendship.
func (s *SQLiteStore) UpdateFriendStatus(ctx context.Context, id int64, status store.FriendStatus) error {
	query := `UPDATE friendships SET status = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(status), now(), id)
	if err != nil {
		return fmt.Errorf("update friendship: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update friendship: %w", store.ErrNotFound)
	}
	return nil
}

// ListIncomingRequests lists pending requests addressed to userID, newest first.
func (s *SQLiteStore) ListIncomingRequests(ctx context.Context, userID int64) ([]*store.Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + `
		FROM friendships
		WHERE addressee_id = ? AND status = 'pending'
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var out []*store.Friendship
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFriendIDs lists the ids of users with an accepted friendship with userID.
func (s *SQLiteStore) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT CASE WHEN requester_id = ? THEN addressee_id ELSE requester_id END
		FROM friendships
		WHERE (requester_id = ? OR addressee_id = ?) AND status = 'accepted'
	`
	return s.queryIDs(ctx, query, userID, userID, userID)
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== RoomStore implementation ====

const roomColumns = `id, name, description, creator_id, created_at, updated_at`

func scanRoom(row rowScanner) (*store.Room, error) {
	var r store.Room
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.CreatorID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRoom creates a room and adds the creator as a member with the creator role.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, description string, creatorID int64) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (name, description, creator_id)
		VALUES (?, ?, ?)
	`, name, description, creatorID)
	if err != nil {
		return nil, mapErr(err, "insert room")
	}
	roomID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, role)
		VALUES (?, ?, 'creator')
	`, roomID, creatorID); err != nil {
		return nil, fmt.Errorf("add creator to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return s.GetRoomByID(ctx, roomID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapErr(err, "query room")
	}
	return room, nil
}

// ListUserRooms lists rooms the user is a member of.
func (s *SQLiteStore) ListUserRooms(ctx context.Context, userID int64) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.name, r.description, r.creator_id, r.created_at, r.updated_at
		FROM rooms r
		JOIN room_members rm ON r.id = rm.room_id
		WHERE rm.user_id = ?
		ORDER BY r.updated_at DESC, r.id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// AddMember adds a user to a room. Adding an existing member is a no-op.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID int64, role store.MemberRole) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, role)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID, string(role)); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, roomID, userID int64) error {
	query := `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	query := `SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMembers lists the user ids of every member of the room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	return s.queryIDs(ctx, query, roomID)
}

// ListRoomMembers lists membership rows of the room.
func (s *SQLiteStore) ListRoomMembers(ctx context.Context, roomID int64) ([]*store.RoomMember, error) {
	query := `
		SELECT room_id, user_id, role, joined_at
		FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.RoomMember
	for rows.Next() {
		var m store.RoomMember
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// ==== SubjectStore implementation ====

// CreateSubject creates a subject inside a room.
func (s *SQLiteStore) CreateSubject(ctx context.Context, roomID int64, name string) (*store.Subject, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO subjects (room_id, name) VALUES (?, ?)`, roomID, name)
	if err != nil {
		return nil, mapErr(err, "insert subject")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetSubject(ctx, id)
}

// GetSubject retrieves a subject by id.
func (s *SQLiteStore) GetSubject(ctx context.Context, id int64) (*store.Subject, error) {
	var sub store.Subject
	err := s.db.QueryRowContext(ctx, `SELECT id, room_id, name, created_at FROM subjects WHERE id = ?`, id).
		Scan(&sub.ID, &sub.RoomID, &sub.Name, &sub.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "query subject")
	}
	return &sub, nil
}

// ListSubjects lists subjects of a room.
func (s *SQLiteStore) ListSubjects(ctx context.Context, roomID int64) ([]*store.Subject, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, name, created_at FROM subjects
		WHERE room_id = ?
		ORDER BY name ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var out []*store.Subject
	for rows.Next() {
		var sub store.Subject
		if err := rows.Scan(&sub.ID, &sub.RoomID, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// CreateSubcategory creates a subcategory inside a subject.
func (s *SQLiteStore) CreateSubcategory(ctx context.Context, subjectID int64, name string) (*store.Subcategory, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO subcategories (subject_id, name) VALUES (?, ?)`, subjectID, name)
	if err != nil {
		return nil, mapErr(err, "insert subcategory")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var sub store.Subcategory
	err = s.db.QueryRowContext(ctx, `SELECT id, subject_id, name, created_at FROM subcategories WHERE id = ?`, id).
		Scan(&sub.ID, &sub.SubjectID, &sub.Name, &sub.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "query subcategory")
	}
	return &sub, nil
}

// ListSubcategories lists subcategories of a subject.
func (s *SQLiteStore) ListSubcategories(ctx context.Context, subjectID int64) ([]*store.Subcategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, name, created_at FROM subcategories
		WHERE subject_id = ?
		ORDER BY name ASC
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query subcategories: %w", err)
	}
	defer rows.Close()

	var out []*store.Subcategory
	for rows.Next() {
		var sub store.Subcategory
		if err := rows.Scan(&sub.ID, &sub.SubjectID, &sub.Name, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subcategory: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}
