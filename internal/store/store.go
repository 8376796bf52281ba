package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique constraint rejects a write.
var ErrConflict = errors.New("conflict")

// User represents a registered user.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	Bio          string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStatus is the self-declared availability shown next to a user.
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusAway   UserStatus = "away"
	UserStatusBusy   UserStatus = "busy"
)

// ProfileUpdate holds optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	Username    *string
	DisplayName *string
	Bio         *string
	Status      *UserStatus
}

// FriendStatus defines friendship status.
type FriendStatus string

const (
	FriendStatusPending  FriendStatus = "pending"
	FriendStatusAccepted FriendStatus = "accepted"
	FriendStatusRejected FriendStatus = "rejected"
)

// Friendship represents a friend request and its outcome.
type Friendship struct {
	ID          int64
	RequesterID int64
	AddresseeID int64
	Status      FriendStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Room is a study room (group chat).
type Room struct {
	ID          int64
	Name        string
	Description string
	CreatorID   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MemberRole is a user's role inside a room.
type MemberRole string

const (
	MemberRoleCreator MemberRole = "creator"
	MemberRoleAdmin   MemberRole = "admin"
	MemberRoleMember  MemberRole = "member"
)

// RoomMember represents room membership.
type RoomMember struct {
	RoomID   int64
	UserID   int64
	Role     MemberRole
	JoinedAt time.Time
}

// Subject groups files inside a room.
type Subject struct {
	ID        int64
	RoomID    int64
	Name      string
	CreatedAt time.Time
}

// Subcategory groups files inside a subject.
type Subcategory struct {
	ID        int64
	SubjectID int64
	Name      string
	CreatedAt time.Time
}

// MessageType classifies a message body.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeVoice  MessageType = "voice"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeVoice, MessageTypeSystem:
		return true
	}
	return false
}

// MessageStatus is the delivery state of a message. It only moves forward.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// Message is a persisted chat message. Exactly one of RoomID and RecipientID is set.
type Message struct {
	ID          int64
	Content     string
	SenderID    int64
	RoomID      *int64
	RecipientID *int64
	Type        MessageType
	FileID      *int64
	ReplyToID   *int64
	Status      MessageStatus
	CreatedAt   time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// IsDirect reports whether the message is addressed to a single user.
func (m *Message) IsDirect() bool {
	return m.RecipientID != nil
}

// File is an uploaded file, optionally filed under a room subject.
type File struct {
	ID            int64
	OriginalName  string
	FileName      string
	FileType      string
	FileSize      int64
	FilePath      string
	UploaderID    int64
	RoomID        *int64
	SubjectID     *int64
	SubcategoryID *int64
	CreatedAt     time.Time
}

// CallType defines the type of call.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
	CallTypeGroup CallType = "group"
)

// CallStatus defines call status.
type CallStatus string

const (
	CallStatusPending CallStatus = "pending"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
	CallStatusMissed  CallStatus = "missed"
)

// Call represents a voice/video call record.
type Call struct {
	ID        string // UUID
	CallerID  int64
	CalleeID  *int64
	RoomID    *int64
	Type      CallType
	Status    CallStatus
	StartedAt *time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
}

// StatusPost is a short achievement or update shared with friends.
type StatusPost struct {
	ID        int64
	UserID    int64
	Content   string
	Type      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateProfile applies the non-nil fields of upd.
	UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*User, error)

	// SearchUsers searches for users by username or display name.
	SearchUsers(ctx context.Context, query string) ([]*User, error)
}

// FriendStore handles friendship persistence.
type FriendStore interface {
	CreateFriendRequest(ctx context.Context, requesterID, addresseeID int64) (*Friendship, error)
	GetFriendship(ctx context.Context, id int64) (*Friendship, error)
	// FindFriendship returns the friendship between two users in either direction.
	FindFriendship(ctx context.Context, userID, otherID int64) (*Friendship, error)
	UpdateFriendStatus(ctx context.Context, id int64, status FriendStatus) error
	// ListIncomingRequests lists pending requests addressed to userID, newest first.
	ListIncomingRequests(ctx context.Context, userID int64) ([]*Friendship, error)
	// ListFriendIDs lists the ids of users with an accepted friendship with userID.
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateRoom creates a room and adds the creator as a member with the creator role.
	CreateRoom(ctx context.Context, name, description string, creatorID int64) (*Room, error)
	GetRoomByID(ctx context.Context, id int64) (*Room, error)
	// ListUserRooms lists rooms the user is a member of.
	ListUserRooms(ctx context.Context, userID int64) ([]*Room, error)
	AddMember(ctx context.Context, roomID, userID int64, role MemberRole) error
	RemoveMember(ctx context.Context, roomID, userID int64) error
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	// ListMembers lists the user ids of every member of the room.
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)
	ListRoomMembers(ctx context.Context, roomID int64) ([]*RoomMember, error)
}

// SubjectStore handles subject/subcategory persistence.
type SubjectStore interface {
	CreateSubject(ctx context.Context, roomID int64, name string) (*Subject, error)
	GetSubject(ctx context.Context, id int64) (*Subject, error)
	ListSubjects(ctx context.Context, roomID int64) ([]*Subject, error)
	CreateSubcategory(ctx context.Context, subjectID int64, name string) (*Subcategory, error)
	ListSubcategories(ctx context.Context, subjectID int64) ([]*Subcategory, error)
}

// MessageStore handles message persistence and status transitions.
type MessageStore interface {
	// CreateMessage persists msg with status sent and fills ID and CreatedAt.
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	// ListRoomMessages returns room messages in chronological order.
	ListRoomMessages(ctx context.Context, roomID int64, limit, offset int) ([]*Message, error)
	// ListDirectMessages returns messages between two users in chronological order.
	ListDirectMessages(ctx context.Context, userID, peerID int64, limit, offset int) ([]*Message, error)
	// MarkDelivered moves a sent message to delivered. Reports whether the row changed.
	MarkDelivered(ctx context.Context, id int64) (bool, error)
	// MarkRead moves a sent or delivered message to read. Reports whether the row changed.
	MarkRead(ctx context.Context, id int64) (bool, error)
	// MarkChatRead marks every unread direct message from peerID to readerID as read
	// and returns the ids that changed.
	MarkChatRead(ctx context.Context, readerID, peerID int64) ([]int64, error)
}

// FileStore handles file metadata persistence.
type FileStore interface {
	CreateFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, id int64) (*File, error)
	ListRoomFiles(ctx context.Context, roomID int64, subjectID, subcategoryID *int64) ([]*File, error)
	// SearchFiles matches names of files the user uploaded or can see through room membership.
	SearchFiles(ctx context.Context, query string, userID int64) ([]*File, error)
	// DeleteFile soft-deletes a file owned by uploaderID.
	DeleteFile(ctx context.Context, id, uploaderID int64) error
}

// CallStore handles call persistence.
type CallStore interface {
	CreateCall(ctx context.Context, call *Call) error
	GetCall(ctx context.Context, id string) (*Call, error)
	UpdateCallStatus(ctx context.Context, id string, status CallStatus) error
	ListUserCalls(ctx context.Context, userID int64) ([]*Call, error)
}

// StatusStore handles status posts.
type StatusStore interface {
	CreateStatus(ctx context.Context, userID int64, content, kind string) (*StatusPost, error)
	ListStatusesByUsers(ctx context.Context, userIDs []int64, limit int) ([]*StatusPost, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FriendStore
	RoomStore
	SubjectStore
	MessageStore
	FileStore
	CallStore
	StatusStore

	// Close closes the underlying database connection.
	Close() error
}
