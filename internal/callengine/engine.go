package callengine

import (
	"context"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// JoinInfo contains information needed to join a call.
type JoinInfo struct {
	URL      string `json:"url"`       // WebSocket URL (e.g., ws://localhost:7880)
	Token    string `json:"token"`     // JWT token for LiveKit
	RoomName string `json:"room_name"` // LiveKit room name
	Identity string `json:"identity"`  // User identity in the room
}

// Engine abstracts the media backend for calls.
type Engine interface {
	// RoomName returns the media room the call runs in.
	RoomName(call *store.Call) string

	// EndCall terminates the media room.
	EndCall(ctx context.Context, call *store.Call) error

	// GenerateJoinInfo creates join credentials for a user.
	GenerateJoinInfo(ctx context.Context, call *store.Call, userID int64, username string) (*JoinInfo, error)
}
