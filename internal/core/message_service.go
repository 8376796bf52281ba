package core

import (
	"context"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// MessageService abstracts message business logic for the Hub.
// The same implementation serves the REST handlers, so a message reaches
// live connections identically whichever entry point created it.
type MessageService interface {
	// Send validates and persists a draft from senderID, then fans it out.
	Send(ctx context.Context, senderID int64, d Draft) (*store.Message, error)

	// MarkRead marks one message read on behalf of readerID.
	// Reports whether the status changed.
	MarkRead(ctx context.Context, readerID, messageID int64) (bool, error)

	// MarkChatRead marks every unread direct message from peerID to readerID.
	// Returns the ids that changed.
	MarkChatRead(ctx context.Context, readerID, peerID int64) ([]int64, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyUserToken(token string) (int64, error)
}
