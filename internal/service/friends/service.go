package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/studyhub-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf     = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends       = errors.New("already friends")
	ErrRequestAlreadyExists = errors.New("friend request already exists")
	ErrRequestNotFound      = errors.New("friend request not found")
	ErrUserNotFound         = errors.New("user not found")
)

// Store is the persistence the friend service needs.
type Store interface {
	store.FriendStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Service provides friend management business logic.
type Service struct {
	store Store
}

// New creates a new friend service.
func New(st Store) *Service {
	return &Service{
		store: st,
	}
}

// SendRequest sends a friend request from one user to another.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID int64) (*store.Friendship, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	existing, err := s.store.FindFriendship(ctx, fromUserID, toUserID)
	switch {
	case err == nil:
		switch existing.Status {
		case store.FriendStatusAccepted:
			return nil, ErrAlreadyFriends
		case store.FriendStatusPending:
			return nil, ErrRequestAlreadyExists
		case store.FriendStatusRejected:
			// A rejected request in the same direction is reopened.
			if existing.RequesterID == fromUserID {
				if err := s.store.UpdateFriendStatus(ctx, existing.ID, store.FriendStatusPending); err != nil {
					return nil, fmt.Errorf("reopen friend request: %w", err)
				}
				return s.store.GetFriendship(ctx, existing.ID)
			}
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("find friendship: %w", err)
	}

	friendship, err := s.store.CreateFriendRequest(ctx, fromUserID, toUserID)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrRequestAlreadyExists
		}
		return nil, fmt.Errorf("create friend request: %w", err)
	}
	return friendship, nil
}

// AcceptRequest accepts a pending friend request addressed to userID.
func (s *Service) AcceptRequest(ctx context.Context, userID, requestID int64) error {
	return s.respond(ctx, userID, requestID, store.FriendStatusAccepted)
}

// RejectRequest rejects a pending friend request addressed to userID.
func (s *Service) RejectRequest(ctx context.Context, userID, requestID int64) error {
	return s.respond(ctx, userID, requestID, store.FriendStatusRejected)
}

func (s *Service) respond(ctx context.Context, userID, requestID int64, status store.FriendStatus) error {
	existing, err := s.store.GetFriendship(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("get friendship: %w", err)
	}

	// Must be pending and directed to the responding user
	if existing.Status != store.FriendStatusPending || existing.AddresseeID != userID {
		return ErrRequestNotFound
	}

	if err := s.store.UpdateFriendStatus(ctx, requestID, status); err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	return nil
}

// ListFriends returns all accepted friends for a user.
func (s *Service) ListFriends(ctx context.Context, userID int64) ([]*store.User, error) {
	ids, err := s.store.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	users := make([]*store.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get friend %d: %w", id, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// ListPendingRequests returns incoming pending friend requests for a user.
func (s *Service) ListPendingRequests(ctx context.Context, userID int64) ([]*store.Friendship, error) {
	requests, err := s.store.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// IsFriend checks if two users are friends (accepted status).
func (s *Service) IsFriend(ctx context.Context, userID, friendID int64) (bool, error) {
	f, err := s.store.FindFriendship(ctx, userID, friendID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find friendship: %w", err)
	}
	return f.Status == store.FriendStatusAccepted, nil
}
