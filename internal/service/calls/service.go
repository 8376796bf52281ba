package calls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/studyhub-server/internal/callengine"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// Common errors for call operations.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrCallNotFound   = errors.New("call not found")
	ErrCallEnded      = errors.New("call has ended")
	ErrNotParticipant = errors.New("not a participant in this call")
	ErrNotRoomMember  = errors.New("not a member of this room")
	ErrCannotCallSelf = errors.New("cannot call yourself")
	ErrInvalidTarget  = errors.New("exactly one of calleeId and roomId is required")
	ErrInvalidType    = errors.New("invalid call type")
)

// Store is the persistence the call service needs.
type Store interface {
	store.CallStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
}

// Request describes a call to start.
type Request struct {
	CalleeID *int64
	RoomID   *int64
	Type     store.CallType
}

// Service provides call records and media credentials. Signaling between
// clients travels over the WebSocket call channel.
type Service struct {
	store  Store
	engine callengine.Engine
}

// New creates a new call service.
// engine can be nil if LiveKit is not enabled.
func New(st Store, engine callengine.Engine) *Service {
	return &Service{
		store:  st,
		engine: engine,
	}
}

// Start records a new pending call and returns the caller's join info when a
// media engine is configured.
func (s *Service) Start(ctx context.Context, callerID int64, req Request) (*store.Call, *callengine.JoinInfo, error) {
	if (req.CalleeID == nil) == (req.RoomID == nil) {
		return nil, nil, ErrInvalidTarget
	}

	switch req.Type {
	case "":
		req.Type = store.CallTypeVoice
		if req.RoomID != nil {
			req.Type = store.CallTypeGroup
		}
	case store.CallTypeVoice, store.CallTypeVideo, store.CallTypeGroup:
	default:
		return nil, nil, ErrInvalidType
	}

	if req.CalleeID != nil {
		if *req.CalleeID == callerID {
			return nil, nil, ErrCannotCallSelf
		}
		if _, err := s.store.GetUserByID(ctx, *req.CalleeID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, ErrUserNotFound
			}
			return nil, nil, fmt.Errorf("get callee: %w", err)
		}
	} else {
		member, err := s.store.IsMember(ctx, *req.RoomID, callerID)
		if err != nil {
			return nil, nil, fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return nil, nil, ErrNotRoomMember
		}
	}

	call := &store.Call{
		ID:       uuid.New().String(),
		CallerID: callerID,
		CalleeID: req.CalleeID,
		RoomID:   req.RoomID,
		Type:     req.Type,
		Status:   store.CallStatusPending,
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return nil, nil, fmt.Errorf("save call: %w", err)
	}

	info, err := s.joinInfo(ctx, call, callerID)
	if err != nil {
		return nil, nil, err
	}
	return call, info, nil
}

// Join returns media credentials for a participant and marks the call active.
func (s *Service) Join(ctx context.Context, callID string, userID int64) (*store.Call, *callengine.JoinInfo, error) {
	call, err := s.participantCall(ctx, callID, userID)
	if err != nil {
		return nil, nil, err
	}
	if call.Status == store.CallStatusEnded || call.Status == store.CallStatusMissed {
		return nil, nil, ErrCallEnded
	}

	if call.Status == store.CallStatusPending && userID != call.CallerID {
		if err := s.store.UpdateCallStatus(ctx, callID, store.CallStatusActive); err != nil {
			return nil, nil, fmt.Errorf("activate call: %w", err)
		}
		call.Status = store.CallStatusActive
	}

	info, err := s.joinInfo(ctx, call, userID)
	if err != nil {
		return nil, nil, err
	}
	return call, info, nil
}

// End terminates a call. A call that never became active is recorded as missed.
// Ending an ended call is a no-op.
func (s *Service) End(ctx context.Context, callID string, userID int64) (*store.Call, error) {
	call, err := s.participantCall(ctx, callID, userID)
	if err != nil {
		return nil, err
	}
	if call.Status == store.CallStatusEnded || call.Status == store.CallStatusMissed {
		return call, nil
	}

	status := store.CallStatusEnded
	if call.Status == store.CallStatusPending {
		status = store.CallStatusMissed
	}
	if err := s.store.UpdateCallStatus(ctx, callID, status); err != nil {
		return nil, fmt.Errorf("update call: %w", err)
	}

	if s.engine != nil {
		//nolint:errcheck // Non-fatal error, best effort cleanup
		s.engine.EndCall(ctx, call)
	}
	return s.store.GetCall(ctx, callID)
}

// List returns recent calls the user took part in.
func (s *Service) List(ctx context.Context, userID int64) ([]*store.Call, error) {
	calls, err := s.store.ListUserCalls(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return calls, nil
}

func (s *Service) participantCall(ctx context.Context, callID string, userID int64) (*store.Call, error) {
	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("get call: %w", err)
	}

	if call.CallerID == userID || (call.CalleeID != nil && *call.CalleeID == userID) {
		return call, nil
	}
	if call.RoomID != nil {
		member, err := s.store.IsMember(ctx, *call.RoomID, userID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if member {
			return call, nil
		}
	}
	return nil, ErrNotParticipant
}

func (s *Service) joinInfo(ctx context.Context, call *store.Call, userID int64) (*callengine.JoinInfo, error) {
	if s.engine == nil {
		return nil, nil
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	info, err := s.engine.GenerateJoinInfo(ctx, call, userID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("generate join info: %w", err)
	}
	return info, nil
}
