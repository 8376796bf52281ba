package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/studyhub-server/internal/metrics"
	"github.com/vovakirdan/studyhub-server/internal/store"
)

// DeliveryStore persists the sent to delivered transition.
type DeliveryStore interface {
	MarkDelivered(ctx context.Context, id int64) (bool, error)
}

// FriendSource lists accepted friends for presence notifications.
type FriendSource interface {
	ListFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Fanout delivers persisted messages and ephemeral signals to the
// connections that should see them. Each push is isolated: a failing
// connection is unregistered and closed without affecting other recipients.
type Fanout struct {
	registry *Registry
	members  *MemberCache
	store    DeliveryStore
	friends  FriendSource
	log      *zerolog.Logger
}

// NewFanout wires the fanout engine.
func NewFanout(registry *Registry, members *MemberCache, deliveries DeliveryStore, friends FriendSource, logger *zerolog.Logger) *Fanout {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Fanout{
		registry: registry,
		members:  members,
		store:    deliveries,
		friends:  friends,
		log:      logger,
	}
}

// Registry returns the registry the engine delivers through.
func (f *Fanout) Registry() *Registry {
	return f.registry
}

// Members returns the membership cache used to resolve room recipients.
func (f *Fanout) Members() *MemberCache {
	return f.members
}

// Deliver pushes a freshly persisted message. Room messages go to every
// registered member regardless of room subscriptions; direct messages go to
// sender and recipient. A successful push to the direct recipient advances
// the message to delivered and notifies the sender; msg is updated to match.
func (f *Fanout) Deliver(ctx context.Context, msg *store.Message) error {
	snapshot := *msg
	ev := &Event{Kind: EventNewMessage, Message: &snapshot}

	if msg.RoomID != nil {
		ids, err := f.members.Members(ctx, *msg.RoomID)
		if err != nil {
			return fmt.Errorf("resolve room members: %w", err)
		}
		for _, userID := range ids {
			if c := f.registry.LookupUser(userID); c != nil {
				f.push(ctx, c, ev)
			}
		}
		return nil
	}

	if msg.RecipientID == nil {
		return fmt.Errorf("%w: message %d has no address", ErrInvalidMessage, msg.ID)
	}

	if c := f.registry.LookupUser(msg.SenderID); c != nil {
		f.push(ctx, c, ev)
	}
	rc := f.registry.LookupUser(*msg.RecipientID)
	if rc == nil || !f.push(ctx, rc, ev) {
		return nil
	}

	changed, err := f.store.MarkDelivered(ctx, msg.ID)
	if err != nil {
		f.log.Error().Err(err).Int64("message_id", msg.ID).Msg("failed to mark message delivered")
		return nil
	}
	if !changed {
		return nil
	}
	now := time.Now().UTC()
	msg.Status = store.MessageStatusDelivered
	msg.DeliveredAt = &now

	if c := f.registry.LookupUser(msg.SenderID); c != nil {
		f.push(ctx, c, &Event{
			Kind:      EventMessageStatus,
			MessageID: msg.ID,
			UserID:    *msg.RecipientID,
			Status:    store.MessageStatusDelivered,
		})
	}
	return nil
}

// push enqueues ev on c and reports success. On failure c is dropped.
func (f *Fanout) push(ctx context.Context, c *Conn, ev *Event) bool {
	err := c.Send(ev)
	if err == nil {
		metrics.RecordDelivery(ev.Kind.String())
		return true
	}

	reason := metrics.ReasonClosed
	if errors.Is(err, ErrSlowConsumer) {
		reason = metrics.ReasonSlowConsumer
	}
	metrics.RecordDeliveryFailure(reason)
	userID, _ := c.UserID()
	f.log.Warn().Err(err).Str("conn_id", c.ID).Int64("user_id", userID).
		Str("event", ev.Kind.String()).Msg("delivery failed, dropping connection")

	f.Drop(ctx, c)
	return false
}

// Drop unregisters and closes c. Friends are told the user went offline if
// c was still the user's registered connection.
func (f *Fanout) Drop(ctx context.Context, c *Conn) {
	userID, removed := f.registry.Unregister(c)
	c.Close()
	if removed {
		f.Announce(ctx, userID, false)
	}
}
