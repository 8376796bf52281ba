package core

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/studyhub-server/internal/metrics"
)

// MemberSource lists room members from the persistence gateway.
type MemberSource interface {
	ListMembers(ctx context.Context, roomID int64) ([]int64, error)
}

// memberLoad tracks callers waiting on a room query. stale is set when the
// room is invalidated while they wait; the result is then not cached.
type memberLoad struct {
	waiters int
	stale   bool
}

type memberEntry struct {
	ids     []int64
	set     map[int64]struct{}
	expires time.Time
}

// MemberCache caches room membership with a TTL. Concurrent misses for the
// same room share one query. A ttl of zero disables caching.
type MemberCache struct {
	src MemberSource
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]*memberEntry
	loads   map[int64]*memberLoad

	sf singleflight.Group
}

// NewMemberCache wraps src with a TTL cache.
func NewMemberCache(src MemberSource, ttl time.Duration) *MemberCache {
	return &MemberCache{
		src:     src,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]*memberEntry),
		loads:   make(map[int64]*memberLoad),
	}
}

// Members returns the user ids of every member of the room.
func (m *MemberCache) Members(ctx context.Context, roomID int64) ([]int64, error) {
	e, err := m.entry(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return e.ids, nil
}

// IsMember reports whether userID is a member of the room.
func (m *MemberCache) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	e, err := m.entry(ctx, roomID)
	if err != nil {
		return false, err
	}
	_, ok := e.set[userID]
	return ok, nil
}

// Invalidate drops the cached membership of a room. Queries already in
// flight for that room are not cached.
func (m *MemberCache) Invalidate(roomID int64) {
	m.mu.Lock()
	delete(m.entries, roomID)
	if l, ok := m.loads[roomID]; ok {
		l.stale = true
	}
	m.mu.Unlock()
	m.sf.Forget(strconv.FormatInt(roomID, 10))
}

func (m *MemberCache) entry(ctx context.Context, roomID int64) (*memberEntry, error) {
	m.mu.Lock()
	if e, ok := m.entries[roomID]; ok && m.now().Before(e.expires) {
		m.mu.Unlock()
		metrics.RecordCacheLookup(true)
		return e, nil
	}
	load, ok := m.loads[roomID]
	if !ok {
		load = &memberLoad{}
		m.loads[roomID] = load
	}
	load.waiters++
	m.mu.Unlock()
	metrics.RecordCacheLookup(false)

	// The shared query outlives any single caller; each caller stops waiting
	// on its own context.
	ch := m.sf.DoChan(strconv.FormatInt(roomID, 10), func() (any, error) {
		ids, err := m.src.ListMembers(context.WithoutCancel(ctx), roomID)
		if err != nil {
			return nil, err
		}
		e := &memberEntry{ids: ids, set: make(map[int64]struct{}, len(ids))}
		for _, id := range ids {
			e.set[id] = struct{}{}
		}
		return e, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		m.release(roomID, load, nil)
		return nil, ctx.Err()
	}
	if res.Err != nil {
		m.release(roomID, load, nil)
		return nil, res.Err
	}
	e := res.Val.(*memberEntry)
	m.release(roomID, load, e)
	return e, nil
}

// release drops one waiter and caches e unless the room was invalidated
// while the query ran.
func (m *MemberCache) release(roomID int64, load *memberLoad, e *memberEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e != nil && m.ttl > 0 && !load.stale {
		m.entries[roomID] = &memberEntry{ids: e.ids, set: e.set, expires: m.now().Add(m.ttl)}
	}
	load.waiters--
	if load.waiters == 0 && m.loads[roomID] == load {
		delete(m.loads, roomID)
	}
}
