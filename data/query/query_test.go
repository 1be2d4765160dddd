package query

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/juggernaut-live/roster/internal/svc/roster"
	"github.com/juggernaut-live/roster/internal/testutil"
)

type countingStore struct {
	roster.Store

	onlineCalls int64
	countCalls  int64
}

func (s *countingStore) OnlineUsers(ctx context.Context) ([]string, error) {
	atomic.AddInt64(&s.onlineCalls, 1)
	return s.Store.OnlineUsers(ctx)
}

func (s *countingStore) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	atomic.AddInt64(&s.countCalls, 1)
	return s.Store.ConnectionCount(ctx, userID)
}

func TestOnlineUsersCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store := &countingStore{Store: roster.NewMemoryStore()}
	testutil.IsNil(t, store.MarkOnline(ctx, "u1"), "seed")

	q := New(store)

	users, err := q.OnlineUsers(ctx)
	testutil.IsNil(t, err, "first read")
	testutil.Assert(t, 1, len(users), "seeded user")

	users, err = q.OnlineUsers(ctx)
	testutil.IsNil(t, err, "second read")
	testutil.Assert(t, 1, len(users), "seeded user")

	testutil.Assert(t, int64(1), atomic.LoadInt64(&store.onlineCalls), "second read served from cache")
}

func TestUserPresence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store := &countingStore{Store: roster.NewMemoryStore()}
	_, _, err := store.AddConnection(ctx, "u1", "s1")
	testutil.IsNil(t, err, "seed")

	q := New(store)

	p, err := q.UserPresence(ctx, "u1")
	testutil.IsNil(t, err, "presence")
	testutil.Assert(t, "u1", p.UserID, "user id")
	testutil.Assert(t, true, p.Online, "online from connection count")
	testutil.Assert(t, int64(1), p.Connections, "connection count")

	p, err = q.UserPresence(ctx, "u2")
	testutil.IsNil(t, err, "unknown user")
	testutil.Assert(t, false, p.Online, "unknown user offline")
	testutil.Assert(t, int64(0), p.Connections, "no connections")

	_, err = q.UserPresence(ctx, "u1")
	testutil.IsNil(t, err, "cached read")
	testutil.Assert(t, int64(2), atomic.LoadInt64(&store.countCalls), "per-user cache hit")
}
