package roster

import (
	"context"
	"testing"

	"github.com/juggernaut-live/roster/internal/testutil"
)

func TestMemoryStoreConnections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	added, count, err := store.AddConnection(ctx, "u1", "s1")
	testutil.IsNil(t, err, "add")
	testutil.Assert(t, true, added, "first add is effective")
	testutil.Assert(t, int64(1), count, "cardinality after first add")

	added, count, err = store.AddConnection(ctx, "u1", "s1")
	testutil.IsNil(t, err, "duplicate add")
	testutil.Assert(t, false, added, "duplicate add is a no-op")
	testutil.Assert(t, int64(1), count, "cardinality unchanged")

	added, count, err = store.AddConnection(ctx, "u1", "s2")
	testutil.IsNil(t, err, "second session")
	testutil.Assert(t, true, added, "second session effective")
	testutil.Assert(t, int64(2), count, "two sessions")

	removed, count, err := store.RemoveConnection(ctx, "u1", "s1")
	testutil.IsNil(t, err, "remove")
	testutil.Assert(t, true, removed, "remove effective")
	testutil.Assert(t, int64(1), count, "one session left")

	removed, count, err = store.RemoveConnection(ctx, "u1", "s1")
	testutil.IsNil(t, err, "remove absent")
	testutil.Assert(t, false, removed, "removing an absent session is a no-op")
	testutil.Assert(t, int64(1), count, "cardinality unchanged")

	removed, count, err = store.RemoveConnection(ctx, "u1", "s2")
	testutil.IsNil(t, err, "last remove")
	testutil.Assert(t, true, removed, "last remove effective")
	testutil.Assert(t, int64(0), count, "empty set")

	count, err = store.ConnectionCount(ctx, "u1")
	testutil.IsNil(t, err, "count")
	testutil.Assert(t, int64(0), count, "count for evicted user")
}

func TestMemoryStoreOnlineUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	testutil.IsNil(t, store.MarkOnline(ctx, "u2"), "mark online")
	testutil.IsNil(t, store.MarkOnline(ctx, "u1"), "mark online")
	testutil.IsNil(t, store.MarkOnline(ctx, "u1"), "mark online is idempotent")

	users, err := store.OnlineUsers(ctx)
	testutil.IsNil(t, err, "online users")
	testutil.Assert(t, 2, len(users), "set semantics")
	testutil.Assert(t, "u1", users[0], "sorted")
	testutil.Assert(t, "u2", users[1], "sorted")

	testutil.IsNil(t, store.MarkOffline(ctx, "u1"), "mark offline")
	testutil.IsNil(t, store.MarkOffline(ctx, "u1"), "mark offline is idempotent")

	users, err = store.OnlineUsers(ctx)
	testutil.IsNil(t, err, "online users")
	testutil.Assert(t, 1, len(users), "one left")
	testutil.Assert(t, "u2", users[0], "remaining user")
}

func TestRedisStoreKeyLayout(t *testing.T) {
	t.Parallel()

	s := NewRedisStore(testutil.NewMockRedis(), "").(*redisStore)

	testutil.Assert(t, "juggernaut-roster:connections:42", s.connectionsKey("42").String(), "default prefix")
	testutil.Assert(t, "juggernaut-roster:online-users", s.onlineKey().String(), "online set key")

	s = NewRedisStore(testutil.NewMockRedis(), "presence:").(*redisStore)

	testutil.Assert(t, "presence:connections:42", s.connectionsKey("42").String(), "custom prefix")
}
