package roster

import (
	"context"

	"github.com/juggernaut-live/roster/internal/svc/redis"
)

// DefaultKeyPrefix scopes roster keys in the shared store.
const DefaultKeyPrefix = "juggernaut-roster:"

// Store durably records per-user connection sets and the global online-users
// set. AddConnection and RemoveConnection must be atomic at the store level:
// multiple roster instances race on the same sets in a multi-process
// deployment, and the offline to online decision is derived from their return
// values rather than from a separate read.
type Store interface {
	// AddConnection records sessionID under userID. It reports whether the
	// session was newly added together with the resulting connection count;
	// adding an already-present session changes neither.
	AddConnection(ctx context.Context, userID, sessionID string) (added bool, count int64, err error)
	// RemoveConnection drops sessionID from userID's connection set.
	// Removing an absent session is a no-op with removed == false.
	RemoveConnection(ctx context.Context, userID, sessionID string) (removed bool, count int64, err error)
	ConnectionCount(ctx context.Context, userID string) (int64, error)

	// MarkOnline and MarkOffline are idempotent membership mutations on the
	// global online-users set.
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
}

// NewRedisStore returns a Store over a shared redis instance. An empty
// keyPrefix selects DefaultKeyPrefix.
func NewRedisStore(inst redis.Instance, keyPrefix string) Store {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	return &redisStore{
		redis:  inst,
		prefix: keyPrefix,
	}
}

type redisStore struct {
	redis  redis.Instance
	prefix string
}

func (s *redisStore) connectionsKey(userID string) redis.Key {
	return redis.Key(s.prefix + "connections:" + userID)
}

func (s *redisStore) onlineKey() redis.Key {
	return redis.Key(s.prefix + "online-users")
}

func (s *redisStore) AddConnection(ctx context.Context, userID, sessionID string) (bool, int64, error) {
	return s.redis.SetAdd(ctx, s.connectionsKey(userID), sessionID)
}

func (s *redisStore) RemoveConnection(ctx context.Context, userID, sessionID string) (bool, int64, error) {
	return s.redis.SetRemove(ctx, s.connectionsKey(userID), sessionID)
}

func (s *redisStore) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	return s.redis.SetCard(ctx, s.connectionsKey(userID))
}

func (s *redisStore) MarkOnline(ctx context.Context, userID string) error {
	_, _, err := s.redis.SetAdd(ctx, s.onlineKey(), userID)
	return err
}

func (s *redisStore) MarkOffline(ctx context.Context, userID string) error {
	_, _, err := s.redis.SetRemove(ctx, s.onlineKey(), userID)
	return err
}

func (s *redisStore) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.redis.SetMembers(ctx, s.onlineKey())
}
