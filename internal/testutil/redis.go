package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	goredis "github.com/go-redis/redis/v8"
	"github.com/juggernaut-live/roster/internal/svc/redis"
)

type BrokerMessage struct {
	Channel string
	Payload string
}

// MockRedis is an in-memory stand-in for the redis service: it records
// outbound publishes and feeds subscriptions from the Incoming channel.
// Closing Incoming terminates subscriptions the way a dead connection does.
type MockRedis struct {
	mtx       sync.Mutex
	published []BrokerMessage

	Incoming chan BrokerMessage
}

func NewMockRedis() *MockRedis {
	return &MockRedis{Incoming: make(chan BrokerMessage, 16)}
}

func (m *MockRedis) Published() []BrokerMessage {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	out := make([]BrokerMessage, len(m.published))
	copy(out, m.published)

	return out
}

func (m *MockRedis) Ping(context.Context) error { return nil }

func (m *MockRedis) ComposeKey(parts ...string) redis.Key {
	return redis.Key(strings.Join(parts, ":"))
}

func (m *MockRedis) Publish(_ context.Context, key redis.Key, payload []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.published = append(m.published, BrokerMessage{Channel: key.String(), Payload: string(payload)})

	return nil
}

func (m *MockRedis) Subscribe(_ context.Context, _ ...redis.Key) redis.PubSub {
	return &mockPubSub{incoming: m.Incoming, done: make(chan struct{})}
}

func (m *MockRedis) SetAdd(context.Context, redis.Key, string) (bool, int64, error) {
	return false, 0, nil
}

func (m *MockRedis) SetRemove(context.Context, redis.Key, string) (bool, int64, error) {
	return false, 0, nil
}

func (m *MockRedis) SetCard(context.Context, redis.Key) (int64, error) {
	return 0, nil
}

func (m *MockRedis) SetMembers(context.Context, redis.Key) ([]string, error) {
	return nil, nil
}

func (m *MockRedis) RawClient() goredis.UniversalClient { return nil }

func (m *MockRedis) Close() error { return nil }

type mockPubSub struct {
	incoming chan BrokerMessage
	done     chan struct{}
	once     sync.Once
}

var errPubSubClosed = errors.New("pubsub closed")

func (p *mockPubSub) ReceiveMessage(ctx context.Context) (string, string, error) {
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case <-p.done:
		return "", "", errPubSubClosed
	case msg, ok := <-p.incoming:
		if !ok {
			return "", "", errPubSubClosed
		}

		return msg.Channel, msg.Payload, nil
	}
}

func (p *mockPubSub) Close() error {
	p.once.Do(func() {
		close(p.done)
	})

	return nil
}
