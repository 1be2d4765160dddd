package redis

import (
	"context"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Nil is returned by read operations when the key does not exist.
const Nil = redis.Nil

var ErrNoAddresses = errors.New("redis: no addresses provided")

type Key string

func (k Key) String() string {
	return string(k)
}

type Instance interface {
	Ping(ctx context.Context) error
	ComposeKey(parts ...string) Key
	Publish(ctx context.Context, key Key, payload []byte) error
	Subscribe(ctx context.Context, keys ...Key) PubSub

	// Atomic set primitives. See sets.go for the MULTI/EXEC contract.
	SetAdd(ctx context.Context, key Key, member string) (added bool, size int64, err error)
	SetRemove(ctx context.Context, key Key, member string) (removed bool, size int64, err error)
	SetCard(ctx context.Context, key Key) (int64, error)
	SetMembers(ctx context.Context, key Key) ([]string, error)

	RawClient() redis.UniversalClient
	Close() error
}

// PubSub is a pull-based subscription over one or more channels.
type PubSub interface {
	// ReceiveMessage blocks until the next message arrives on any of the
	// subscribed channels, or the context is cancelled, or the subscription
	// is closed.
	ReceiveMessage(ctx context.Context) (channel string, payload string, err error)
	Close() error
}

type SetupOptions struct {
	Username   string
	Password   string
	Database   int
	Addresses  []string
	Sentinel   bool
	MasterName string
}

func Setup(ctx context.Context, opt SetupOptions) (Instance, error) {
	if len(opt.Addresses) == 0 {
		return nil, ErrNoAddresses
	}

	var client redis.UniversalClient

	if opt.Sentinel {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    opt.MasterName,
			SentinelAddrs: opt.Addresses,
			Username:      opt.Username,
			Password:      opt.Password,
			DB:            opt.Database,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     opt.Addresses[0],
			Username: opt.Username,
			Password: opt.Password,
			DB:       opt.Database,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &redisInst{client: client}, nil
}

type redisInst struct {
	client redis.UniversalClient
}

func (i *redisInst) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

func (i *redisInst) ComposeKey(parts ...string) Key {
	return Key(strings.Join(parts, ":"))
}

func (i *redisInst) Publish(ctx context.Context, key Key, payload []byte) error {
	return i.client.Publish(ctx, key.String(), payload).Err()
}

func (i *redisInst) Subscribe(ctx context.Context, keys ...Key) PubSub {
	channels := make([]string, len(keys))
	for n, k := range keys {
		channels[n] = k.String()
	}

	return &pubSub{ps: i.client.Subscribe(ctx, channels...)}
}

func (i *redisInst) RawClient() redis.UniversalClient {
	return i.client
}

func (i *redisInst) Close() error {
	return i.client.Close()
}

type pubSub struct {
	ps *redis.PubSub
}

func (p *pubSub) ReceiveMessage(ctx context.Context) (string, string, error) {
	msg, err := p.ps.ReceiveMessage(ctx)
	if err != nil {
		return "", "", err
	}

	return msg.Channel, msg.Payload, nil
}

func (p *pubSub) Close() error {
	return p.ps.Close()
}
