package events

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"github.com/juggernaut-live/roster/internal/svc/redis"
)

// DefaultKey is the control channel a Juggernaut broker listens on, and the
// namespace prefix of the three inbound event channels.
const DefaultKey = "juggernaut"

var ErrSubscriptionClosed = errors.New("events: subscription closed")

type Instance interface {
	// Publish relays data to the subscribers of the given channels with a
	// single fire-and-forget broker publish on the control channel.
	Publish(ctx context.Context, channels []string, data interface{}, opt PublishOptions) error
	// PublishOne is Publish for a single channel with default options.
	PublishOne(ctx context.Context, channel string, data interface{}) error
	// Listen opens a subscription over the three well-known event channels.
	Listen(ctx context.Context) *Subscription
	// Subscribe drives handler over a fresh subscription until the
	// subscription terminates or the handler returns an error.
	Subscribe(ctx context.Context, handler func(Event) error) error
}

type PublishOptions struct {
	// Except lists subscriber session ids excluded from delivery.
	Except []string
	// Extra is merged into the envelope last-write-wins.
	Extra map[string]interface{}
}

type Options struct {
	Redis redis.Instance
	// Key is the broker control channel and event channel namespace.
	// Defaults to DefaultKey.
	Key string
}

func New(opt Options) Instance {
	if opt.Key == "" {
		opt.Key = DefaultKey
	}

	return &eventsInst{
		redis: opt.Redis,
		key:   opt.Key,
	}
}

type eventsInst struct {
	redis redis.Instance
	key   string
}

func (inst *eventsInst) Publish(ctx context.Context, channels []string, data interface{}, opt PublishOptions) error {
	payload, err := EncodePublish(channels, data, opt.Except, opt.Extra)
	if err != nil {
		return err
	}

	return inst.redis.Publish(ctx, redis.Key(inst.key), payload)
}

func (inst *eventsInst) PublishOne(ctx context.Context, channel string, data interface{}) error {
	return inst.Publish(ctx, []string{channel}, data, PublishOptions{})
}

func (inst *eventsInst) Listen(ctx context.Context) *Subscription {
	ps := inst.redis.Subscribe(ctx,
		inst.redis.ComposeKey(inst.key, string(EventTypeSubscribe)),
		inst.redis.ComposeKey(inst.key, string(EventTypeUnsubscribe)),
		inst.redis.ComposeKey(inst.key, string(EventTypeCustom)),
	)

	return &Subscription{ps: ps}
}

func (inst *eventsInst) Subscribe(ctx context.Context, handler func(Event) error) error {
	sub := inst.Listen(ctx)
	defer sub.Close()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if err := handler(ev); err != nil {
			return err
		}
	}
}

// Subscription is a blocking pull over the event channels. It terminates
// only through Close, context cancellation, connection death or a decode
// failure; it never silently stalls.
type Subscription struct {
	ps redis.PubSub
}

// Next blocks until the next event in broker delivery order. It returns
// ErrSubscriptionClosed once the subscription is no longer live, or a
// *DecodeError on a malformed payload.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	channel, payload, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return Event{}, multierror.Append(ErrSubscriptionClosed, err).ErrorOrNil()
	}

	return DecodeEvent(channel, []byte(payload))
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
