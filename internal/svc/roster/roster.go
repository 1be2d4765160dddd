package roster

import (
	"context"
	"errors"

	"github.com/juggernaut-live/roster/data/events"
	"github.com/juggernaut-live/roster/internal/svc/prometheus"
	"go.uber.org/zap"
)

// DefaultUserMetaKey is the meta field carrying the logical user identity.
const DefaultUserMetaKey = "user_id"

// Instance collapses per-connection subscribe/unsubscribe events into
// per-user presence transitions. It keeps no state between events; every
// decision derives from the Store, so any number of instances can consume
// the same event stream against a shared store.
//
// Presence is event-driven only: a connection that dies without an
// unsubscribe event stays recorded and its user can appear online
// indefinitely. There is no heartbeat or TTL reaping.
type Instance interface {
	// HandleEvent applies a single decoded event. Events without the
	// configured user meta field are ignored, as are event types other than
	// subscribe and unsubscribe.
	HandleEvent(ctx context.Context, ev events.Event) error
	// Run consumes the event stream until it terminates. Store failures and
	// decode failures end the run and are returned; supervision is the
	// caller's concern.
	Run(ctx context.Context) error

	OnlineUsers(ctx context.Context) ([]string, error)
	// IsOnline is defined as ConnectionCount > 0, independent of the
	// online-users set, so the two can be cross-checked.
	IsOnline(ctx context.Context, userID string) (bool, error)
	ConnectionCount(ctx context.Context, userID string) (int64, error)
}

type Options struct {
	Events events.Instance
	Store  Store

	// UserMetaKey overrides DefaultUserMetaKey.
	UserMetaKey string

	// SignedIn fires exactly once per offline to online transition, SignedOut
	// exactly once per online to offline transition. Nil callbacks are no-ops.
	SignedIn  func(ctx context.Context, userID string)
	SignedOut func(ctx context.Context, userID string)

	Prometheus prometheus.Instance
}

func New(opt Options) Instance {
	if opt.UserMetaKey == "" {
		opt.UserMetaKey = DefaultUserMetaKey
	}

	return &rosterInst{
		events:      opt.Events,
		store:       opt.Store,
		userMetaKey: opt.UserMetaKey,
		signedIn:    opt.SignedIn,
		signedOut:   opt.SignedOut,
		metrics:     opt.Prometheus,
	}
}

type rosterInst struct {
	events      events.Instance
	store       Store
	userMetaKey string
	signedIn    func(ctx context.Context, userID string)
	signedOut   func(ctx context.Context, userID string)
	metrics     prometheus.Instance
}

func (inst *rosterInst) HandleEvent(ctx context.Context, ev events.Event) error {
	userID, ok := ev.Payload.MetaValue(inst.userMetaKey)
	if !ok {
		// Anonymous connection; valid, just untracked.
		return nil
	}

	switch ev.Type {
	case events.EventTypeSubscribe:
		return inst.onSubscribe(ctx, userID, ev)
	case events.EventTypeUnsubscribe:
		return inst.onUnsubscribe(ctx, userID, ev)
	}

	return nil
}

func (inst *rosterInst) onSubscribe(ctx context.Context, userID string, ev events.Event) error {
	added, count, err := inst.store.AddConnection(ctx, userID, ev.Payload.SessionID)
	if err != nil {
		return err
	}

	// The sign-in decision must reflect the count observed before the add.
	// An effective add landing on cardinality 1 is exactly "was 0"; a
	// duplicate session re-delivery has added == false and changes nothing.
	if !added || count != 1 {
		return nil
	}

	if err := inst.store.MarkOnline(ctx, userID); err != nil {
		return err
	}

	zap.S().Debugw("user signed in",
		"user_id", userID,
		"session_id", ev.Payload.SessionID,
	)

	if inst.metrics != nil {
		inst.metrics.RosterSignIns().Inc()
	}

	if inst.signedIn != nil {
		inst.signedIn(ctx, userID)
	}

	return nil
}

func (inst *rosterInst) onUnsubscribe(ctx context.Context, userID string, ev events.Event) error {
	removed, count, err := inst.store.RemoveConnection(ctx, userID, ev.Payload.SessionID)
	if err != nil {
		return err
	}

	if !removed || count != 0 {
		return nil
	}

	if err := inst.store.MarkOffline(ctx, userID); err != nil {
		return err
	}

	zap.S().Debugw("user signed out",
		"user_id", userID,
		"session_id", ev.Payload.SessionID,
	)

	if inst.metrics != nil {
		inst.metrics.RosterSignOuts().Inc()
	}

	if inst.signedOut != nil {
		inst.signedOut(ctx, userID)
	}

	return nil
}

func (inst *rosterInst) Run(ctx context.Context) error {
	sub := inst.events.Listen(ctx)
	defer sub.Close()

	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, events.ErrSubscriptionClosed) && ctx.Err() != nil {
				// Deliberate shutdown.
				return nil
			}

			var dErr *events.DecodeError
			if errors.As(err, &dErr) && inst.metrics != nil {
				inst.metrics.DecodeErrors().Inc()
			}

			return err
		}

		if inst.metrics != nil {
			inst.metrics.RosterEvents().WithLabelValues(string(ev.Type)).Inc()
		}

		if err := inst.HandleEvent(ctx, ev); err != nil {
			return err
		}
	}
}

func (inst *rosterInst) OnlineUsers(ctx context.Context) ([]string, error) {
	return inst.store.OnlineUsers(ctx)
}

func (inst *rosterInst) IsOnline(ctx context.Context, userID string) (bool, error) {
	count, err := inst.store.ConnectionCount(ctx, userID)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (inst *rosterInst) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	return inst.store.ConnectionCount(ctx, userID)
}
