package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juggernaut-live/roster/data/events"
	"github.com/juggernaut-live/roster/internal/testutil"
)

type hookRecorder struct {
	mtx      sync.Mutex
	signIns  []string
	signOuts []string
}

func (h *hookRecorder) signedIn(_ context.Context, userID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.signIns = append(h.signIns, userID)
}

func (h *hookRecorder) signedOut(_ context.Context, userID string) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.signOuts = append(h.signOuts, userID)
}

func (h *hookRecorder) counts() (int, int) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return len(h.signIns), len(h.signOuts)
}

func subscribeEvent(userID, sessionID string) events.Event {
	return events.Event{
		Type: events.EventTypeSubscribe,
		Payload: events.EventPayload{
			SessionID: sessionID,
			Meta:      map[string]interface{}{"user_id": userID},
		},
	}
}

func unsubscribeEvent(userID, sessionID string) events.Event {
	ev := subscribeEvent(userID, sessionID)
	ev.Type = events.EventTypeUnsubscribe

	return ev
}

func newTestRoster(store Store, hooks *hookRecorder) Instance {
	return New(Options{
		Store:     store,
		SignedIn:  hooks.signedIn,
		SignedOut: hooks.signedOut,
	})
}

// checkConsistent asserts IsOnline == (ConnectionCount > 0) and that the
// online-users set agrees.
func checkConsistent(t *testing.T, inst Instance, store Store, userID string, wantOnline bool) {
	t.Helper()

	ctx := context.Background()

	online, err := inst.IsOnline(ctx, userID)
	testutil.IsNil(t, err, "is online")
	testutil.Assert(t, wantOnline, online, "online state")

	count, err := inst.ConnectionCount(ctx, userID)
	testutil.IsNil(t, err, "connection count")
	testutil.Assert(t, wantOnline, count > 0, "online iff count positive")

	users, err := store.OnlineUsers(ctx)
	testutil.IsNil(t, err, "online users")

	inSet := false
	for _, u := range users {
		if u == userID {
			inSet = true
		}
	}

	testutil.Assert(t, wantOnline, inSet, "online-users set agrees")
}

func TestSingleSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	testutil.IsNil(t, inst.HandleEvent(ctx, subscribeEvent("u1", "s1")), "subscribe")

	ins, outs := hooks.counts()
	testutil.Assert(t, 1, ins, "signed in once")
	testutil.Assert(t, 0, outs, "no sign out")
	checkConsistent(t, inst, store, "u1", true)
}

func TestOverlappingSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	testutil.IsNil(t, inst.HandleEvent(ctx, subscribeEvent("u1", "s1")), "first tab")
	testutil.IsNil(t, inst.HandleEvent(ctx, subscribeEvent("u1", "s2")), "second tab")

	ins, outs := hooks.counts()
	testutil.Assert(t, 1, ins, "one sign in for two tabs")
	testutil.Assert(t, 0, outs, "still online")

	count, _ := inst.ConnectionCount(ctx, "u1")
	testutil.Assert(t, int64(2), count, "both sessions recorded")

	testutil.IsNil(t, inst.HandleEvent(ctx, unsubscribeEvent("u1", "s1")), "first tab closes")

	ins, outs = hooks.counts()
	testutil.Assert(t, 0, outs, "still online with one tab left")
	checkConsistent(t, inst, store, "u1", true)

	testutil.IsNil(t, inst.HandleEvent(ctx, unsubscribeEvent("u1", "s2")), "last tab closes")

	ins, outs = hooks.counts()
	testutil.Assert(t, 1, ins, "no extra sign in")
	testutil.Assert(t, 1, outs, "signed out once")
	checkConsistent(t, inst, store, "u1", false)
}

func TestDuplicateSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	testutil.IsNil(t, inst.HandleEvent(ctx, subscribeEvent("u1", "s1")), "subscribe")
	testutil.IsNil(t, inst.HandleEvent(ctx, subscribeEvent("u1", "s1")), "redelivered subscribe")

	ins, _ := hooks.counts()
	testutil.Assert(t, 1, ins, "no duplicate sign in")

	count, _ := inst.ConnectionCount(ctx, "u1")
	testutil.Assert(t, int64(1), count, "count unchanged by redelivery")
}

func TestAnonymousEventIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	// No meta at all.
	ev := events.Event{
		Type:    events.EventTypeSubscribe,
		Payload: events.EventPayload{SessionID: "s1"},
	}
	testutil.IsNil(t, inst.HandleEvent(ctx, ev), "no meta")

	// Meta without the identity field.
	ev.Payload.Meta = map[string]interface{}{"locale": "de"}
	testutil.IsNil(t, inst.HandleEvent(ctx, ev), "meta without user id")

	ins, outs := hooks.counts()
	testutil.Assert(t, 0, ins, "no callbacks")
	testutil.Assert(t, 0, outs, "no callbacks")

	users, err := store.OnlineUsers(ctx)
	testutil.IsNil(t, err, "online users")
	testutil.Assert(t, 0, len(users), "store untouched")
}

func TestCustomEventIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	ev := subscribeEvent("u1", "s1")
	ev.Type = events.EventTypeCustom

	testutil.IsNil(t, inst.HandleEvent(ctx, ev), "custom event")

	ins, _ := hooks.counts()
	testutil.Assert(t, 0, ins, "custom events are not presence events")
	checkConsistent(t, inst, store, "u1", false)
}

func TestUnsubscribeUnknownSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}
	inst := newTestRoster(store, hooks)

	testutil.IsNil(t, inst.HandleEvent(ctx, unsubscribeEvent("u1", "never-seen")), "unsubscribe unknown")

	_, outs := hooks.counts()
	testutil.Assert(t, 0, outs, "no sign out for unknown session")
}

func TestConfigurableMetaKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}

	inst := New(Options{
		Store:       store,
		UserMetaKey: "account",
		SignedIn:    hooks.signedIn,
	})

	ev := events.Event{
		Type: events.EventTypeSubscribe,
		Payload: events.EventPayload{
			SessionID: "s1",
			Meta:      map[string]interface{}{"account": "acct-9"},
		},
	}
	testutil.IsNil(t, inst.HandleEvent(ctx, ev), "subscribe")

	ins, _ := hooks.counts()
	testutil.Assert(t, 1, ins, "identity resolved via configured key")

	online, _ := inst.IsOnline(ctx, "acct-9")
	testutil.Assert(t, true, online, "tracked under configured identity")
}

// Two tracker instances racing on a shared store: both sessions must be
// recorded and the sign-in must fire on exactly one of them.
func TestConcurrentTrackers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	hooks := &hookRecorder{}

	instA := newTestRoster(store, hooks)
	instB := newTestRoster(store, hooks)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = instA.HandleEvent(ctx, subscribeEvent("u1", "s1"))
	}()
	go func() {
		defer wg.Done()
		_ = instB.HandleEvent(ctx, subscribeEvent("u1", "s2"))
	}()
	wg.Wait()

	count, _ := instA.ConnectionCount(ctx, "u1")
	testutil.Assert(t, int64(2), count, "both sessions recorded")

	ins, _ := hooks.counts()
	testutil.Assert(t, 1, ins, "sign in fired on exactly one instance")
}

func TestRun(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockRedis()
	store := NewMemoryStore()
	hooks := &hookRecorder{}

	inst := New(Options{
		Events:    events.New(events.Options{Redis: m}),
		Store:     store,
		SignedIn:  hooks.signedIn,
		SignedOut: hooks.signedOut,
	})

	m.Incoming <- testutil.BrokerMessage{Channel: "juggernaut:subscribe", Payload: `{"session_id":"s1","meta":{"user_id":"u1"}}`}
	m.Incoming <- testutil.BrokerMessage{Channel: "juggernaut:unsubscribe", Payload: `{"session_id":"s1","meta":{"user_id":"u1"}}`}
	close(m.Incoming)

	err := inst.Run(context.Background())
	testutil.Assert(t, true, errors.Is(err, events.ErrSubscriptionClosed), "run ends with the stream")

	ins, outs := hooks.counts()
	testutil.Assert(t, 1, ins, "sign in processed")
	testutil.Assert(t, 1, outs, "sign out processed")
}

func TestRunCancel(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockRedis()

	inst := New(Options{
		Events: events.New(events.Options{Redis: m}),
		Store:  NewMemoryStore(),
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- inst.Run(ctx)
	}()

	time.Sleep(time.Millisecond * 20)
	cancel()

	select {
	case err := <-done:
		testutil.IsNil(t, err, "cancellation is a clean shutdown")
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}

func TestRunDecodeErrorTerminates(t *testing.T) {
	t.Parallel()

	m := testutil.NewMockRedis()

	inst := New(Options{
		Events: events.New(events.Options{Redis: m}),
		Store:  NewMemoryStore(),
	})

	m.Incoming <- testutil.BrokerMessage{Channel: "juggernaut:subscribe", Payload: `not json`}

	err := inst.Run(context.Background())

	var dErr *events.DecodeError
	testutil.Assert(t, true, errors.As(err, &dErr), "decode failure is fatal to the run")
}
