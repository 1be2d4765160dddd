package query

import (
	"context"
	"sync"
	"time"

	"github.com/juggernaut-live/roster/internal/svc/roster"
	"github.com/patrickmn/go-cache"
)

// Query is the read side of the roster: inspection lookups memoized in a
// short-lived memory cache so hot polling does not hammer the store. The
// cache holds derived views only; presence state itself never expires.
type Query struct {
	store roster.Store
	c     *cache.Cache
	mx    sync.Map
}

func New(store roster.Store) *Query {
	return &Query{
		store: store,
		c:     cache.New(time.Second*10, time.Minute*1),
	}
}

func (q *Query) mtx(tag string) *sync.Mutex {
	val, _ := q.mx.LoadOrStore(tag, &sync.Mutex{})
	return val.(*sync.Mutex)
}

const onlineUsersTag = "online-users"

func (q *Query) OnlineUsers(ctx context.Context) ([]string, error) {
	mtx := q.mtx(onlineUsersTag)
	mtx.Lock()
	defer mtx.Unlock()

	if v, ok := q.c.Get(onlineUsersTag); ok {
		return v.([]string), nil
	}

	users, err := q.store.OnlineUsers(ctx)
	if err != nil {
		return nil, err
	}

	q.c.SetDefault(onlineUsersTag, users)

	return users, nil
}

type UserPresence struct {
	UserID      string `json:"user_id"`
	Online      bool   `json:"online"`
	Connections int64  `json:"connections"`
}

// UserPresence reports a single user's state. Online is computed from the
// connection count, not the online-users set.
func (q *Query) UserPresence(ctx context.Context, userID string) (UserPresence, error) {
	tag := "user:" + userID

	mtx := q.mtx(tag)
	mtx.Lock()
	defer mtx.Unlock()

	if v, ok := q.c.Get(tag); ok {
		return v.(UserPresence), nil
	}

	count, err := q.store.ConnectionCount(ctx, userID)
	if err != nil {
		return UserPresence{}, err
	}

	p := UserPresence{
		UserID:      userID,
		Online:      count > 0,
		Connections: count,
	}

	q.c.SetDefault(tag, p)

	return p, nil
}
