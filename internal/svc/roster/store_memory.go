package roster

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryStore returns a process-local Store. It carries the same
// atomicity contract as the redis store under a single mutex, which makes it
// the injectable stand-in for tests and for single-process deployments.
func NewMemoryStore() Store {
	return &memoryStore{
		connections: map[string]map[string]struct{}{},
		online:      map[string]struct{}{},
	}
}

type memoryStore struct {
	mtx sync.Mutex

	connections map[string]map[string]struct{}
	online      map[string]struct{}
}

func (s *memoryStore) AddConnection(_ context.Context, userID, sessionID string) (bool, int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	set := s.connections[userID]
	if set == nil {
		set = map[string]struct{}{}
		s.connections[userID] = set
	}

	_, exists := set[sessionID]
	set[sessionID] = struct{}{}

	return !exists, int64(len(set)), nil
}

func (s *memoryStore) RemoveConnection(_ context.Context, userID, sessionID string) (bool, int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	set := s.connections[userID]

	_, exists := set[sessionID]
	if exists {
		delete(set, sessionID)
	}

	if len(set) == 0 {
		delete(s.connections, userID)
	}

	return exists, int64(len(set)), nil
}

func (s *memoryStore) ConnectionCount(_ context.Context, userID string) (int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return int64(len(s.connections[userID])), nil
}

func (s *memoryStore) MarkOnline(_ context.Context, userID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.online[userID] = struct{}{}

	return nil
}

func (s *memoryStore) MarkOffline(_ context.Context, userID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.online, userID)

	return nil
}

func (s *memoryStore) OnlineUsers(_ context.Context) ([]string, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	users := make([]string, 0, len(s.online))
	for u := range s.online {
		users = append(users, u)
	}

	sort.Strings(users)

	return users, nil
}
