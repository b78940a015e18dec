package sessionstore

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// InMemoryStore keeps the slot for the lifetime of the process.
type InMemoryStore struct {
	mu        sync.Mutex
	sessionID string
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) Load(_ context.Context) (string, bool, error) {
	if s == nil {
		return "", false, errors.New("in-memory session store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.sessionID != "", nil
}

func (s *InMemoryStore) Save(_ context.Context, sessionID string) error {
	if s == nil {
		return errors.New("in-memory session store: nil store")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = strings.TrimSpace(sessionID)
	return nil
}
