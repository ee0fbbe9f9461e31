package memory

import (
	"sync"

	"livequiz-service/internal/domain"
)

// StateStore keeps the persisted quiz state in memory. Useful for tests and
// for running without any configured backend.
type StateStore struct {
	mu    sync.Mutex
	state domain.PersistedState
	saved bool
}

func NewStateStore() *StateStore {
	return &StateStore{}
}

func (s *StateStore) Load() (domain.PersistedState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.saved, nil
}

func (s *StateStore) Save(p domain.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = p
	s.saved = true
	return nil
}
