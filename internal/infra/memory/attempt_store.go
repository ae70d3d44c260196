package memory

import (
	"sync"

	"quiz-attempt-service/internal/app"
)

// AttemptStore is an in-memory implementation of app.AttemptStore.
type AttemptStore struct {
	mu       sync.RWMutex
	machines map[string]*app.Machine
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		machines: make(map[string]*app.Machine),
	}
}

func (s *AttemptStore) Put(screenID string, m *app.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[screenID] = m
}

func (s *AttemptStore) Get(screenID string) (*app.Machine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machines[screenID]
	return m, ok
}

func (s *AttemptStore) Delete(screenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.machines, screenID)
}

// Len reports how many screens are open.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.machines)
}
