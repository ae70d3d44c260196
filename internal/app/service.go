package app

import (
	"context"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// AttemptStore abstracts where open attempt screens are kept (in-memory, Redis, etc).
type AttemptStore interface {
	Put(screenID string, m *Machine)
	Get(screenID string) (*Machine, bool)
	Delete(screenID string)
}

// liveness is implemented by stores that expire idle screens.
type liveness interface {
	Touch(ctx context.Context, screenID string) error
}

// AttemptService opens and releases attempt screens. Each screen owns exactly
// one Machine; nothing is shared between screens.
type AttemptService struct {
	store   AttemptStore
	backend Backend
	opts    []MachineOption
	newID   func() string
}

func NewAttemptService(store AttemptStore, backend Backend, opts ...MachineOption) *AttemptService {
	return &AttemptService{store: store, backend: backend, opts: opts, newID: uuid.NewString}
}

// Open creates a screen for quizID with its overview loaded.
func (s *AttemptService) Open(ctx context.Context, quizID string, opts ...MachineOption) (string, *Machine, error) {
	m := s.newMachine(quizID, opts)
	if err := m.LoadOverview(ctx); err != nil {
		m.Release()
		return "", nil, err
	}
	id := s.newID()
	s.store.Put(id, m)
	return id, m, nil
}

// OpenReview creates a screen showing a finished attempt.
func (s *AttemptService) OpenReview(ctx context.Context, quizID, attemptID string, opts ...MachineOption) (string, *Machine, error) {
	m := s.newMachine(quizID, opts)
	if err := m.LoadReplay(ctx, attemptID); err != nil {
		m.Release()
		return "", nil, err
	}
	id := s.newID()
	s.store.Put(id, m)
	return id, m, nil
}

// Get returns the machine behind a screen.
func (s *AttemptService) Get(screenID string) (*Machine, error) {
	m, ok := s.store.Get(screenID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return m, nil
}

// Release abandons the screen's attempt and forgets it.
func (s *AttemptService) Release(screenID string) {
	m, ok := s.store.Get(screenID)
	if !ok {
		return
	}
	m.Release()
	s.store.Delete(screenID)
}

// Touch marks a screen as still in use for stores that track liveness.
func (s *AttemptService) Touch(ctx context.Context, screenID string) error {
	if l, ok := s.store.(liveness); ok {
		return l.Touch(ctx, screenID)
	}
	return nil
}

func (s *AttemptService) newMachine(quizID string, extra []MachineOption) *Machine {
	opts := make([]MachineOption, 0, len(s.opts)+len(extra))
	opts = append(opts, s.opts...)
	opts = append(opts, extra...)
	return NewMachine(s.backend, quizID, opts...)
}
