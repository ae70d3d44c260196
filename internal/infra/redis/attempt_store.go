package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/app"
)

// AttemptStore is a Redis-aware implementation of app.AttemptStore.
// Notes:
//   - Machines own timers and goroutines, so they stay in a local map.
//   - Redis marks screen liveness with the quiz id as value, letting other
//     instances see which attempts are open on this node.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	machines map[string]*app.Machine
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		machines: make(map[string]*app.Machine),
	}
}

func (s *AttemptStore) Put(screenID string, m *app.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[screenID] = m
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(screenID), m.QuizID(), s.ttl).Err()
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
	_ = s.client.Del(context.Background(), s.key(screenID)).Err()
}

// Touch extends the liveness marker of an open screen.
func (s *AttemptStore) Touch(ctx context.Context, screenID string) error {
	s.mu.RLock()
	_, ok := s.machines[screenID]
	s.mu.RUnlock()
	if !ok || s.ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, s.key(screenID), s.ttl).Err()
}

func (s *AttemptStore) key(screenID string) string {
	return "quiz:attempt:" + screenID
}
