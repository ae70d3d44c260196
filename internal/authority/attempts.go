package authority

import (
	"context"
	"sync"
	"time"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// AttemptRecord is the authority's view of one attempt.
type AttemptRecord struct {
	ID          string
	QuizID      string
	Questions   []domain.Question
	StartedAt   time.Time
	SubmittedAt time.Time
	Answers     []codec.Record
	Verdict     *codec.VerdictPayload
}

// Submitted reports whether the attempt has been graded.
func (r AttemptRecord) Submitted() bool { return r.Verdict != nil }

// AttemptRepository persists attempts issued by the authority.
type AttemptRepository interface {
	// Create stores rec unless the quiz already has limit attempts, in which
	// case it fails with ErrAttemptLimitExceeded. A limit of zero or less
	// means unlimited. The check and the insert are atomic.
	Create(ctx context.Context, rec AttemptRecord, limit int) error
	CountForQuiz(ctx context.Context, quizID string) (int, error)
	Get(ctx context.Context, attemptID string) (AttemptRecord, error)
	// MarkSubmitted stores the graded result. It fails with
	// ErrAttemptAlreadySubmitted if the attempt was graded before.
	MarkSubmitted(ctx context.Context, rec AttemptRecord) error
}

// MemoryAttempts keeps attempts in process memory.
type MemoryAttempts struct {
	mu       sync.RWMutex
	attempts map[string]AttemptRecord
	perQuiz  map[string]int
}

func NewMemoryAttempts() *MemoryAttempts {
	return &MemoryAttempts{
		attempts: make(map[string]AttemptRecord),
		perQuiz:  make(map[string]int),
	}
}

func (m *MemoryAttempts) Create(_ context.Context, rec AttemptRecord, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && m.perQuiz[rec.QuizID] >= limit {
		return domain.ErrAttemptLimitExceeded
	}
	m.attempts[rec.ID] = rec
	m.perQuiz[rec.QuizID]++
	return nil
}

func (m *MemoryAttempts) CountForQuiz(_ context.Context, quizID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perQuiz[quizID], nil
}

func (m *MemoryAttempts) Get(_ context.Context, attemptID string) (AttemptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.attempts[attemptID]
	if !ok {
		return AttemptRecord{}, domain.ErrAttemptNotFound
	}
	return rec, nil
}

func (m *MemoryAttempts) MarkSubmitted(_ context.Context, rec AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.attempts[rec.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	if current.Submitted() {
		return domain.ErrAttemptAlreadySubmitted
	}
	m.attempts[rec.ID] = rec
	return nil
}
