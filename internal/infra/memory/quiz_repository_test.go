package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]authority.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("load quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryExpiresAndInvalidates(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]authority.Quiz{"quiz-1": sampleQuiz()}),
	}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	if _, err := repo.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := repo.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("load quiz after ttl: %v", err)
	}
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.count())
	}

	repo.Invalidate("quiz-1")
	if _, err := repo.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("load quiz after invalidate: %v", err)
	}
	if loader.count() != 3 {
		t.Fatalf("expected reload after invalidate, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryPropagatesNotFound(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(nil), time.Minute)
	_, err := repo.LoadQuiz(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestAttemptStoreLifecycle(t *testing.T) {
	store := NewAttemptStore()
	backend := authority.New(NewStaticQuizLoader(map[string]authority.Quiz{"quiz-1": sampleQuiz()}))
	svc := app.NewAttemptService(store, backend)

	id, m, err := svc.Open(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got, ok := store.Get(id); !ok || got != m {
		t.Fatalf("expected machine stored under %s", id)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one screen, got %d", store.Len())
	}

	svc.Release(id)
	if _, ok := store.Get(id); ok {
		t.Fatalf("expected screen removed on release")
	}
}

type countingLoader struct {
	authority.QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (authority.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuiz() authority.Quiz {
	return authority.Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []authority.Question{
			{
				Question: domain.Question{
					ID:     "q1",
					Kind:   domain.KindSingleChoice,
					Prompt: "What is 2 + 2?",
					Points: 1,
					Content: domain.ChoiceContent{Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4"},
					}},
				},
				CorrectAnswer: json.RawMessage(`"o2"`),
			},
		},
	}
}
