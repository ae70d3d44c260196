package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-attempt-service/internal/authority"
	"quiz-attempt-service/internal/domain"
)

// QuizRepository caches authored quizzes in Redis and falls back to a loader on cache miss.
// Content is stored as:  SET quiz:{quizID}:content  {quiz json}
// Overview is stored as: SET quiz:{quizID}:overview {overview json}
type QuizRepository struct {
	client *redis.Client
	loader authority.QuizLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader authority.QuizLoader, ttl time.Duration, logger *slog.Logger) *QuizRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger.With("component", "redis_quiz_cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) LoadQuiz(ctx context.Context, quizID string) (authority.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return authority.Quiz{}, err
		}
		r.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return authority.Quiz{}, err
	}
	return result.(authority.Quiz), nil
}

// CachedOverview reads the overview written alongside the content, without
// touching the backing loader.
func (r *QuizRepository) CachedOverview(ctx context.Context, quizID string) (domain.Overview, bool) {
	data, err := r.client.Get(ctx, r.overviewKey(quizID)).Bytes()
	if err != nil {
		return domain.Overview{}, false
	}
	var ov domain.Overview
	if err := json.Unmarshal(data, &ov); err != nil {
		return domain.Overview{}, false
	}
	return ov, true
}

// Invalidate removes both cache keys for quizID.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.contentKey(quizID), r.overviewKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (authority.Quiz, bool) {
	data, err := r.client.Get(ctx, r.contentKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("quiz cache read failed", "quiz_id", quizID, "error", err)
		}
		return authority.Quiz{}, false
	}
	var quiz authority.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		r.logger.Warn("quiz cache entry corrupt", "quiz_id", quizID, "error", err)
		return authority.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) store(ctx context.Context, quiz authority.Quiz) {
	content, err := json.Marshal(quiz)
	if err != nil {
		r.logger.Warn("quiz cache encode failed", "quiz_id", quiz.ID, "error", err)
		return
	}
	overview, err := json.Marshal(quiz.Overview())
	if err != nil {
		r.logger.Warn("overview cache encode failed", "quiz_id", quiz.ID, "error", err)
		return
	}

	ttl := r.ttlWithJitter()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.contentKey(quiz.ID), content, ttl)
	pipe.Set(ctx, r.overviewKey(quiz.ID), overview, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Warn("quiz cache write failed", "quiz_id", quiz.ID, "error", fmt.Errorf("pipeline: %w", err))
	}
}

func (r *QuizRepository) contentKey(quizID string) string {
	return "quiz:" + quizID + ":content"
}

func (r *QuizRepository) overviewKey(quizID string) string {
	return "quiz:" + quizID + ":overview"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
