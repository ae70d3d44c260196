package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// Authority issues attempts and grades them against authored quizzes.
type Authority struct {
	loader    QuizLoader
	attempts  AttemptRepository
	validator *Validator
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Authority.
type Option func(*Authority)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

// WithAttempts replaces the default in-memory attempt repository.
func WithAttempts(repo AttemptRepository) Option {
	return func(a *Authority) { a.attempts = repo }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(a *Authority) { a.newID = newID }
}

func New(loader QuizLoader, opts ...Option) *Authority {
	a := &Authority{
		loader:    loader,
		attempts:  NewMemoryAttempts(),
		validator: NewValidator(),
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "authority")
	return a
}

func (a *Authority) quiz(ctx context.Context, quizID string) (Quiz, error) {
	q, err := a.loader.LoadQuiz(ctx, quizID)
	if err != nil {
		return Quiz{}, err
	}
	if err := a.validator.Validate(q); err != nil {
		a.logger.Error("authored quiz rejected", "quiz_id", quizID, "error", err)
		return Quiz{}, err
	}
	return q, nil
}

// Overview returns public quiz metadata.
func (a *Authority) Overview(ctx context.Context, quizID string) (domain.Overview, error) {
	q, err := a.quiz(ctx, quizID)
	if err != nil {
		return domain.Overview{}, err
	}
	return q.Overview(), nil
}

// CreateAttempt opens a new attempt unless the quiz's attempt limit is used up.
func (a *Authority) CreateAttempt(ctx context.Context, quizID string) (domain.AttemptTicket, error) {
	q, err := a.quiz(ctx, quizID)
	if err != nil {
		return domain.AttemptTicket{}, err
	}

	rec := AttemptRecord{
		ID:        a.newID(),
		QuizID:    quizID,
		Questions: q.PublicQuestions(),
		StartedAt: a.now().UTC(),
	}
	if err := a.attempts.Create(ctx, rec, q.MaxAttempts); err != nil {
		if errors.Is(err, domain.ErrAttemptLimitExceeded) {
			return domain.AttemptTicket{}, err
		}
		return domain.AttemptTicket{}, fmt.Errorf("create attempt: %w", err)
	}

	a.logger.Info("attempt created", "quiz_id", quizID, "attempt_id", rec.ID)
	return domain.AttemptTicket{
		AttemptID:        rec.ID,
		Questions:        rec.Questions,
		TimeLimitSeconds: q.TimeLimitSeconds,
		StartedAt:        rec.StartedAt,
	}, nil
}

// SubmitAttempt grades an attempt once. Records for unknown questions or with
// a bad shape count as unanswered.
func (a *Authority) SubmitAttempt(ctx context.Context, req codec.SubmitRequest) (codec.VerdictPayload, error) {
	rec, err := a.attempts.Get(ctx, req.AttemptID)
	if err != nil {
		return codec.VerdictPayload{}, fmt.Errorf("attempt %s: %w", req.AttemptID, err)
	}
	if rec.Submitted() {
		return codec.VerdictPayload{}, domain.ErrAttemptAlreadySubmitted
	}
	if req.QuizID != "" && req.QuizID != rec.QuizID {
		return codec.VerdictPayload{}, fmt.Errorf("%w: attempt %s belongs to quiz %s", domain.ErrAttemptNotFound, rec.ID, rec.QuizID)
	}
	q, err := a.quiz(ctx, rec.QuizID)
	if err != nil {
		return codec.VerdictPayload{}, err
	}

	answers, problems := codec.DecodeRecords(rec.Questions, req.Answers)
	for _, p := range problems {
		a.logger.Warn("submission record ignored", "attempt_id", rec.ID, "error", p)
	}
	verdict, err := grade(q, rec.Questions, answers)
	if err != nil {
		return codec.VerdictPayload{}, err
	}
	verdict.AttemptID = rec.ID
	verdict.TotalTimeSeconds = q.TimeLimitSeconds
	verdict.TimeSpentSeconds = a.timeSpent(rec, q, req.TimeSpentSeconds)
	verdict.SubmittedAt = a.now().UTC()

	rec.SubmittedAt = verdict.SubmittedAt
	rec.Answers = append([]codec.Record(nil), req.Answers...)
	rec.Verdict = &verdict
	if err := a.attempts.MarkSubmitted(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAttemptAlreadySubmitted) {
			return codec.VerdictPayload{}, err
		}
		return codec.VerdictPayload{}, fmt.Errorf("store verdict: %w", err)
	}

	a.logger.Info("attempt graded", "attempt_id", rec.ID, "score", verdict.Score, "max_score", verdict.MaxScore, "passed", verdict.Passed)
	return verdict, nil
}

// ReplayAttempt returns a submitted attempt with its verdict.
func (a *Authority) ReplayAttempt(ctx context.Context, attemptID string) (codec.ReplayPayload, error) {
	rec, err := a.attempts.Get(ctx, attemptID)
	if err != nil {
		return codec.ReplayPayload{}, fmt.Errorf("attempt %s: %w", attemptID, err)
	}
	if !rec.Submitted() {
		return codec.ReplayPayload{}, fmt.Errorf("%w: %s has not been submitted", domain.ErrAttemptNotFound, attemptID)
	}
	return codec.ReplayPayload{
		AttemptID:   rec.ID,
		QuizID:      rec.QuizID,
		Questions:   rec.Questions,
		UserAnswers: rec.Answers,
		Verdict:     *rec.Verdict,
	}, nil
}

// AttemptsStarted reports how many attempts were opened for quizID.
func (a *Authority) AttemptsStarted(ctx context.Context, quizID string) (int, error) {
	return a.attempts.CountForQuiz(ctx, quizID)
}

// timeSpent trusts the client's figure but never beyond the wall clock or the limit.
func (a *Authority) timeSpent(rec AttemptRecord, q Quiz, reported int) int {
	elapsed := int(a.now().Sub(rec.StartedAt).Seconds())
	spent := reported
	if spent <= 0 || spent > elapsed+1 {
		spent = elapsed
	}
	if q.TimeLimitSeconds > 0 && spent > q.TimeLimitSeconds {
		spent = q.TimeLimitSeconds
	}
	if spent < 0 {
		spent = 0
	}
	return spent
}

// grade scores answers, parallel to issued, against the quiz's canonical
// answers. There is no partial credit.
func grade(q Quiz, issued []domain.Question, answers []domain.Answer) (codec.VerdictPayload, error) {
	authored := make(map[string]Question, len(q.Questions))
	for _, question := range q.Questions {
		authored[question.ID] = question
	}

	var out codec.VerdictPayload
	out.Answers = make([]codec.CanonicalRecord, 0, len(issued))
	for i, iq := range issued {
		question, ok := authored[iq.ID]
		if !ok {
			return codec.VerdictPayload{}, fmt.Errorf("question %s no longer in quiz %s", iq.ID, q.ID)
		}
		canonical, err := question.Canonical()
		if err != nil {
			return codec.VerdictPayload{}, fmt.Errorf("question %s: %w", question.ID, err)
		}
		points := float64(question.PointsOrDefault())
		out.MaxScore += points
		if i < len(answers) && domain.Equivalent(iq.Kind, answers[i], canonical) {
			out.Score += points
		}
		wire, err := codec.EncodeAnswer(canonical)
		if err != nil {
			return codec.VerdictPayload{}, fmt.Errorf("question %s: %w", question.ID, err)
		}
		out.Answers = append(out.Answers, codec.CanonicalRecord{QuestionID: question.ID, CorrectAnswer: wire})
	}
	if out.MaxScore > 0 {
		out.Percentage = math.Round(out.Score/out.MaxScore*10000) / 100
	}
	out.Passed = out.Percentage >= float64(q.PassingScorePercent)
	return out, nil
}
