// Package authority is an in-process scoring authority. It stands in for the
// external backend in development and tests: it issues attempts, grades
// submissions and serves replays. Attempt screens never grade locally; they
// talk to an authority through app.Backend.
package authority

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"quiz-attempt-service/internal/codec"
	"quiz-attempt-service/internal/domain"
)

// QuizLoader fetches authored quizzes from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (Quiz, error)
}

// Quiz is an authored quiz including canonical answers.
type Quiz struct {
	ID                  string     `json:"id" validate:"required"`
	Title               string     `json:"title" validate:"required"`
	Description         string     `json:"description"`
	TimeLimitSeconds    int        `json:"time_limit_seconds" validate:"gte=0"`
	PassingScorePercent int        `json:"passing_score_percent" validate:"gte=0,lte=100"`
	MaxAttempts         int        `json:"max_attempts" validate:"gte=0"`
	Questions           []Question `json:"questions" validate:"required,min=1"`
}

// Question is a domain question plus its canonical answer in wire form.
type Question struct {
	domain.Question
	CorrectAnswer json.RawMessage
}

func (q Question) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(q.Question)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	if len(q.CorrectAnswer) > 0 {
		fields["correct_answer"] = q.CorrectAnswer
	}
	return json.Marshal(fields)
}

func (q *Question) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &q.Question); err != nil {
		return err
	}
	var extra struct {
		CorrectAnswer json.RawMessage `json:"correct_answer"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	q.CorrectAnswer = extra.CorrectAnswer
	return nil
}

// Canonical decodes the canonical answer.
func (q Question) Canonical() (domain.Answer, error) {
	return codec.DecodeCanonical(q.Kind, q.CorrectAnswer)
}

// PointsOrDefault returns the question's points, defaulting to 1.
func (q Question) PointsOrDefault() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Overview returns the public metadata of the quiz.
func (q Quiz) Overview() domain.Overview {
	return domain.Overview{
		QuizID:              q.ID,
		Title:               q.Title,
		Description:         q.Description,
		QuestionCount:       len(q.Questions),
		TimeLimitSeconds:    q.TimeLimitSeconds,
		PassingScorePercent: q.PassingScorePercent,
		MaxAttempts:         q.MaxAttempts,
	}
}

// PublicQuestions strips canonical answers.
func (q Quiz) PublicQuestions() []domain.Question {
	out := make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		out[i] = question.Question
	}
	return out
}

// Validator checks authored quizzes before they are served.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate runs struct tags, per-question content checks and makes sure every
// question has a usable canonical answer.
func (v *Validator) Validate(q Quiz) error {
	if err := v.validate.Struct(q); err != nil {
		return fmt.Errorf("quiz %s: %w", q.ID, err)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if err := question.Validate(); err != nil {
			return fmt.Errorf("quiz %s: %w", q.ID, err)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("quiz %s: duplicate question %s", q.ID, question.ID)
		}
		seen[question.ID] = struct{}{}
		canonical, err := question.Canonical()
		if err != nil {
			return fmt.Errorf("quiz %s question %s: %w", q.ID, question.ID, err)
		}
		if canonical == nil {
			return fmt.Errorf("quiz %s question %s: missing correct answer", q.ID, question.ID)
		}
		if err := question.Admits(canonical); err != nil {
			return fmt.Errorf("quiz %s: correct answer: %w", q.ID, err)
		}
	}
	return nil
}
