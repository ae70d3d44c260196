package domain

import "time"

// Overview is the quiz metadata shown before an attempt starts.
type Overview struct {
	QuizID              string `json:"quiz_id" validate:"required"`
	Title               string `json:"title" validate:"required"`
	Description         string `json:"description"`
	QuestionCount       int    `json:"question_count" validate:"gte=0"`
	TimeLimitSeconds    int    `json:"time_limit_seconds" validate:"gte=0"`
	PassingScorePercent int    `json:"passing_score_percent" validate:"gte=0,lte=100"`
	MaxAttempts         int    `json:"max_attempts" validate:"gte=0"` // 0 means unlimited
}

// AttemptTicket is what the backend issues when an attempt is created.
type AttemptTicket struct {
	AttemptID        string     `json:"attempt_id" validate:"required"`
	Questions        []Question `json:"questions" validate:"required,min=1"`
	TimeLimitSeconds int        `json:"time_limit_seconds" validate:"gte=0"`
	StartedAt        time.Time  `json:"started_at"`
}

// Verdict is the backend's scoring result for a submitted attempt.
type Verdict struct {
	AttemptID        string    `json:"attempt_id"`
	Score            float64   `json:"score"`
	MaxScore         float64   `json:"max_score"`
	Percentage       float64   `json:"percentage"`
	Passed           bool      `json:"passed"`
	TotalTimeSeconds int       `json:"total_time_seconds"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	SubmittedAt      time.Time `json:"submitted_at"`
}
